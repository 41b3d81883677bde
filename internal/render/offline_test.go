package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulme/api/internal/models"
)

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRenderOfflinePlaceholderIsDeterministic(t *testing.T) {
	req := Request{Mode: models.ModeText, Prompt: "a whale", AspectRatio: "1:1"}

	first, err := RenderOffline(req)
	require.NoError(t, err)
	second, err := RenderOffline(req)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same request must produce identical bytes")

	img := decodePNG(t, first)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 1200, img.Bounds().Dy())
}

func TestRenderOfflineAspectRatioDims(t *testing.T) {
	tests := []struct {
		ratio  string
		width  int
		height int
	}{
		{"1:1", 1200, 1200},
		{"16:9", 1600, 900},
		{"9:16", 900, 1600},
		{"unknown", 1200, 1200},
	}

	for _, tc := range tests {
		t.Run(tc.ratio, func(t *testing.T) {
			data, err := RenderOffline(Request{Mode: models.ModeText, Prompt: "x", AspectRatio: tc.ratio})
			require.NoError(t, err)
			img := decodePNG(t, data)
			assert.Equal(t, tc.width, img.Bounds().Dx())
			assert.Equal(t, tc.height, img.Bounds().Dy())
		})
	}
}

func TestRenderOfflinePhotoModeUsesSourceImage(t *testing.T) {
	source := testPNG(t)

	req := Request{
		Mode:        models.ModePhoto,
		SourceImage: NewSourceImage(source),
		AspectRatio: "1:1",
	}

	first, err := RenderOffline(req)
	require.NoError(t, err)
	second, err := RenderOffline(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	img := decodePNG(t, first)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 1200, img.Bounds().Dy())
}

func TestRenderOfflinePhotoModeRejectsBadSource(t *testing.T) {
	req := Request{
		Mode:        models.ModePhoto,
		SourceImage: NewSourceImage([]byte("not an image")),
	}
	_, err := RenderOffline(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode source image")
}

func TestSourceImageZeroValue(t *testing.T) {
	var img SourceImage
	assert.False(t, img.Present())
	assert.False(t, NewSourceImage(nil).Present())
	assert.True(t, NewSourceImage([]byte{1}).Present())
}
