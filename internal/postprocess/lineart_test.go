package postprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// gradientPNG mixes dark, mid and light tones so thresholding has work to do.
func gradientPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / (width - 1))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return encodePNG(t, img)
}

func TestNormalizeLineArtBinaryOutput(t *testing.T) {
	out, err := NormalizeLineArt(gradientPNG(t, 32, 32))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 32, bounds.Dx())
	assert.Equal(t, 32, bounds.Dy())

	sawBlack, sawWhite := false, false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			switch {
			case r == 0 && g == 0 && b == 0:
				sawBlack = true
			case r == 0xffff && g == 0xffff && b == 0xffff:
				sawWhite = true
			default:
				t.Fatalf("pixel (%d,%d) is neither pure black nor pure white: %v", x, y, img.At(x, y))
			}
		}
	}
	assert.True(t, sawBlack)
	assert.True(t, sawWhite)
}

func TestNormalizeLineArtDeterministic(t *testing.T) {
	src := gradientPNG(t, 24, 24)

	first, err := NormalizeLineArt(src)
	require.NoError(t, err)
	second, err := NormalizeLineArt(src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizeLineArtRejectsGarbage(t *testing.T) {
	_, err := NormalizeLineArt([]byte("definitely not a png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image")
}

func TestAutoContrastStretchesRange(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 1))
	src.Pix = []uint8{100, 120, 140, 160}

	out := AutoContrast(src)
	assert.Equal(t, uint8(0), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[3])
}

func TestAutoContrastFlatImageUnchanged(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 1))
	src.Pix = []uint8{128, 128, 128, 128}

	out := AutoContrast(src)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestMedianFilter3RemovesSpeckle(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	src.SetGray(2, 2, color.Gray{Y: 0})

	out := MedianFilter3(src)
	assert.Equal(t, uint8(255), out.GrayAt(2, 2).Y, "isolated speck must be removed")
}

func TestThresholdBinary(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 1))
	src.Pix = []uint8{0, ThresholdCutoff, ThresholdCutoff + 1, 255}

	out := ThresholdBinary(src, ThresholdCutoff)
	assert.Equal(t, []uint8{0, 0, 255, 255}, out.Pix)
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(gradientPNG(t, 40, 25))
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 25, h)

	_, _, err = Dimensions([]byte{0x00})
	require.Error(t, err)
}
