package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGToPDFProducesDocument(t *testing.T) {
	pdf, err := PNGToPDF(gradientPNG(t, 64, 48))
	require.NoError(t, err)

	require.Greater(t, len(pdf), 4)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestPNGToPDFDeterministic(t *testing.T) {
	src := gradientPNG(t, 32, 32)

	first, err := PNGToPDF(src)
	require.NoError(t, err)
	second, err := PNGToPDF(src)
	require.NoError(t, err)

	assert.Equal(t, first, second, "conversion must be byte-identical across runs")
}

func TestPNGToPDFRejectsGarbage(t *testing.T) {
	_, err := PNGToPDF([]byte("not a png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image config")
}
