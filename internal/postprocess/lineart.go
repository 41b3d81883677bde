package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"

	"github.com/disintegration/imaging"
)

// ThresholdCutoff is the luminance above which a pixel becomes pure white.
// Fixed so post-processing stays reproducible.
const ThresholdCutoff = 170

// NormalizeLineArt converts arbitrary raster output into black-on-white line
// art: grayscale, contrast stretch, median denoise, hard threshold, RGB PNG.
// Providers are not guaranteed to return binary line art, so this runs on
// every render result. The function is pure: same bytes in, same bytes out.
func NormalizeLineArt(pngBytes []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := toGray(imaging.Grayscale(src))
	gray = AutoContrast(gray)
	gray = MedianFilter3(gray)
	gray = ThresholdBinary(gray, ThresholdCutoff)

	return EncodeRGBPNG(gray)
}

// Dimensions reports the pixel size of an encoded image.
func Dimensions(pngBytes []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pngBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// AutoContrast stretches the luminance histogram to the full 0..255 range.
func AutoContrast(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	lo, hi := uint8(255), uint8(0)
	for i := range src.Pix {
		v := src.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return src
	}

	out := image.NewGray(bounds)
	scale := 255.0 / float64(hi-lo)
	for i := range src.Pix {
		out.Pix[i] = uint8(float64(src.Pix[i]-lo)*scale + 0.5)
	}
	return out
}

// MedianFilter3 applies a 3x3 median filter, clamping at the edges.
func MedianFilter3(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	var window [9]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sx := clamp(x+dx, bounds.Min.X, bounds.Max.X-1)
					sy := clamp(y+dy, bounds.Min.Y, bounds.Max.Y-1)
					window[n] = int(src.GrayAt(sx, sy).Y)
					n++
				}
			}
			slice := window[:]
			sort.Ints(slice)
			out.SetGray(x, y, color.Gray{Y: uint8(slice[4])})
		}
	}
	return out
}

// ThresholdBinary maps every pixel above cutoff to pure white and the rest to
// pure black.
func ThresholdBinary(src *image.Gray, cutoff uint8) *image.Gray {
	out := image.NewGray(src.Bounds())
	for i := range src.Pix {
		if src.Pix[i] > cutoff {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// EncodeRGBPNG re-encodes any image as an RGB PNG.
func EncodeRGBPNG(src image.Image) ([]byte, error) {
	bounds := src.Bounds()
	rgb := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgb.Set(x, y, src.At(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgb); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x, y, src.At(x, y))
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
