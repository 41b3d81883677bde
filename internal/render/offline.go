package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/colorfulme/api/internal/models"
	"github.com/colorfulme/api/internal/postprocess"
)

// OfflineModelName annotates results produced without any provider call.
const OfflineModelName = "fallback-deterministic"

// RenderOffline produces a coloring page without network access. Photo and
// recolor requests with a source image get a local edge-detection transform;
// everything else gets a stylized outline drawing. Output depends only on the
// request, never on time or randomness.
func RenderOffline(req Request) ([]byte, error) {
	width, height := dimsForAspectRatio(req.AspectRatio)

	if (req.Mode == models.ModePhoto || req.Mode == models.ModeRecolor) && req.SourceImage.Present() {
		return photoToLineArt(req.SourceImage.Bytes(), width, height)
	}
	return drawPlaceholder(width, height)
}

func photoToLineArt(sourceBytes []byte, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(sourceBytes))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	fitted := imaging.Fill(src, width, height, imaging.Center, imaging.Lanczos)
	gray := grayOf(imaging.Grayscale(fitted))
	gray = postprocess.MedianFilter3(gray)
	edges := detectEdges(gray)
	edges = postprocess.AutoContrast(edges)

	// Invert so outlines read as dark strokes, then binarize.
	inverted := image.NewGray(edges.Bounds())
	for i := range edges.Pix {
		inverted.Pix[i] = 255 - edges.Pix[i]
	}
	lineArt := postprocess.ThresholdBinary(inverted, postprocess.ThresholdCutoff)

	return postprocess.EncodeRGBPNG(lineArt)
}

// detectEdges uses a 4-neighbour Laplacian, which is enough to pull outlines
// out of a denoised photo.
func detectEdges(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			center := int(src.GrayAt(x, y).Y)
			sum := 4*center -
				int(src.GrayAt(clampInt(x-1, bounds.Min.X, bounds.Max.X-1), y).Y) -
				int(src.GrayAt(clampInt(x+1, bounds.Min.X, bounds.Max.X-1), y).Y) -
				int(src.GrayAt(x, clampInt(y-1, bounds.Min.Y, bounds.Max.Y-1)).Y) -
				int(src.GrayAt(x, clampInt(y+1, bounds.Min.Y, bounds.Max.Y-1)).Y)
			if sum < 0 {
				sum = -sum
			}
			if sum > 255 {
				sum = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum)})
		}
	}
	return out
}

// drawPlaceholder renders a simple line-art composition: frame, ellipse and
// triangle with thick black strokes on white.
func drawPlaceholder(width, height int) ([]byte, error) {
	canvas := image.NewGray(image.Rect(0, 0, width, height))
	for i := range canvas.Pix {
		canvas.Pix[i] = 255
	}

	const margin = 48
	const stroke = 4

	drawRect(canvas, margin, margin, width-margin, height-margin, stroke)
	drawEllipse(canvas, margin+40, margin+120, width/2, height/2, stroke)
	drawTriangle(canvas,
		width/2+40, height/2+20,
		width-margin-40, height/2+120,
		width/2+120, height-margin-40,
		stroke)

	return postprocess.EncodeRGBPNG(canvas)
}

func drawRect(img *image.Gray, x0, y0, x1, y1, stroke int) {
	for t := 0; t < stroke; t++ {
		drawLine(img, x0+t, y0+t, x1-t, y0+t)
		drawLine(img, x0+t, y1-t, x1-t, y1-t)
		drawLine(img, x0+t, y0+t, x0+t, y1-t)
		drawLine(img, x1-t, y0+t, x1-t, y1-t)
	}
}

func drawEllipse(img *image.Gray, x0, y0, x1, y1, stroke int) {
	cx := float64(x0+x1) / 2
	cy := float64(y0+y1) / 2
	rx := float64(x1-x0) / 2
	ry := float64(y1-y0) / 2
	if rx <= 0 || ry <= 0 {
		return
	}

	bounds := img.Bounds()
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			d := dx*dx + dy*dy
			inner := 1 - float64(stroke)/rx
			if d <= 1 && d >= inner*inner {
				if image.Pt(x, y).In(bounds) {
					img.SetGray(x, y, color.Gray{Y: 0})
				}
			}
		}
	}
}

func drawTriangle(img *image.Gray, x0, y0, x1, y1, x2, y2, stroke int) {
	for t := 0; t < stroke; t++ {
		drawLine(img, x0, y0+t, x1, y1+t)
		drawLine(img, x1, y1+t, x2, y2+t)
		drawLine(img, x2, y2+t, x0, y0+t)
	}
}

// drawLine is a basic Bresenham segment.
func drawLine(img *image.Gray, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	bounds := img.Bounds()
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetGray(x0, y0, color.Gray{Y: 0})
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func grayOf(src image.Image) *image.Gray {
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x, y, src.At(x, y))
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
