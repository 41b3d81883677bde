package render

import "github.com/colorfulme/api/internal/models"

// SourceImage is an explicit optional input photo. The zero value means no
// image was supplied, so "photo mode without an image" is checkable without
// nil juggling.
type SourceImage struct {
	data []byte
}

func NewSourceImage(data []byte) SourceImage {
	if len(data) == 0 {
		return SourceImage{}
	}
	return SourceImage{data: data}
}

func (s SourceImage) Present() bool { return len(s.data) > 0 }

func (s SourceImage) Bytes() []byte { return s.data }

// Request describes one render attempt.
type Request struct {
	Prompt      string
	Mode        models.GenerationMode
	Style       string
	AspectRatio string
	SourceImage SourceImage
}

// Result is the outcome of a successful render, including observability
// annotations about which candidate produced it.
type Result struct {
	PNG              []byte
	Model            string
	Quality          string
	Size             string
	EstimatedCostUSD *float64
	UsedFallback     bool
}

// canvasSizes maps requested aspect ratios to the provider's supported canvas
// sizes. Unknown ratios fall back to square.
var canvasSizes = map[string]string{
	"1:1":  "1024x1024",
	"4:5":  "1024x1024",
	"3:4":  "1024x1024",
	"9:16": "1024x1536",
	"16:9": "1536x1024",
}

// SizeForAspectRatio maps an aspect ratio onto the bounded provider size set.
func SizeForAspectRatio(aspectRatio string) string {
	if size, ok := canvasSizes[aspectRatio]; ok {
		return size
	}
	return "1024x1024"
}

// offlineDims are the canvas dimensions used by the offline renderer.
var offlineDims = map[string][2]int{
	"1:1":  {1200, 1200},
	"4:5":  {1200, 1500},
	"3:4":  {1200, 1600},
	"16:9": {1600, 900},
	"9:16": {900, 1600},
}

func dimsForAspectRatio(aspectRatio string) (int, int) {
	if d, ok := offlineDims[aspectRatio]; ok {
		return d[0], d[1]
	}
	return 1200, 1200
}
