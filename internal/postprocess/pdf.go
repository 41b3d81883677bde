package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// printDPI is the embedding resolution for the paged document.
const printDPI = 300.0

const mmPerInch = 25.4

// pdfEpoch pins the document creation date so conversion is byte-deterministic.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// PNGToPDF wraps a PNG into a single-page PDF sized to the image at 300 DPI.
// The raster content is embedded losslessly.
func PNGToPDF(pngBytes []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	widthMM := float64(cfg.Width) / printDPI * mmPerInch
	heightMM := float64(cfg.Height) / printDPI * mmPerInch

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: widthMM, Ht: heightMM},
	})
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(pngBytes))
	pdf.AddPage()
	pdf.ImageOptions("page", 0, 0, widthMM, heightMM, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
