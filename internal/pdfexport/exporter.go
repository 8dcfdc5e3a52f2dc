package pdfexport

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ErrNoReport is returned when export is requested before an analysis
// has produced a report. Checked before any PDF library call.
var ErrNoReport = errors.New("no report to export")

// ImageAttachment is one source image embedded into the document.
type ImageAttachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Document is everything the exporter needs to render one report PDF.
type Document struct {
	Title      string
	Filename   string
	ReportHTML string // sanitized report markup
	Images     []ImageAttachment
}

// Exporter renders analysis reports as downloadable PDF documents.
type Exporter struct{}

func NewExporter() *Exporter { return &Exporter{} }

// CaptionFor implements the captioning policy: the primary image is the
// panorex itself, later images get positional captions.
func CaptionFor(index int) string {
	if index == 0 {
		return "Pano"
	}
	return fmt.Sprintf("Image %d", index+1)
}

// Render produces the PDF bytes. Library failures at any stage come back
// as errors, never panics.
func (e *Exporter) Render(doc Document) (out []byte, err error) {
	if doc.ReportHTML == "" {
		return nil, ErrNoReport
	}
	// gofpdf reports most failures through pdf.Error(), but image decode
	// can panic on truncated input.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("pdf generation failed: %v", r)
		}
	}()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, doc.Title, "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, time.Now().Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	for _, b := range flattenHTML(doc.ReportHTML) {
		switch b.kind {
		case blockHeading:
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 13)
			pdf.MultiCell(0, 7, b.text, "", "L", false)
		case blockListItem:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, "- "+b.text, "", "L", false)
		case blockTableRow:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 6, b.text, "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, b.text, "", "L", false)
			pdf.Ln(1)
		}
	}

	for i, img := range doc.Images {
		kind, ok := imageType(img.MIMEType)
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, CaptionFor(i), "", 1, "L", false, 0, "")
		if !ok {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(0, 6, fmt.Sprintf("%s (%s) could not be embedded", img.Filename, img.MIMEType), "", "L", false)
			continue
		}
		name := fmt.Sprintf("attachment-%d", i)
		opts := gofpdf.ImageOptions{ImageType: kind, ReadDpi: true}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		pdf.ImageOptions(name, 15, pdf.GetY()+2, 180, 0, false, opts, 0, "")
	}

	if pdf.Err() {
		return nil, fmt.Errorf("pdf generation failed: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output failed: %w", err)
	}
	return buf.Bytes(), nil
}

// imageType maps MIME types to gofpdf image type tags. HEIC and PDF
// uploads are analyzable but not embeddable.
func imageType(mime string) (string, bool) {
	switch mime {
	case "image/png":
		return "PNG", true
	case "image/jpeg", "image/jpg":
		return "JPG", true
	default:
		return "", false
	}
}
