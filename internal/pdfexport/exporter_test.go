package pdfexport

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

func TestRender_RejectsEmptyReport(t *testing.T) {
	e := NewExporter()

	_, err := e.Render(Document{Title: "Panorex Report", Filename: "report.pdf"})
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestRender_ReportWithImage(t *testing.T) {
	e := NewExporter()

	out, err := e.Render(Document{
		Title:      "Panorex Report",
		Filename:   "report.pdf",
		ReportHTML: `<h2>Findings</h2><p>No pathology detected.</p><ul><li>Wisdom teeth present</li></ul>`,
		Images: []ImageAttachment{
			{Filename: "pano.png", MIMEType: "image/png", Data: samplePNG(t)},
			{Filename: "detail.png", MIMEType: "image/png", Data: samplePNG(t)},
		},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "output should be a PDF document")
	assert.Greater(t, len(out), 1000)
}

func TestRender_UnembeddableImageDegrades(t *testing.T) {
	e := NewExporter()

	out, err := e.Render(Document{
		Title:      "Panorex Report",
		ReportHTML: "<p>ok</p>",
		Images: []ImageAttachment{
			{Filename: "pano.heic", MIMEType: "image/heic", Data: []byte{0x00, 0x01}},
		},
	})
	require.NoError(t, err, "unsupported image types must not fail the export")
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_CorruptImageReportsFailure(t *testing.T) {
	e := NewExporter()

	_, err := e.Render(Document{
		Title:      "Panorex Report",
		ReportHTML: "<p>ok</p>",
		Images: []ImageAttachment{
			{Filename: "pano.png", MIMEType: "image/png", Data: []byte("definitely not a png")},
		},
	})
	assert.Error(t, err, "library failure must surface as an error, not a panic")
}

func TestCaptionPolicy(t *testing.T) {
	assert.Equal(t, "Pano", CaptionFor(0))
	assert.Equal(t, "Image 2", CaptionFor(1))
	assert.Equal(t, "Image 3", CaptionFor(2))
}

func TestFlattenHTML(t *testing.T) {
	blocks := flattenHTML(`<h2>Findings</h2><p>Two   impacted
	molars.</p><ul><li>18</li><li>28</li></ul><table><tr><th>Tooth</th><th>Status</th></tr><tr><td>18</td><td>impacted</td></tr></table>`)

	require.Len(t, blocks, 6)
	assert.Equal(t, blockHeading, blocks[0].kind)
	assert.Equal(t, "Findings", blocks[0].text)
	assert.Equal(t, "Two impacted molars.", blocks[1].text)
	assert.Equal(t, blockListItem, blocks[2].kind)
	assert.Equal(t, "Tooth  |  Status", blocks[4].text)
}

func TestFlattenHTML_PlainText(t *testing.T) {
	blocks := flattenHTML("no markup at all")
	require.Len(t, blocks, 1)
	assert.Equal(t, "no markup at all", blocks[0].text)
}
