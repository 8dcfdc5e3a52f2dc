package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean_KeepsFormattingTags(t *testing.T) {
	s := NewReportSanitizer()

	in := `<h2>Findings</h2><p>Impacted teeth: <strong>18, 28</strong></p><ul><li>Review molar roots</li></ul>`
	assert.Equal(t, in, s.Clean(in))
}

func TestClean_StripsScripts(t *testing.T) {
	s := NewReportSanitizer()

	out := s.Clean(`<p>ok</p><script>alert("x")</script>`)
	assert.Equal(t, "<p>ok</p>", out)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "alert")
}

func TestClean_StripsEventHandlersAndJSURLs(t *testing.T) {
	s := NewReportSanitizer()

	out := s.Clean(`<div onclick="steal()">report</div><a href="javascript:run()">link</a><img src=x onerror=hack()>`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "report")
}

func TestClean_Idempotent(t *testing.T) {
	s := NewReportSanitizer()

	inputs := []string{
		`<p>ok</p><script>alert(1)</script>`,
		`<h1 onmouseover="x()">Title</h1><table><tr><td colspan="2">cell</td></tr></table>`,
		`<p>broken <b>markup`,
		`plain text, no markup at all`,
	}
	for _, in := range inputs {
		once := s.Clean(in)
		assert.Equal(t, once, s.Clean(once), "sanitize should be idempotent for %q", in)
	}
}

func TestClean_MalformedNeverPanics(t *testing.T) {
	s := NewReportSanitizer()

	assert.NotPanics(t, func() {
		s.Clean(strings.Repeat("<div><p><<<", 100))
		s.Clean("<p")
		s.Clean("")
	})
}
