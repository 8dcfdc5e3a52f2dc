package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from the analysis report before it is
// rendered or exported. The report originates from a remote service and
// is untrusted. Best-effort cleanup: malformed markup is repaired or
// dropped, never an error. Idempotent.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewReportSanitizer builds the allow-list policy for analysis reports:
// structural and formatting tags only, no scripting, no event handlers,
// no external resource loading.
func NewReportSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"strong", "b", "em", "i", "u", "sub", "sup", "small",
		"table", "thead", "tbody", "tr", "th", "td",
		"blockquote", "pre", "code",
	)
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")

	return &Sanitizer{policy: p}
}

// Clean returns markup safe to inject into the document tree.
func (s *Sanitizer) Clean(html string) string {
	return s.policy.Sanitize(html)
}
