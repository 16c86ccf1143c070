package escape

import "github.com/microcosm-cc/bluemonday"

var ugcPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips everything but a conservative set of formatting
// elements and attributes from untrusted markup, for content that a template
// prints raw.
func SanitizeHTML(html string) string {
	return ugcPolicy.Sanitize(html)
}
