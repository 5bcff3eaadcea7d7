// Package sanitize exposes HTML sanitization as an opaque capability. The
// client never interprets markup itself; user-generated content is passed
// through a Sanitizer before it is posted or surfaced in view models.
package sanitize

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips unsafe markup from untrusted HTML.
type Sanitizer interface {
	Sanitize(html string) string
}

type policy struct {
	p *bluemonday.Policy
}

func (s policy) Sanitize(html string) string {
	return s.p.Sanitize(html)
}

// Default returns a Sanitizer backed by bluemonday's user-generated-content
// policy, extended to keep the attributes media messages rely on.
func Default() Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "crossorigin").OnElements("img", "video", "a", "span")
	p.AllowAttrs("controls", "autoplay", "muted", "playsinline", "src").OnElements("video")
	return policy{p: p}
}
