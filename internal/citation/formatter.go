// Package citation turns remote agent trace events into display-ready citations.
package citation

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"faq-agent/internal/domain"
)

const (
	DefaultLimit      = 2
	DefaultSnippetLen = 280
)

// Formatter maps trace events to citations. Order follows first appearance in the
// trace and a document is cited once, keeping its first passage.
type Formatter struct {
	limit      int
	snippetLen int
}

type Option func(*Formatter)

// WithLimit caps the number of citations per answer. Zero or less keeps all.
func WithLimit(n int) Option {
	return func(f *Formatter) {
		f.limit = n
	}
}

// WithSnippetLength caps snippet runes. Zero or less keeps whole snippets.
func WithSnippetLength(n int) Option {
	return func(f *Formatter) {
		f.snippetLen = n
	}
}

func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{limit: DefaultLimit, snippetLen: DefaultSnippetLen}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format returns the citations for events. The result is never nil.
func (f *Formatter) Format(events []domain.TraceEvent) []domain.Citation {
	out := make([]domain.Citation, 0)
	seen := make(map[string]struct{})
	for _, ev := range events {
		for _, ref := range ev.References {
			id := strings.TrimSpace(ref.URI)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, domain.Citation{
				DocumentID:   id,
				DocumentName: DocumentName(id),
				Location:     location(ref.Page),
				Snippet:      f.snippet(ref.Snippet),
			})
			if f.limit > 0 && len(out) == f.limit {
				return out
			}
		}
	}
	return out
}

// DocumentName derives a readable name from a source URI:
// "s3://bucket/policies/Policy-A.pdf" becomes "Policy-A.pdf".
func DocumentName(uri string) string {
	uri = strings.TrimSpace(uri)
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" || u.Path == "/" {
		return uri
	}
	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}

func location(page int) string {
	if page <= 0 {
		return ""
	}
	return "page " + strconv.Itoa(page)
}

func (f *Formatter) snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if f.snippetLen <= 0 || utf8.RuneCountInString(s) <= f.snippetLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:f.snippetLen])) + "…"
}
