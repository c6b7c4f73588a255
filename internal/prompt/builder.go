package prompt

import (
	"fmt"
	"strings"
)

// Builder accumulates directive sentences and joins them into one
// instruction string. Conditional appends go through AddIf so each
// directive can be asserted on in isolation.
type Builder struct {
	directives []string
}

// Add appends a directive unconditionally.
func (b *Builder) Add(directive string) *Builder {
	if directive != "" {
		b.directives = append(b.directives, directive)
	}
	return b
}

// Addf appends a formatted directive.
func (b *Builder) Addf(format string, args ...any) *Builder {
	return b.Add(fmt.Sprintf(format, args...))
}

// AddIf appends the directive only when cond holds.
func (b *Builder) AddIf(cond bool, directive string) *Builder {
	if cond {
		b.Add(directive)
	}
	return b
}

// AddAll appends every directive in order.
func (b *Builder) AddAll(directives []string) *Builder {
	for _, d := range directives {
		b.Add(d)
	}
	return b
}

// String joins the accumulated directives with newlines.
func (b *Builder) String() string {
	return strings.Join(b.directives, "\n")
}

// languageNames maps common language codes to the human-readable
// directive target. Unknown codes fall through to a code-quoting form.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"de": "German",
	"fr": "French",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"ru": "Russian",
	"uk": "Ukrainian",
	"ja": "Japanese",
	"zh": "Chinese",
	"ko": "Korean",
}

// languageDirective renders the required-output-language instruction as
// a human-readable sentence rather than a bare locale code.
func languageDirective(code string) string {
	base := strings.ToLower(code)
	if i := strings.IndexAny(base, "-_"); i > 0 {
		base = base[:i]
	}
	if name, ok := languageNames[base]; ok {
		return fmt.Sprintf("Respond exclusively in %s.", name)
	}
	return fmt.Sprintf("Respond exclusively in the language identified by the code %q.", code)
}
