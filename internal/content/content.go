package content

import (
	"errors"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const DefaultPreviewRunes = 40

var policy = bluemonday.StrictPolicy()

// Sanitize strips markup from a message body and returns plain text.
// Entities produced by the policy are decoded again since bodies are shown
// in a terminal, not a browser.
func Sanitize(input string) string {
	return html.UnescapeString(policy.Sanitize(input))
}

// ValidateMemberName checks that name can be embedded in a room identifier:
// non-empty, no surrounding or inner whitespace, and no '_' separator.
func ValidateMemberName(name string) error {
	if name == "" {
		return errors.New("member name cannot be empty")
	}
	if strings.Contains(name, "_") {
		return errors.New("member name cannot contain '_'")
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return errors.New("member name cannot contain whitespace")
	}
	return nil
}

// Preview flattens body to a single line and cuts it to at most max runes,
// appending an ellipsis when something was dropped.
func Preview(body string, max int) string {
	line := strings.Join(strings.Fields(body), " ")
	if max <= 0 {
		return line
	}
	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	return string(runes[:max]) + "…"
}
