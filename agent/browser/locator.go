package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Locator builds an XPath query for a visible label.
type Locator struct {
	Name  string
	XPath func(label string) string
}

// foldUpper and foldLower are the XPath translate() tables used to lowercase
// page text. They cover ASCII and the Latin-1 letters; text in other scripts
// only matches the substring strategy when it is already lowercase.
var foldUpper, foldLower = latin1FoldTables()

func latin1FoldTables() (string, string) {
	var upper, lower strings.Builder
	for r := 'A'; r <= 'Z'; r++ {
		upper.WriteRune(r)
		lower.WriteRune(r + 'a' - 'A')
	}
	// À..Þ map to à..þ; U+00D7 (×) has no case
	for r := rune(0xC0); r <= 0xDE; r++ {
		if r == 0xD7 {
			continue
		}
		upper.WriteRune(r)
		lower.WriteRune(r + 0x20)
	}
	return upper.String(), lower.String()
}

// foldLabel lowercases a label; a Caser is stateful so each call gets its own.
func foldLabel(s string) string {
	return cases.Lower(language.Und).String(s)
}

// DefaultLocators returns the click strategies in priority order.
func DefaultLocators() []Locator {
	return []Locator{
		{
			Name: "exact-text",
			XPath: func(label string) string {
				return fmt.Sprintf("//*[text()[normalize-space(.)=%s]]", xpathLiteral(label))
			},
		},
		{
			Name: "role-button",
			XPath: func(label string) string {
				lit := xpathLiteral(label)
				return fmt.Sprintf(
					"//*[self::button or @role='button' or (self::input and (@type='submit' or @type='button'))]"+
						"[contains(normalize-space(.), %[1]s) or contains(@aria-label, %[1]s) or contains(@value, %[1]s)]",
					lit)
			},
		},
		{
			Name: "role-link",
			XPath: func(label string) string {
				lit := xpathLiteral(label)
				return fmt.Sprintf(
					"//*[self::a or @role='link'][contains(normalize-space(.), %[1]s) or contains(@aria-label, %[1]s)]",
					lit)
			},
		},
		{
			Name: "text-substring",
			XPath: func(label string) string {
				return fmt.Sprintf(
					"//*[text()[contains(translate(normalize-space(.), '%s', '%s'), %s)]]",
					foldUpper, foldLower, xpathLiteral(foldLabel(label)))
			},
		},
	}
}

// LocatorError aggregates the per-strategy failures of a click.
type LocatorError struct {
	Label  string
	Errors []error
}

func (e *LocatorError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("no locator matched %q: %s", e.Label, strings.Join(parts, "; "))
}

// Unwrap exposes ErrNoLocatorMatched together with each strategy error.
func (e *LocatorError) Unwrap() []error {
	return append([]error{ErrNoLocatorMatched}, e.Errors...)
}

// FirstMatch tries each locator in order and returns the name of the first
// one for which try succeeds. When all fail it returns a *LocatorError.
func FirstMatch(ctx context.Context, locators []Locator, label string, try func(ctx context.Context, xpath string) error) (string, error) {
	lerr := &LocatorError{Label: label}
	if len(locators) == 0 {
		return "", lerr
	}
	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			lerr.Errors = append(lerr.Errors, err)
			return "", lerr
		}
		err := try(ctx, loc.XPath(label))
		if err == nil {
			return loc.Name, nil
		}
		lerr.Errors = append(lerr.Errors, fmt.Errorf("%s: %w", loc.Name, err))
	}
	return "", lerr
}

// IsNoMatch reports whether err is a failed locator search.
func IsNoMatch(err error) bool {
	return errors.Is(err, ErrNoLocatorMatched)
}

// NormalizeLabel folds compatibility characters and collapses whitespace.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(label)), " ")
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
