package browser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLocators_Order(t *testing.T) {
	names := make([]string, 0, 4)
	for _, l := range DefaultLocators() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"exact-text", "role-button", "role-link", "text-substring"}, names)
}

func TestDefaultLocators_XPath(t *testing.T) {
	locs := DefaultLocators()

	assert.Equal(t, "//*[text()[normalize-space(.)='Sign up']]", locs[0].XPath("Sign up"))
	assert.Contains(t, locs[1].XPath("Sign up"), "self::button")
	assert.Contains(t, locs[1].XPath("Sign up"), "contains(@aria-label, 'Sign up')")
	assert.Contains(t, locs[2].XPath("Pricing"), "self::a or @role='link'")
	// 子串策略大小写不敏感
	assert.Contains(t, locs[3].XPath("Start FREE Trial"), "'start free trial'")
	assert.Contains(t, locs[3].XPath("x"), "translate(")
}

func TestFoldTables_MatchUnicodeLowercase(t *testing.T) {
	upper, lower := []rune(foldUpper), []rune(foldLower)
	require.Len(t, lower, len(upper))
	assert.NotContains(t, foldUpper, "×")

	pairs := make([]string, 0, 2*len(upper))
	for i, r := range upper {
		assert.Equal(t, string(lower[i]), foldLabel(string(r)), "fold of %q", r)
		pairs = append(pairs, string(r), string(lower[i]))
	}

	// translate() over the page text must reach the same form as the label
	translate := strings.NewReplacer(pairs...)
	tests := []struct {
		page  string
		label string
	}{
		{"ÉTAPE SUIVANTE", "étape"},
		{"Über uns", "ÜBER"},
		{"ÇA VA", "ça va"},
		{"START FREE TRIAL", "Free Trial"},
	}
	for _, tt := range tests {
		assert.Contains(t, translate.Replace(tt.page), foldLabel(tt.label), tt.page)
	}
	assert.Contains(t, DefaultLocators()[3].XPath("Étape"), "'étape'")
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"it's", `"it's"`},
		{`say "hi"`, `'say "hi"'`},
		{`it's "x"`, `concat('it', "'", 's "x"')`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, xpathLiteral(tt.in), tt.in)
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "Sign up", NormalizeLabel("  Sign \n  up "))
	// 全角字符折叠为 ASCII
	assert.Equal(t, "Buy Now", NormalizeLabel("Ｂｕｙ Ｎｏｗ"))
	assert.Equal(t, "", NormalizeLabel("   "))
}

func TestFirstMatch_FirstSuccessWins(t *testing.T) {
	var tried []string
	locs := []Locator{
		{Name: "a", XPath: func(l string) string { return "a:" + l }},
		{Name: "b", XPath: func(l string) string { return "b:" + l }},
		{Name: "c", XPath: func(l string) string { return "c:" + l }},
	}

	name, err := FirstMatch(context.Background(), locs, "go", func(_ context.Context, xpath string) error {
		tried = append(tried, xpath)
		if strings.HasPrefix(xpath, "b:") {
			return nil
		}
		return errors.New("not found")
	})

	require.NoError(t, err)
	assert.Equal(t, "b", name)
	assert.Equal(t, []string{"a:go", "b:go"}, tried, "c 不应被尝试")
}

func TestFirstMatch_AggregatesFailures(t *testing.T) {
	locs := DefaultLocators()
	calls := 0

	_, err := FirstMatch(context.Background(), locs, "Ghost", func(context.Context, string) error {
		calls++
		return context.DeadlineExceeded
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, IsNoMatch(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var lerr *LocatorError
	require.ErrorAs(t, err, &lerr)
	assert.Len(t, lerr.Errors, 4)
	assert.Contains(t, err.Error(), "exact-text")
	assert.Contains(t, err.Error(), "text-substring")
}

func TestFirstMatch_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := FirstMatch(ctx, DefaultLocators(), "x", func(context.Context, string) error {
		calls++
		cancel()
		return errors.New("miss")
	})

	assert.True(t, IsNoMatch(err))
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstMatch_NoLocators(t *testing.T) {
	_, err := FirstMatch(context.Background(), nil, "x", func(context.Context, string) error { return nil })
	assert.True(t, IsNoMatch(err))
}
