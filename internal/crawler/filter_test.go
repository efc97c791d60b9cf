package crawler

import (
	"errors"
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://a.test/docs/page1")
	cases := []struct {
		name string
		raw  string
		base *url.URL
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", nil, "https://example.com/Path"},
		{"strips fragment", "https://a.test/page#section-2", nil, "https://a.test/page"},
		{"root-relative against base", "/about", base, "https://a.test/about"},
		{"relative against base", "page2", base, "https://a.test/docs/page2"},
		{"protocol-relative against base", "//cdn.test/lib", base, "https://cdn.test/lib"},
		{"keeps query", "https://a.test/search?q=go&page=2", nil, "https://a.test/search?q=go&page=2"},
		{"trims whitespace", "  https://a.test/x  ", nil, "https://a.test/x"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.raw, tc.base)
			if err != nil {
				t.Fatalf("normalize %q: %v", tc.raw, err)
			}
			if got.String() != tc.want {
				t.Fatalf("normalize %q = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"no scheme no base", "example.com/page"},
		{"relative without base", "/about"},
		{"unsupported scheme", "ftp://a.test/file"},
		{"mailto", "mailto:someone@a.test"},
		{"javascript", "javascript:void(0)"},
		{"missing host", "https://"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Normalize(tc.raw, nil); !errors.Is(err, ErrInvalidURL) {
				t.Fatalf("normalize %q err = %v, want ErrInvalidURL", tc.raw, err)
			}
		})
	}
}

func TestRuleSetDefaultExclusions(t *testing.T) {
	t.Parallel()

	rules, err := NewRuleSet(nil)
	if err != nil {
		t.Fatalf("new rule set: %v", err)
	}

	excluded := []string{
		"https://site.test/login",
		"https://site.test/wp-LOGIN.php",
		"https://site.test/admin/panel",
		"https://site.test/user/account/settings",
		"https://site.test/checkout",
		"https://site.test/files/report.pdf",
		"https://site.test/download/setup.exe",
	}
	for _, u := range excluded {
		if !rules.Excluded(u) {
			t.Errorf("%q should be excluded", u)
		}
	}

	allowed := []string{
		"https://site.test/",
		"https://site.test/articles/go",
		"https://site.test/blog/2024/release-notes",
		"https://site.test/docs.html",
	}
	for _, u := range allowed {
		if rules.Excluded(u) {
			t.Errorf("%q should not be excluded", u)
		}
	}
}

func TestRuleSetExtraPatterns(t *testing.T) {
	t.Parallel()

	rules, err := NewRuleSet([]string{`.*\?sort=.*`, `.*archive.*`})
	if err != nil {
		t.Fatalf("new rule set: %v", err)
	}
	if !rules.Excluded("https://site.test/list?sort=price") {
		t.Fatal("extra pattern did not apply")
	}
	if !rules.Excluded("https://site.test/ARCHIVE/2020") {
		t.Fatal("extra patterns should match case-insensitively")
	}
	if rules.Excluded("https://site.test/list") {
		t.Fatal("unmatched url excluded")
	}
}

func TestRuleSetBadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewRuleSet([]string{"("})
	if !errors.Is(err, ErrBadPattern) {
		t.Fatalf("err = %v, want ErrBadPattern", err)
	}
}

func TestRuleSetIgnoresBlankPatterns(t *testing.T) {
	t.Parallel()

	rules, err := NewRuleSet([]string{"", "   "})
	if err != nil {
		t.Fatalf("blank patterns should be skipped: %v", err)
	}
	if rules.Excluded("https://site.test/articles/go") {
		t.Fatal("blank patterns must not exclude anything")
	}
}
