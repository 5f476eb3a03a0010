package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/commonweal/volunteerhub/internal/app/system/htmlsanitize"
)

func TestSanitize_Empty(t *testing.T) {
	if got := htmlsanitize.Sanitize(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSanitize_PlainText(t *testing.T) {
	if got := htmlsanitize.Sanitize("Beach cleanup, all welcome!"); got != "Beach cleanup, all welcome!" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestSanitize_SafeHTML(t *testing.T) {
	input := "<p><strong>Bring</strong> gloves and <em>water</em></p>"
	if got := htmlsanitize.Sanitize(input); got != input {
		t.Errorf("expected safe HTML preserved, got %q", got)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	input := "<p>Hello</p><script>alert('xss')</script>"
	if got := htmlsanitize.Sanitize(input); got != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestSanitize_RemovesOnclick(t *testing.T) {
	input := `<button onclick="alert('xss')">Click</button>`
	if got := htmlsanitize.Sanitize(input); got == input {
		t.Error("expected onclick attribute to be removed")
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	input := `<a href="javascript:alert('xss')">Click</a>`
	if got := htmlsanitize.Sanitize(input); got == input {
		t.Error("expected javascript: href to be removed")
	}
}

func TestSanitize_AllowsSafeLinks(t *testing.T) {
	input := `<a href="https://example.com/signup">Sign up</a>`
	got := htmlsanitize.Sanitize(input)
	// bluemonday adds rel="nofollow" but keeps the href
	if got == "" || !strings.Contains(got, "https://example.com/signup") {
		t.Errorf("expected safe link preserved, got %q", got)
	}
}

func TestText_StripsAllMarkup(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Plain bio", "Plain bio"},
		{"<b>Bold</b> name", "Bold name"},
		{"<script>alert(1)</script>ok", "ok"},
	}
	for _, tt := range tests {
		if got := htmlsanitize.Text(tt.input); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
