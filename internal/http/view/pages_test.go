package view

import (
	"strings"
	"testing"
)

func TestRenderNotFound(t *testing.T) {
	html, err := RenderNotFound(PageData{
		Title:       "Link not found",
		FallbackURL: "https://acme.example",
		StatusLabel: "not_found",
	})
	if err != nil {
		t.Fatalf("RenderNotFound returned error: %v", err)
	}
	for _, want := range []string{"Link not found", "https://acme.example", "not_found"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRenderScheduled_OmitsRedirectWithoutFallback(t *testing.T) {
	html, err := RenderScheduled(PageData{Title: "Link not available", RedirectSeconds: 5})
	if err != nil {
		t.Fatalf("RenderScheduled returned error: %v", err)
	}
	if strings.Contains(html, "setTimeout") {
		t.Error("expected no timed redirect without a fallback URL")
	}
}

func TestRenderWarning_EscapesTarget(t *testing.T) {
	html, err := RenderWarning(PageData{
		Title:       "Check this destination",
		TargetURL:   `https://example.org/?q=<script>alert(1)</script>`,
		ContinueURL: "/abc/go/tok",
	})
	if err != nil {
		t.Fatalf("RenderWarning returned error: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("target URL was not escaped")
	}
	if !strings.Contains(html, "/abc/go/tok") {
		t.Error("continue link missing")
	}
}
