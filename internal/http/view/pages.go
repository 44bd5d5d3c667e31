// Package view renders the branded pages the redirect flow can land on.
// Handlers pass data in; nothing here touches storage or transport.
package view

import (
	"bytes"
	"html/template"
)

// PageData provides the dynamic fields shared by the branded pages.
type PageData struct {
	Title  string
	Tenant string
	// FaviconRef is a tenant asset reference; empty uses the platform icon.
	FaviconRef string
	Code       string
	// StatusLabel is the evaluated resolution outcome, shown for
	// diagnostics on error pages.
	StatusLabel string
	// FallbackURL is offered on scheduling pages; the page auto-redirects
	// to it after RedirectSeconds.
	FallbackURL     string
	RedirectSeconds int
	// TargetURL and ContinueURL drive the warning page.
	TargetURL   string
	ContinueURL string
}

var pageTmpl = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{.Title}}</title>
	{{if .FaviconRef}}<link rel="icon" href="{{.FaviconRef}}" />{{end}}
	<style>
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: #0f172a;
			color: #e2e8f0;
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		.card {
			background: #1e293b;
			border: 1px solid #334155;
			border-radius: 12px;
			padding: 32px;
			width: min(480px, 92vw);
			text-align: center;
		}
		h1 { font-size: 1.4rem; margin: 0 0 8px; }
		p { color: #94a3b8; margin: 8px 0; }
		a.button {
			display: inline-block;
			margin-top: 16px;
			padding: 10px 24px;
			border-radius: 8px;
			background: #38bdf8;
			color: #0f172a;
			text-decoration: none;
			font-weight: 600;
		}
		.label { font-size: 0.75rem; color: #64748b; margin-top: 20px; }
	</style>
</head>
<body>
	<div class="card">{{end}}

{{define "foot"}}	{{if .StatusLabel}}<p class="label">{{.StatusLabel}}</p>{{end}}
	</div>
</body>
</html>{{end}}

{{define "not_found"}}{{template "head" .}}
		<h1>{{.Title}}</h1>
		<p>This short link does not exist or is no longer available.</p>
		{{if .FallbackURL}}<a class="button" href="{{.FallbackURL}}">Go to homepage</a>{{end}}
{{template "foot" .}}{{end}}

{{define "scheduled"}}{{template "head" .}}
		<h1>{{.Title}}</h1>
		<p>This short link is not available right now.</p>
		{{if .FallbackURL}}
		<p>You will be taken to <strong>{{.Tenant}}</strong> shortly.</p>
		<a class="button" href="{{.FallbackURL}}">Continue now</a>
		<script>
			setTimeout(function () {
				window.location.href = {{.FallbackURL}};
			}, {{.RedirectSeconds}} * 1000);
		</script>
		{{end}}
{{template "foot" .}}{{end}}

{{define "warning"}}{{template "head" .}}
		<h1>{{.Title}}</h1>
		<p>The destination of this link could not be reached when we last
		checked. It may be offline or unsafe.</p>
		<p><code>{{.TargetURL}}</code></p>
		<a class="button" href="{{.ContinueURL}}">Continue anyway</a>
{{template "foot" .}}{{end}}
`))

// RenderNotFound renders the branded missing/disabled-link page.
func RenderNotFound(data PageData) (string, error) {
	return render("not_found", data)
}

// RenderScheduled renders the expired/not-yet-active page with a timed
// redirect to the fallback URL.
func RenderScheduled(data PageData) (string, error) {
	return render("scheduled", data)
}

// RenderWarning renders the unreachable-destination interstitial with the
// signed continue link.
func RenderWarning(data PageData) (string, error) {
	return render("warning", data)
}

func render(name string, data PageData) (string, error) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
