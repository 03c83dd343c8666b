// Package render turns comment text into HTML that is safe to embed in a page.
package render

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)
	policy = newPolicy()
)

// Comments get links and basic formatting but no images or headings.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowElements("p", "br", "strong", "em", "del", "code", "pre", "blockquote", "ul", "ol", "li")
	return p
}

// Comment renders markdown content to sanitized HTML. If markdown conversion
// fails the escaped source is returned.
func Comment(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return html.EscapeString(content)
	}
	return string(policy.SanitizeBytes(buf.Bytes()))
}

// Plain strips all markup, for contexts such as notifications and the CLI.
func Plain(content string) string {
	return html.UnescapeString(bluemonday.StrictPolicy().Sanitize(content))
}

// AuthorLink returns a nofollow anchor for an author's website, or the
// escaped name when there is no usable website.
func AuthorLink(name, website string) string {
	if website == "" {
		return html.EscapeString(name)
	}
	a := `<a href="` + html.EscapeString(website) + `">` + html.EscapeString(name) + `</a>`
	return policy.Sanitize(a)
}
