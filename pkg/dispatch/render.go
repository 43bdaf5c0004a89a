package dispatch

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// md renders notification bodies. Tables are part of the rich-notification
// format, so the table extension is always on.
var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderHTML converts a Markdown body into the HTML sent through the
// rich-notification path. On a conversion failure the raw text is sent
// preformatted instead.
func RenderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "<pre>" + html.EscapeString(markdown) + "</pre>"
	}
	return buf.String()
}
