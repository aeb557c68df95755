package validation

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	ugcOnce   sync.Once
	ugcPolicy *bluemonday.Policy

	strictPolicy = bluemonday.StrictPolicy()

	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
)

func ugc() *bluemonday.Policy {
	ugcOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
		ugcPolicy.RequireNoFollowOnLinks(true)
		ugcPolicy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return ugcPolicy
}

// SanitizeUGC trims s and strips markup outside the user-generated-content allowlist.
func SanitizeUGC(s string) string {
	return strings.TrimSpace(ugc().Sanitize(s))
}

// StripTags removes all markup, for short plain-text fields like titles and chat lines.
func StripTags(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// RenderMarkdown renders Markdown to sanitized HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return ugc().Sanitize(buf.String()), nil
}

// Length reports the length of s in characters.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// CheckLength returns false when s is empty or longer than max characters.
func CheckLength(s string, max int) bool {
	n := Length(s)
	return n > 0 && n <= max
}
