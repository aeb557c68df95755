package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeUGC(t *testing.T) {
	t.Parallel()
	out := SanitizeUGC(`  <p onclick="x()">Hi <script>alert(1)</script><b>there</b></p>  `)
	assert.Equal(t, "<p>Hi <b>there</b></p>", out)
}

func TestStripTags(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Is the flat available?", StripTags("<i>Is the flat available?</i>"))
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()
	html, err := RenderMarkdown("# Deposit\n\n**Two** months\n\n<script>alert(1)</script>\n\n[site](https://example.com)")
	require.NoError(t, err)
	assert.Contains(t, html, `<h1 id="deposit">Deposit</h1>`)
	assert.Contains(t, html, "<strong>Two</strong>")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "nofollow")
}

func TestCheckLength(t *testing.T) {
	t.Parallel()
	assert.False(t, CheckLength("", 10))
	assert.True(t, CheckLength("नमस्ते", 6))
	assert.False(t, CheckLength(strings.Repeat("a", 11), 10))
}
