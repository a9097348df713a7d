package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// CleanMarkdown strips an outer code fence (```markdown ... ```) and
// surrounding whitespace so the document is ready to render.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") && len(cleaned) >= 6 {
		cleaned = strings.TrimPrefix(cleaned, "```markdown")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

// MarkdownToHTML renders GitHub-flavoured tables and standard markdown.
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := conv.Convert([]byte(CleanMarkdown(md)), &buf); err != nil {
		return "", fmt.Errorf("MARKDOWN_RENDER_ERROR: %w", err)
	}
	return buf.String(), nil
}
