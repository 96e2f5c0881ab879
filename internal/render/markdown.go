package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"famtree/internal/types"
)

// SchemaMarkdown describes relations as a markdown document.
func SchemaMarkdown(infos []types.RelationInfo) string {
	var b strings.Builder
	b.WriteString("# Schema\n\n")
	b.WriteString("| Relation | Arity | Facts | Rules |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", info.Name, info.Arity, info.Facts, len(info.Rules))
	}

	b.WriteString("\n## Rules\n\n")
	for _, info := range infos {
		for _, r := range info.Rules {
			fmt.Fprintf(&b, "- `%s`\n", r)
		}
	}
	return b.String()
}

// Markdown renders md for a terminal.
func Markdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(md)
}
