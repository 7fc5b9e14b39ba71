package render

import (
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xxxsen/bingio/internal/conversation"
)

const (
	CancelledMarker = "[Generation cancelled]"
	TypingIndicator = "..."
)

var md = goldmark.New()

// Markdown flattens markdown into terminal friendly plain text.
func Markdown(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(source))
				if node.HardLineBreak() || node.SoftLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.URL(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if !entering {
				sb.WriteString(" (" + string(node.Destination) + ")")
			}
		case *ast.ListItem:
			if entering {
				sb.WriteString("• ")
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(source))
				}
				sb.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				sb.WriteByte('\n')
				if n.NextSibling() != nil && n.Kind() != ast.KindTextBlock {
					sb.WriteByte('\n')
				}
			}
		case *ast.ThematicBreak:
			if entering {
				sb.WriteString("---\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimRight(sb.String(), "\n")
}

// Body renders the parts of m. Parts of unknown kind are skipped.
func Body(m conversation.Message) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		switch p.Kind {
		case conversation.PartText:
			sb.WriteString(p.Value)
		}
	}
	out := sb.String()
	if m.Role == conversation.RoleAssistant {
		out = Markdown(out)
	}
	switch {
	case m.Outcome == conversation.OutcomeCancelled:
		if out != "" {
			out += "\n"
		}
		out += CancelledMarker
	case m.Streaming():
		out += TypingIndicator
	}
	return out
}

// Timestamp is the settle time of m, or its creation time while it streams.
func Timestamp(m conversation.Message) string {
	t := m.SettledAt
	if t.IsZero() {
		if m.Streaming() {
			return ""
		}
		t = m.CreatedAt
	}
	return t.In(time.Local).Format("15:04")
}

// Duration formats a recorded generation duration in milliseconds.
func Duration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}
