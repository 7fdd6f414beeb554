package rules

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/planmirror/internal/pmtree"
)

// InlineNodes renders a semantic item's markdown value as inline text
// nodes. The cloud parser emits light markdown (emphasis, code spans)
// inside block values; block structure beyond that is ignored here since
// the semantic item already decided the block type. Runs with the same
// style are merged.
func InlineNodes(md string) []*pmtree.Node {
	src := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []*pmtree.Node
	emit := func(txt, style string) {
		if txt == "" {
			return
		}
		if n := len(out); n > 0 {
			last := out[n-1]
			if lastStyle(last) == style {
				last.Text += txt
				return
			}
		}
		if style == "" {
			out = append(out, pmtree.NewText(txt))
		} else {
			out = append(out, pmtree.NewStyledText(txt, style))
		}
	}

	var walk func(n ast.Node, style string)
	walk = func(n ast.Node, style string) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				emit(string(t.Value(src)), style)
				if t.SoftLineBreak() || t.HardLineBreak() {
					emit(" ", style)
				}
			case *ast.Emphasis:
				s := "em"
				if t.Level >= 2 {
					s = "strong"
				}
				walk(c, s)
			case *ast.CodeSpan:
				walk(c, "code")
			default:
				walk(c, style)
			}
		}
	}

	first := true
	for b := doc.FirstChild(); b != nil; b = b.NextSibling() {
		if !first {
			emit(" ", "")
		}
		first = false
		walk(b, "")
	}

	if len(out) == 0 && strings.TrimSpace(md) != "" {
		out = append(out, pmtree.NewText(md))
	}
	return out
}

func lastStyle(n *pmtree.Node) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs.Style
}
