// Package export renders an assembled document to external formats.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/planmirror/internal/pmtree"
)

// Heading sizes in half-points, indexed by level-1.
var headingSizes = []string{"40", "32", "28", "26", "24", "22"}

// DOCX writes the document to a .docx file. The rendering is flat:
// headings and paragraphs keep their text and basic inline emphasis,
// tables become tab-separated lines, images are referenced by src (the
// image files live next to the output, not inside the archive).
func DOCX(doc *pmtree.Document, path string) error {
	w := docx.New().WithDefaultTheme()

	for _, node := range doc.Content {
		if err := writeNode(w, node); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create docx: %w", err)
	}
	defer f.Close()

	if _, err := w.WriteTo(f); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func writeNode(w *docx.Docx, node *pmtree.Node) error {
	switch node.Type {
	case pmtree.TypeHeading:
		level := 1
		if node.Attrs != nil && node.Attrs.Level > 0 {
			level = node.Attrs.Level
		}
		size := headingSizes[len(headingSizes)-1]
		if level <= len(headingSizes) {
			size = headingSizes[level-1]
		}
		w.AddParagraph().AddText(node.PlainText()).Size(size)

	case pmtree.TypeParagraph:
		para := w.AddParagraph()
		for _, inline := range node.Content {
			run := para.AddText(inline.PlainText())
			switch inlineStyle(inline) {
			case "strong":
				run.Bold()
			case "em":
				run.Italic()
			}
		}

	case pmtree.TypeTable:
		for _, row := range node.Content {
			var cells []string
			for _, cell := range row.Content {
				cells = append(cells, cell.PlainText())
			}
			w.AddParagraph().AddText(strings.Join(cells, "\t"))
		}

	case pmtree.TypeImage:
		src := ""
		if node.Attrs != nil {
			src = node.Attrs.Src
		}
		w.AddParagraph().AddText(fmt.Sprintf("[image: %s]", src)).Italic()

	case pmtree.TypeImageHeader:
		for _, child := range node.Content {
			if err := writeNode(w, child); err != nil {
				return err
			}
		}

	default:
		text := node.PlainText()
		if strings.TrimSpace(text) != "" {
			w.AddParagraph().AddText(text)
		}
	}
	return nil
}

func inlineStyle(n *pmtree.Node) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs.Style
}
