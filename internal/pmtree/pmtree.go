package pmtree

import "fmt"

// Node types. These discriminant values are part of the external JSON
// contract consumed by the editor frontend and the block store; renaming
// one is a breaking change.
const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeText           = "text"
	TypeImage          = "image"
	TypeImageHeader    = "imageHeader"
	TypeTable          = "table"
	TypeTableRow       = "tableRow"
	TypeTableCell      = "tableCell"
	TypeTableHeader    = "tableHeader"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeBlockquote     = "blockquote"
	TypeCodeBlock      = "codeBlock"
	TypeHorizontalRule = "horizontalRule"
	TypeHardBreak      = "hardBreak"
	TypeCitation       = "citation"
)

var knownTypes = map[string]bool{
	TypeDoc:            true,
	TypeParagraph:      true,
	TypeHeading:        true,
	TypeText:           true,
	TypeImage:          true,
	TypeImageHeader:    true,
	TypeTable:          true,
	TypeTableRow:       true,
	TypeTableCell:      true,
	TypeTableHeader:    true,
	TypeBulletList:     true,
	TypeOrderedList:    true,
	TypeListItem:       true,
	TypeBlockquote:     true,
	TypeCodeBlock:      true,
	TypeHorizontalRule: true,
	TypeHardBreak:      true,
	TypeCitation:       true,
}

// KnownType reports whether t is part of the node vocabulary.
func KnownType(t string) bool {
	return knownTypes[t]
}

// Attrs carries the optional attributes a node may have. Fields are a
// union across node types; zero values are omitted from JSON.
type Attrs struct {
	UnifiedBlockID string `json:"unifiedBlockId,omitempty"`
	Level          int    `json:"level,omitempty"`
	Src            string `json:"src,omitempty"`
	Alt            string `json:"alt,omitempty"`
	Title          string `json:"title,omitempty"`
	Caption        string `json:"caption,omitempty"`
	Style          string `json:"style,omitempty"`
	Label          string `json:"label,omitempty"`
	Language       string `json:"language,omitempty"`
	Start          int    `json:"start,omitempty"`
	Colspan        int    `json:"colspan,omitempty"`
	Rowspan        int    `json:"rowspan,omitempty"`
}

// Node is one unit of the assembled rich-text tree. Leaf text nodes carry
// Text; everything else carries Content.
type Node struct {
	Type    string  `json:"type"`
	Attrs   *Attrs  `json:"attrs,omitempty"`
	Content []*Node `json:"content,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// Document is the single root of an assembled document.
type Document struct {
	Type    string  `json:"type"`
	Content []*Node `json:"content"`
}

// NewDocument returns an empty document root.
func NewDocument() *Document {
	return &Document{Type: TypeDoc, Content: []*Node{}}
}

// WithContent returns a new document sharing no top-level content slice
// with the receiver. Node pointers are shared; callers must not mutate
// nodes already placed in a document.
func (d *Document) WithContent(content []*Node) *Document {
	return &Document{Type: TypeDoc, Content: content}
}

// Append returns a new content slice with n appended. The input slice is
// never mutated, so a snapshot holding the old slice stays valid.
func Append(content []*Node, n *Node) []*Node {
	out := make([]*Node, 0, len(content)+1)
	out = append(out, content...)
	return append(out, n)
}

// InsertAt returns a new content slice with n inserted at index i.
// i == len(content) appends.
func InsertAt(content []*Node, i int, n *Node) []*Node {
	out := make([]*Node, 0, len(content)+1)
	out = append(out, content[:i]...)
	out = append(out, n)
	return append(out, content[i:]...)
}

// NewText returns a leaf text node.
func NewText(text string) *Node {
	return &Node{Type: TypeText, Text: text}
}

// NewStyledText returns a leaf text node with an inline style such as
// "strong" or "em".
func NewStyledText(text, style string) *Node {
	return &Node{Type: TypeText, Text: text, Attrs: &Attrs{Style: style}}
}

// NewParagraph wraps inline nodes in a paragraph.
func NewParagraph(inline ...*Node) *Node {
	return &Node{Type: TypeParagraph, Content: inline}
}

// NewHeading returns a heading node at the given level.
func NewHeading(level int, text string) *Node {
	if level < 1 {
		level = 1
	}
	if text == "" {
		text = " "
	}
	return &Node{
		Type:    TypeHeading,
		Attrs:   &Attrs{Level: level},
		Content: []*Node{NewText(text)},
	}
}

// NewImage returns an image node.
func NewImage(src, alt, title string) *Node {
	return &Node{Type: TypeImage, Attrs: &Attrs{Src: src, Alt: alt, Title: title}}
}

// NewTable builds a table node from cell text, one row per outer slice.
func NewTable(rows [][]string) *Node {
	t := &Node{Type: TypeTable}
	for _, row := range rows {
		r := &Node{Type: TypeTableRow}
		for _, cell := range row {
			r.Content = append(r.Content, &Node{
				Type:    TypeTableCell,
				Content: []*Node{NewParagraph(NewText(cell))},
			})
		}
		t.Content = append(t.Content, r)
	}
	return t
}

// Validate walks the tree and rejects nodes outside the vocabulary, so a
// construction bug fails loudly instead of producing JSON the editor
// cannot load.
func (n *Node) Validate() error {
	if !KnownType(n.Type) {
		return fmt.Errorf("unknown node type %q", n.Type)
	}
	if n.Type == TypeText && len(n.Content) > 0 {
		return fmt.Errorf("text node must not have content")
	}
	for _, c := range n.Content {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PlainText flattens every text leaf under n into one string.
func (n *Node) PlainText() string {
	if n.Type == TypeText {
		return n.Text
	}
	var out string
	for _, c := range n.Content {
		t := c.PlainText()
		if t == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += t
	}
	return out
}

// BlockID returns the unifiedBlockId attribute, or "".
func (n *Node) BlockID() string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs.UnifiedBlockID
}
