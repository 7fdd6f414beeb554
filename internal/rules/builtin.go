package rules

import (
	"fmt"
	"strings"

	"github.com/dgallion1/planmirror/internal/extract"
	"github.com/dgallion1/planmirror/internal/pmtree"
)

// Builtin returns a registry populated with the standard rule set.
// Registration is an explicit startup step; order here is precedence
// order.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(&Rule{
		ID:          "heading",
		Description: "standard heading element",
		Conditions: []Condition{
			{Source: SourceSemantic, Field: "type", Operator: "==", Value: extract.KindHeading},
		},
		OutputNodeType: pmtree.TypeHeading,
		Construct:      ConstructHeading,
	})
	r.Register(&Rule{
		ID:          "semantic_text_to_paragraph",
		Description: "converts semantic text items to paragraph nodes",
		Conditions: []Condition{
			{Source: SourceSemantic, Field: "type", Operator: "==", Value: extract.KindText},
		},
		OutputNodeType: pmtree.TypeParagraph,
		Construct:      ConstructParagraph,
	})
	r.Register(&Rule{
		ID:          "semantic_table_to_table",
		Description: "converts semantic table items to table nodes",
		Conditions: []Condition{
			{Source: SourceSemantic, Field: "type", Operator: "==", Value: extract.KindTable},
		},
		OutputNodeType: pmtree.TypeTable,
		Construct:      ConstructTable,
	})
	r.Register(&Rule{
		ID:          "semantic_image",
		Description: "converts semantic image items to image nodes",
		Conditions: []Condition{
			{Source: SourceSemantic, Field: "type", Operator: "==", Value: extract.KindImage},
		},
		OutputNodeType: pmtree.TypeImage,
		Construct:      ConstructImage,
	})
	return r
}

// BuilderFor returns the standard constructor for an output node type.
// Declarative rules (YAML, LLM proposals) bind their construct step
// through this table, which keeps node construction inside the checked
// vocabulary.
func BuilderFor(nodeType string) (ConstructFunc, error) {
	switch nodeType {
	case pmtree.TypeHeading:
		return ConstructHeading, nil
	case pmtree.TypeParagraph:
		return ConstructParagraph, nil
	case pmtree.TypeTable:
		return ConstructTable, nil
	case pmtree.TypeImage:
		return ConstructImage, nil
	}
	if pmtree.KnownType(nodeType) {
		return nil, fmt.Errorf("node type %q has no declarative builder", nodeType)
	}
	return nil, fmt.Errorf("unknown node type %q", nodeType)
}

// ConstructHeading builds a heading from the semantic level and value.
func ConstructHeading(sem extract.SemanticItem, style []extract.StyleItem) (*pmtree.Node, error) {
	return pmtree.NewHeading(sem.Level, sem.Value), nil
}

// ConstructParagraph builds a paragraph, rendering any inline markdown in
// the semantic value.
func ConstructParagraph(sem extract.SemanticItem, style []extract.StyleItem) (*pmtree.Node, error) {
	inline := InlineNodes(sem.Value)
	if len(inline) == 0 {
		inline = []*pmtree.Node{pmtree.NewText(" ")}
	}
	return pmtree.NewParagraph(inline...), nil
}

// ConstructTable builds a table node from the semantic rows.
func ConstructTable(sem extract.SemanticItem, style []extract.StyleItem) (*pmtree.Node, error) {
	if len(sem.Rows) == 0 {
		return nil, fmt.Errorf("table item on page %d has no rows", sem.Page)
	}
	return pmtree.NewTable(sem.Rows), nil
}

// ConstructImage builds an image node. The src comes from the first style
// image span aligned with the block; the semantic value, when present,
// becomes the alt text.
func ConstructImage(sem extract.SemanticItem, style []extract.StyleItem) (*pmtree.Node, error) {
	var src string
	for _, item := range style {
		if item.Kind == extract.KindImage && item.Src != "" {
			src = item.Src
			break
		}
	}
	if src == "" {
		return nil, fmt.Errorf("image item on page %d has no style src", sem.Page)
	}
	alt := strings.TrimSpace(sem.Value)
	if alt == "" {
		alt = "An image from the PDF"
	}
	return pmtree.NewImage(src, alt, fmt.Sprintf("Page %d image", sem.Page)), nil
}
