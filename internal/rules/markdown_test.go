package rules

import (
	"testing"

	"github.com/dgallion1/planmirror/internal/pmtree"
)

func TestInlineNodes_PlainText(t *testing.T) {
	nodes := InlineNodes("Just a sentence.")
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].Type != pmtree.TypeText || nodes[0].Text != "Just a sentence." {
		t.Errorf("unexpected node: %+v", nodes[0])
	}
	if nodes[0].Attrs != nil {
		t.Errorf("plain text must carry no style, got %+v", nodes[0].Attrs)
	}
}

func TestInlineNodes_EmphasisAndStrong(t *testing.T) {
	nodes := InlineNodes("before *em* and **strong** after")
	var styles []string
	var texts []string
	for _, n := range nodes {
		styles = append(styles, lastStyle(n))
		texts = append(texts, n.Text)
	}

	wantStyles := []string{"", "em", "", "strong", ""}
	wantTexts := []string{"before ", "em", " and ", "strong", " after"}
	if len(nodes) != len(wantStyles) {
		t.Fatalf("expected %d nodes, got %d (%q)", len(wantStyles), len(nodes), texts)
	}
	for i := range wantStyles {
		if styles[i] != wantStyles[i] {
			t.Errorf("node %d: expected style %q, got %q", i, wantStyles[i], styles[i])
		}
		if texts[i] != wantTexts[i] {
			t.Errorf("node %d: expected text %q, got %q", i, wantTexts[i], texts[i])
		}
	}
}

func TestInlineNodes_MergesAdjacentSameStyle(t *testing.T) {
	// A soft line break inside one paragraph becomes a space merged into
	// the surrounding unstyled run.
	nodes := InlineNodes("line one\nline two")
	if len(nodes) != 1 {
		t.Fatalf("expected 1 merged node, got %d", len(nodes))
	}
	if nodes[0].Text != "line one line two" {
		t.Errorf("unexpected merged text %q", nodes[0].Text)
	}
}

func TestInlineNodes_Empty(t *testing.T) {
	if nodes := InlineNodes(""); len(nodes) != 0 {
		t.Errorf("expected no nodes for empty input, got %d", len(nodes))
	}
}
