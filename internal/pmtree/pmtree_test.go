package pmtree

import (
	"encoding/json"
	"testing"
)

func TestNode_JSONShape(t *testing.T) {
	n := NewHeading(2, "Overview")
	n.Attrs.UnifiedBlockID = "blk-9"

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"type":"heading","attrs":{"unifiedBlockId":"blk-9","level":2},"content":[{"type":"text","text":"Overview"}]}`
	if string(data) != want {
		t.Errorf("unexpected JSON:\n got %s\nwant %s", data, want)
	}
}

func TestNode_JSONOmitsEmptyAttrs(t *testing.T) {
	data, err := json.Marshal(NewText("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"type":"text","text":"hi"}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestDocument_EmptyContentMarshalsAsArray(t *testing.T) {
	data, err := json.Marshal(NewDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"type":"doc","content":[]}` {
		t.Errorf("empty document must keep content as [], got %s", data)
	}
}

func TestAppend_DoesNotMutateInput(t *testing.T) {
	base := []*Node{NewText("a")}
	longer := Append(base, NewText("b"))
	Append(base, NewText("c"))

	if len(base) != 1 {
		t.Fatalf("input slice mutated: %d", len(base))
	}
	if len(longer) != 2 || longer[1].Text != "b" {
		t.Errorf("append result wrong: %+v", longer)
	}
}

func TestInsertAt(t *testing.T) {
	base := []*Node{NewText("a"), NewText("c")}
	out := InsertAt(base, 1, NewText("b"))

	if len(base) != 2 {
		t.Fatalf("input slice mutated: %d", len(base))
	}
	got := []string{out[0].Text, out[1].Text, out[2].Text}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("unexpected order: %v", got)
	}

	end := InsertAt(base, len(base), NewText("z"))
	if end[len(end)-1].Text != "z" {
		t.Errorf("insert at end must append, got %+v", end)
	}
}

func TestValidate(t *testing.T) {
	if err := NewTable([][]string{{"a", "b"}, {"c", "d"}}).Validate(); err != nil {
		t.Errorf("valid table rejected: %v", err)
	}

	if err := (&Node{Type: "hologram"}).Validate(); err == nil {
		t.Error("unknown type must be rejected")
	}

	nested := NewParagraph(&Node{Type: "hologram"})
	if err := nested.Validate(); err == nil {
		t.Error("validation must descend into content")
	}

	bad := &Node{Type: TypeText, Text: "x", Content: []*Node{NewText("y")}}
	if err := bad.Validate(); err == nil {
		t.Error("text node with content must be rejected")
	}
}

func TestHeading_Clamps(t *testing.T) {
	n := NewHeading(0, "")
	if n.Attrs.Level != 1 {
		t.Errorf("level must clamp to 1, got %d", n.Attrs.Level)
	}
	if n.Content[0].Text != " " {
		t.Errorf("empty text must become a single space, got %q", n.Content[0].Text)
	}
}

func TestPlainText(t *testing.T) {
	table := NewTable([][]string{{"a", "b"}})
	if got := table.PlainText(); got != "a b" {
		t.Errorf("expected %q, got %q", "a b", got)
	}
	if got := NewText("").PlainText(); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestBlockID(t *testing.T) {
	n := NewText("x")
	if n.BlockID() != "" {
		t.Errorf("node without attrs must have empty block id")
	}
	n.Attrs = &Attrs{UnifiedBlockID: "blk-1"}
	if n.BlockID() != "blk-1" {
		t.Errorf("unexpected block id %q", n.BlockID())
	}
}
