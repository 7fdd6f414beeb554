package align

import (
	"testing"

	"github.com/dgallion1/planmirror/internal/extract"
)

func semText(value string, bbox extract.BBox) extract.SemanticItem {
	return extract.SemanticItem{Kind: extract.KindText, Page: 1, Value: value, BBox: bbox}
}

func styleText(text string, bbox [4]float64) extract.StyleItem {
	return extract.StyleItem{Kind: extract.KindText, Page: 1, Text: text, Font: "Helvetica", Size: 12, BBox: bbox}
}

func TestAlign_BBoxMatch(t *testing.T) {
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("Scope of work", extract.BBox{X: 10, Y: 100, W: 200, H: 20}),
	}
	style := []extract.StyleItem{
		styleText("Scope of work", [4]float64{12, 102, 150, 115}),
	}

	blocks := a.Align(semantic, style)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].MatchMethod != MethodBBox {
		t.Errorf("expected method %q, got %q", MethodBBox, blocks[0].MatchMethod)
	}
	if len(blocks[0].StyleItems) != 1 {
		t.Errorf("expected 1 style item, got %d", len(blocks[0].StyleItems))
	}
}

func TestAlign_BBoxMarginInflation(t *testing.T) {
	// The span sits 3 units outside the semantic box; the default margin
	// of 5 still captures it.
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("Totals", extract.BBox{X: 10, Y: 100, W: 50, H: 10}),
	}
	style := []extract.StyleItem{
		styleText("Totals", [4]float64{63, 100, 90, 110}),
	}

	blocks := a.Align(semantic, style)
	if blocks[0].MatchMethod != MethodBBox {
		t.Errorf("expected method %q, got %q", MethodBBox, blocks[0].MatchMethod)
	}
}

func TestAlign_FuzzyFallbackJoinsRun(t *testing.T) {
	// No semantic bbox, so geometry is skipped and the fuzzy pass must
	// grow a run across both fragments.
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("Kitchen Remodel Proposal", extract.BBox{}),
	}
	style := []extract.StyleItem{
		styleText("Kitchen Remodel", [4]float64{10, 10, 100, 20}),
		styleText("Proposal", [4]float64{10, 30, 100, 40}),
	}

	blocks := a.Align(semantic, style)
	if blocks[0].MatchMethod != MethodFuzzyText {
		t.Fatalf("expected method %q, got %q", MethodFuzzyText, blocks[0].MatchMethod)
	}
	if len(blocks[0].StyleItems) != 2 {
		t.Errorf("expected run of 2 style items, got %d", len(blocks[0].StyleItems))
	}
}

func TestAlign_StyleItemConsumedOnce(t *testing.T) {
	// Two semantic items with the same text: only one can own the single
	// matching span, the other degrades to none.
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("Notes", extract.BBox{}),
		semText("Notes", extract.BBox{}),
	}
	style := []extract.StyleItem{
		styleText("Notes", [4]float64{10, 10, 50, 20}),
	}

	blocks := a.Align(semantic, style)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].MatchMethod != MethodFuzzyText {
		t.Errorf("first block: expected %q, got %q", MethodFuzzyText, blocks[0].MatchMethod)
	}
	if blocks[1].MatchMethod != MethodNone {
		t.Errorf("second block: expected %q, got %q", MethodNone, blocks[1].MatchMethod)
	}
	if len(blocks[1].StyleItems) != 0 {
		t.Errorf("second block should own no style items, got %d", len(blocks[1].StyleItems))
	}
}

func TestAlign_CaptionlessImageMatchesByBBox(t *testing.T) {
	// Image items from the cloud parser usually have no caption text.
	// Geometry must still pair them with the overlapping image span.
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		{Kind: extract.KindImage, Page: 1, Value: "", BBox: extract.BBox{X: 50, Y: 100, W: 200, H: 100}},
	}
	style := []extract.StyleItem{
		{Kind: extract.KindImage, Page: 1, Src: "doc/fig1.png", BBox: [4]float64{50, 100, 250, 200}},
	}

	blocks := a.Align(semantic, style)
	if blocks[0].MatchMethod != MethodBBox {
		t.Fatalf("expected method %q, got %q", MethodBBox, blocks[0].MatchMethod)
	}
	if len(blocks[0].StyleItems) != 1 {
		t.Fatalf("expected 1 style item, got %d", len(blocks[0].StyleItems))
	}
	if blocks[0].StyleItems[0].Src != "doc/fig1.png" {
		t.Errorf("expected the image span, got %+v", blocks[0].StyleItems[0])
	}
}

func TestAlign_EverySemanticItemYieldsBlock(t *testing.T) {
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("alpha", extract.BBox{}),
		semText("", extract.BBox{}),
		semText("completely unrelated", extract.BBox{}),
	}
	style := []extract.StyleItem{
		styleText("alpha", [4]float64{0, 0, 10, 10}),
	}

	blocks := a.Align(semantic, style)
	if len(blocks) != len(semantic) {
		t.Fatalf("expected %d blocks, got %d", len(semantic), len(blocks))
	}
	if blocks[1].MatchMethod != MethodNone {
		t.Errorf("empty-text block: expected %q, got %q", MethodNone, blocks[1].MatchMethod)
	}
	if blocks[2].MatchMethod != MethodNone {
		t.Errorf("unmatched block: expected %q, got %q", MethodNone, blocks[2].MatchMethod)
	}
	for i, b := range blocks {
		if b.ID == "" {
			t.Errorf("block %d has no id", i)
		}
	}
}

func TestAlign_ImageSpansIgnoredByFuzzy(t *testing.T) {
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("caption text", extract.BBox{}),
	}
	style := []extract.StyleItem{
		{Kind: extract.KindImage, Page: 1, Src: "doc/img1.png", BBox: [4]float64{0, 0, 10, 10}},
		styleText("caption text", [4]float64{0, 20, 50, 30}),
	}

	blocks := a.Align(semantic, style)
	if len(blocks[0].StyleItems) != 1 {
		t.Fatalf("expected 1 style item, got %d", len(blocks[0].StyleItems))
	}
	if blocks[0].StyleItems[0].Kind != extract.KindText {
		t.Errorf("fuzzy pass must skip image spans, matched %q", blocks[0].StyleItems[0].Kind)
	}
}

func TestAlignSequential_CursorAdvances(t *testing.T) {
	a := New(DefaultOptions())
	semantic := []extract.SemanticItem{
		semText("first paragraph", extract.BBox{}),
		semText("second paragraph", extract.BBox{}),
	}
	style := []extract.StyleItem{
		styleText("first paragraph", [4]float64{0, 0, 10, 10}),
		styleText("second paragraph", [4]float64{0, 20, 10, 30}),
	}

	blocks := a.AlignSequential(semantic, style)
	for i, b := range blocks {
		if b.MatchMethod != MethodSequentialText {
			t.Errorf("block %d: expected %q, got %q", i, MethodSequentialText, b.MatchMethod)
		}
		if len(b.StyleItems) != 1 {
			t.Fatalf("block %d: expected 1 style item, got %d", i, len(b.StyleItems))
		}
	}
	if blocks[0].StyleItems[0].Text != "first paragraph" {
		t.Errorf("block 0 matched %q", blocks[0].StyleItems[0].Text)
	}
	if blocks[1].StyleItems[0].Text != "second paragraph" {
		t.Errorf("block 1 matched %q", blocks[1].StyleItems[0].Text)
	}
}

func TestZipPages_PairsByPageNumber(t *testing.T) {
	a := New(DefaultOptions())
	semPages := []extract.SemanticPage{
		{Page: 1, Items: []extract.SemanticItem{semText("page one", extract.BBox{})}},
		{Page: 2, Items: []extract.SemanticItem{semText("page two", extract.BBox{})}},
	}
	stylePages := []extract.StylePage{
		{Page: 2, Items: []extract.StyleItem{styleText("page two", [4]float64{0, 0, 10, 10})}},
		{Page: 1, Items: []extract.StyleItem{styleText("page one", [4]float64{0, 0, 10, 10})}},
	}

	zipped := a.ZipPages(semPages, stylePages, false)
	if len(zipped) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(zipped))
	}
	if zipped[0].Page != 1 || zipped[1].Page != 2 {
		t.Fatalf("pages out of order: %d, %d", zipped[0].Page, zipped[1].Page)
	}
	if zipped[0].UnifiedBlocks[0].StyleItems[0].Text != "page one" {
		t.Errorf("page 1 paired with wrong style page")
	}
	if zipped[1].UnifiedBlocks[0].StyleItems[0].Text != "page two" {
		t.Errorf("page 2 paired with wrong style page")
	}
}
