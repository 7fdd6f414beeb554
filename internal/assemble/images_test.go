package assemble

import (
	"testing"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/extract"
	"github.com/dgallion1/planmirror/internal/pmtree"
)

func paragraphFor(block *align.UnifiedBlock, text string) *pmtree.Node {
	n := pmtree.NewParagraph(pmtree.NewText(text))
	n.Attrs = &pmtree.Attrs{UnifiedBlockID: block.ID}
	return n
}

func imageItem(page int, src string, y float64) extract.StyleItem {
	return extract.StyleItem{
		Kind: extract.KindImage,
		Page: page,
		Src:  src,
		BBox: [4]float64{50, y, 250, y + 100},
	}
}

func TestInsertImages_OrdersByPageAndY(t *testing.T) {
	blockP1 := &align.UnifiedBlock{ID: "b1", StyleItems: []extract.StyleItem{
		{Kind: extract.KindText, Page: 1, Text: "intro", BBox: [4]float64{72, 100, 400, 120}},
	}}
	blockP2 := &align.UnifiedBlock{ID: "b2", StyleItems: []extract.StyleItem{
		{Kind: extract.KindText, Page: 2, Text: "details", BBox: [4]float64{72, 90, 400, 110}},
	}}

	pages := []*align.ZippedPage{
		{Page: 1, UnifiedBlocks: []*align.UnifiedBlock{blockP1}, StyleItems: append(blockP1.StyleItems,
			imageItem(1, "doc/p1_late.png", 500),
		)},
		{Page: 2, UnifiedBlocks: []*align.UnifiedBlock{blockP2}, StyleItems: append(blockP2.StyleItems,
			imageItem(2, "doc/p2_early.png", 40),
		)},
	}

	doc := pmtree.NewDocument().WithContent([]*pmtree.Node{
		paragraphFor(blockP1, "intro"),
		paragraphFor(blockP2, "details"),
	})

	out := InsertImages(doc, pages)
	types := nodeSrcs(out)
	want := []string{"", "doc/p1_late.png", "doc/p2_early.png", ""}
	if len(out.Content) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(out.Content))
	}
	for i, w := range want {
		if types[i] != w {
			t.Errorf("node %d: expected src %q, got %q", i, w, types[i])
		}
	}
}

func TestInsertImages_SamePageAboveText(t *testing.T) {
	block := &align.UnifiedBlock{ID: "b1", StyleItems: []extract.StyleItem{
		{Kind: extract.KindText, Page: 1, Text: "middle", BBox: [4]float64{72, 300, 400, 320}},
	}}
	pages := []*align.ZippedPage{
		{Page: 1, UnifiedBlocks: []*align.UnifiedBlock{block}, StyleItems: append(block.StyleItems,
			imageItem(1, "doc/above.png", 100),
		)},
	}

	doc := pmtree.NewDocument().WithContent([]*pmtree.Node{paragraphFor(block, "middle")})
	out := InsertImages(doc, pages)
	if len(out.Content) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(out.Content))
	}
	if out.Content[0].Type != pmtree.TypeImage {
		t.Errorf("image above the text block must precede it, got %q first", out.Content[0].Type)
	}
}

func TestInsertImages_SamePageBelowText(t *testing.T) {
	block := &align.UnifiedBlock{ID: "b1", StyleItems: []extract.StyleItem{
		{Kind: extract.KindText, Page: 1, Text: "middle", BBox: [4]float64{72, 300, 400, 320}},
	}}
	pages := []*align.ZippedPage{
		{Page: 1, UnifiedBlocks: []*align.UnifiedBlock{block}, StyleItems: append(block.StyleItems,
			imageItem(1, "doc/below.png", 600),
		)},
	}

	doc := pmtree.NewDocument().WithContent([]*pmtree.Node{paragraphFor(block, "middle")})
	out := InsertImages(doc, pages)
	if len(out.Content) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(out.Content))
	}
	if out.Content[1].Type != pmtree.TypeImage {
		t.Errorf("image below the text block must follow it, got %q last", out.Content[1].Type)
	}
}

func TestInsertImages_ThreeOnOnePageAscending(t *testing.T) {
	pages := []*align.ZippedPage{
		{Page: 1, StyleItems: []extract.StyleItem{
			imageItem(1, "doc/y100.png", 100),
			imageItem(1, "doc/y200.png", 200),
			imageItem(1, "doc/y300.png", 300),
		}},
	}

	out := InsertImages(pmtree.NewDocument(), pages)
	got := nodeSrcs(out)
	want := []string{"doc/y100.png", "doc/y200.png", "doc/y300.png"}
	if len(got) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("node %d: expected src %q, got %q", i, w, got[i])
		}
	}
}

func TestInsertImages_SamePagePairKeepsOrderAroundText(t *testing.T) {
	block := &align.UnifiedBlock{ID: "b1", StyleItems: []extract.StyleItem{
		{Kind: extract.KindText, Page: 1, Text: "middle", BBox: [4]float64{72, 300, 400, 320}},
	}}
	pages := []*align.ZippedPage{
		{Page: 1, UnifiedBlocks: []*align.UnifiedBlock{block}, StyleItems: append(block.StyleItems,
			imageItem(1, "doc/top.png", 100),
			imageItem(1, "doc/bottom.png", 600),
		)},
	}

	doc := pmtree.NewDocument().WithContent([]*pmtree.Node{paragraphFor(block, "middle")})
	out := InsertImages(doc, pages)
	got := nodeSrcs(out)
	want := []string{"doc/top.png", "", "doc/bottom.png"}
	if len(got) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("node %d: expected src %q, got %q", i, w, got[i])
		}
	}
}

func TestInsertImages_DedupBySrc(t *testing.T) {
	block := &align.UnifiedBlock{ID: "b1"}
	pages := []*align.ZippedPage{
		{Page: 1, UnifiedBlocks: []*align.UnifiedBlock{block}, StyleItems: []extract.StyleItem{
			imageItem(1, "doc/already.png", 100),
		}},
	}

	existing := pmtree.NewImage("doc/already.png", "alt", "Page 1 image")
	doc := pmtree.NewDocument().WithContent([]*pmtree.Node{existing})

	out := InsertImages(doc, pages)
	if len(out.Content) != 1 {
		t.Fatalf("expected no insertion for a present src, got %d nodes", len(out.Content))
	}
}

func TestInsertImages_Idempotent(t *testing.T) {
	pages := []*align.ZippedPage{
		{Page: 1, StyleItems: []extract.StyleItem{
			imageItem(1, "doc/only.png", 100),
		}},
	}

	once := InsertImages(pmtree.NewDocument(), pages)
	twice := InsertImages(once, pages)
	if len(once.Content) != 1 {
		t.Fatalf("expected 1 node after first pass, got %d", len(once.Content))
	}
	if len(twice.Content) != len(once.Content) {
		t.Errorf("second pass inserted again: %d vs %d", len(twice.Content), len(once.Content))
	}
}

func TestInsertImages_AppendsWhenNoLaterNode(t *testing.T) {
	block := &align.UnifiedBlock{ID: "b1", StyleItems: []extract.StyleItem{
		{Kind: extract.KindText, Page: 1, Text: "only text", BBox: [4]float64{72, 100, 400, 120}},
	}}
	pages := []*align.ZippedPage{
		{Page: 1, UnifiedBlocks: []*align.UnifiedBlock{block}, StyleItems: append(block.StyleItems,
			imageItem(3, "doc/last_page.png", 50),
		)},
	}

	doc := pmtree.NewDocument().WithContent([]*pmtree.Node{paragraphFor(block, "only text")})
	out := InsertImages(doc, pages)
	if len(out.Content) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(out.Content))
	}
	last := out.Content[len(out.Content)-1]
	if last.Type != pmtree.TypeImage || last.Attrs.Src != "doc/last_page.png" {
		t.Errorf("image for a trailing page must be appended, got %+v", last)
	}
}

func TestInsertImages_DoesNotMutateInput(t *testing.T) {
	pages := []*align.ZippedPage{
		{Page: 1, StyleItems: []extract.StyleItem{imageItem(1, "doc/x.png", 10)}},
	}
	doc := pmtree.NewDocument()
	out := InsertImages(doc, pages)
	if len(doc.Content) != 0 {
		t.Errorf("input document mutated: %d nodes", len(doc.Content))
	}
	if len(out.Content) != 1 {
		t.Errorf("expected 1 node in output, got %d", len(out.Content))
	}
}

func nodeSrcs(doc *pmtree.Document) []string {
	out := make([]string, len(doc.Content))
	for i, n := range doc.Content {
		if n.Type == pmtree.TypeImage && n.Attrs != nil {
			out[i] = n.Attrs.Src
		}
	}
	return out
}
