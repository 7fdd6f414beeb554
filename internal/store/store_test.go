package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dgallion1/planmirror/internal/pmtree"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "planmirror.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc() *pmtree.Document {
	heading := pmtree.NewHeading(1, "Kitchen Remodel")
	heading.Attrs.UnifiedBlockID = "blk-1"
	para := pmtree.NewParagraph(pmtree.NewText("Scope of work."))
	para.Attrs = &pmtree.Attrs{UnifiedBlockID: "blk-2"}
	img := pmtree.NewImage("doc/p1.png", "An image from the PDF", "Page 1 image")
	return pmtree.NewDocument().WithContent([]*pmtree.Node{heading, para, img})
}

func TestSaveAndLoadDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docID, err := s.SaveDocument(ctx, "Town Plans", "Kitchen Remodel", "kitchen-remodel", "plans/kitchen.pdf", sampleDoc())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if docID == "" {
		t.Fatal("expected a document id")
	}

	loaded, err := s.LoadDocument(ctx, docID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Content) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(loaded.Content))
	}

	types := []string{pmtree.TypeHeading, pmtree.TypeParagraph, pmtree.TypeImage}
	for i, want := range types {
		if loaded.Content[i].Type != want {
			t.Errorf("node %d: expected %q, got %q", i, want, loaded.Content[i].Type)
		}
	}
	if loaded.Content[0].Content[0].Text != "Kitchen Remodel" {
		t.Errorf("heading text did not round-trip: %+v", loaded.Content[0])
	}
	if loaded.Content[0].Attrs.UnifiedBlockID != "blk-1" {
		t.Errorf("attrs did not round-trip: %+v", loaded.Content[0].Attrs)
	}
	if loaded.Content[2].Attrs.Src != "doc/p1.png" {
		t.Errorf("image attrs did not round-trip: %+v", loaded.Content[2].Attrs)
	}
}

func TestVerifyLinks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docID, err := s.SaveDocument(ctx, "Town Plans", "t", "t", "", sampleDoc())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.VerifyLinks(ctx, docID); err != nil {
		t.Errorf("expected consistent links, got %v", err)
	}
}

func TestListDocuments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, "Town Plans", "First", "first", "a.pdf", sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDocument(ctx, "Town Plans", "Second", "second", "b.pdf", sampleDoc()); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	for _, d := range docs {
		if d.ID == "" || d.Title == "" {
			t.Errorf("incomplete document info: %+v", d)
		}
	}
}

func TestSaveDocument_ReplacesBlocksOnResave(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.SaveDocument(ctx, "Town Plans", "Chapter 1", "chapter-1", "a.pdf", sampleDoc())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	smaller := pmtree.NewDocument().WithContent([]*pmtree.Node{
		pmtree.NewParagraph(pmtree.NewText("revised")),
	})
	second, err := s.SaveDocument(ctx, "Town Plans", "Chapter 1", "chapter-1", "a.pdf", smaller)
	if err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if second != first {
		t.Errorf("re-save must keep the document id: %s vs %s", second, first)
	}

	loaded, err := s.LoadDocument(ctx, first)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Content) != 1 {
		t.Fatalf("old blocks not replaced: %d nodes", len(loaded.Content))
	}
	if loaded.Content[0].Content[0].Text != "revised" {
		t.Errorf("unexpected content %+v", loaded.Content[0])
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("re-save must not create a second document, got %d", len(docs))
	}
	if docs[0].Collection != "Town Plans" {
		t.Errorf("unexpected collection %q", docs[0].Collection)
	}
}

func TestLoadDocument_Unknown(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadDocument(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown document id")
	}
}

func TestSaveDocument_Empty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docID, err := s.SaveDocument(ctx, "Town Plans", "Empty", "empty", "", pmtree.NewDocument())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.LoadDocument(ctx, docID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Content) != 0 {
		t.Errorf("expected empty document, got %d nodes", len(loaded.Content))
	}
}
