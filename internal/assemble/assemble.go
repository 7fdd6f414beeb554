// Package assemble walks unified blocks in document order, resolves a
// conversion rule per block and grows the output document, then folds in
// extraction-discovered images as a post-pass.
package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/extract"
	"github.com/dgallion1/planmirror/internal/pmtree"
	"github.com/dgallion1/planmirror/internal/propose"
	"github.com/dgallion1/planmirror/internal/rules"
)

// Cursor sentinels. Unstarted means alignment has not produced blocks
// yet; finished means every block has been emitted.
const (
	CursorUnstarted = -1
	CursorFinished  = -2
)

// State is one snapshot of a document run. Steps never mutate a snapshot
// they were given; they return a new one (structural sharing allowed), so
// a persisted snapshot stays a valid resume point. PageIndex/BlockIndex
// record the last successfully emitted block; resuming continues one step
// past them.
type State struct {
	PDFPath        string                 `json:"pdfPath"`
	SemanticPages  []extract.SemanticPage `json:"semanticPages,omitempty"`
	StylePages     []extract.StylePage    `json:"stylePages,omitempty"`
	ZippedPages    []*align.ZippedPage    `json:"zippedPages,omitempty"`
	PageIndex      int                    `json:"pageIndex"`
	BlockIndex     int                    `json:"blockIndex"`
	ImagesInserted bool                   `json:"imagesInserted"`
	Doc            *pmtree.Document       `json:"proseMirrorDoc"`
}

// NewState starts a fresh run over the two extraction outputs.
func NewState(pdfPath string, semantic []extract.SemanticPage, style []extract.StylePage) *State {
	return &State{
		PDFPath:       pdfPath,
		SemanticPages: semantic,
		StylePages:    style,
		PageIndex:     CursorUnstarted,
		BlockIndex:    CursorUnstarted,
		Doc:           pmtree.NewDocument(),
	}
}

func (s *State) with(doc *pmtree.Document, pageIndex, blockIndex int) *State {
	next := *s
	next.Doc = doc
	next.PageIndex = pageIndex
	next.BlockIndex = blockIndex
	return &next
}

// nextPosition returns the position of the block after the cursor,
// skipping pages with no blocks. ok is false once the corpus is
// exhausted.
func (s *State) nextPosition() (pageIndex, blockIndex int, ok bool) {
	if s.PageIndex == CursorFinished {
		return 0, 0, false
	}
	pi, bi := s.PageIndex, s.BlockIndex+1
	if s.PageIndex == CursorUnstarted {
		pi, bi = 0, 0
	}
	for pi < len(s.ZippedPages) {
		if bi < len(s.ZippedPages[pi].UnifiedBlocks) {
			return pi, bi, true
		}
		pi++
		bi = 0
	}
	return 0, 0, false
}

// Assembler drives a run. The registry may grow during a run (accepted
// proposals are registered for reuse); memoized resolutions are never
// recomputed, so registry growth cannot change an already-emitted block.
type Assembler struct {
	aligner    *align.Aligner
	registry   *rules.Registry
	proposer   propose.Proposer
	sequential bool
	log        *slog.Logger
}

func New(aligner *align.Aligner, registry *rules.Registry, proposer propose.Proposer, sequential bool, log *slog.Logger) *Assembler {
	return &Assembler{
		aligner:    aligner,
		registry:   registry,
		proposer:   proposer,
		sequential: sequential,
		log:        log,
	}
}

// Run executes the state machine to completion: align, emit every block,
// insert images. On a fatal error the returned state is the last good
// snapshot so the caller can persist the partial document (crash-only:
// whatever was produced is never thrown away).
func (a *Assembler) Run(ctx context.Context, s *State) (*State, error) {
	s = a.Align(s)

	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		pi, bi, ok := s.nextPosition()
		if !ok {
			break
		}
		next, err := a.EmitBlock(ctx, s, pi, bi)
		if err != nil {
			return s, err
		}
		s = next
	}

	if s.PageIndex != CursorFinished {
		s = s.with(s.Doc, CursorFinished, CursorFinished)
	}

	return a.ReconcileImages(s), nil
}

// Align produces the unified blocks. Skipped when a prior run already
// aligned (presence of the output field marks completion).
func (a *Assembler) Align(s *State) *State {
	if s.ZippedPages != nil {
		return s
	}
	next := *s
	next.ZippedPages = a.aligner.ZipPages(s.SemanticPages, s.StylePages, a.sequential)
	total := 0
	for _, p := range next.ZippedPages {
		total += len(p.UnifiedBlocks)
	}
	a.log.Info("aligned pages", "pages", len(next.ZippedPages), "blocks", total)
	return &next
}

// EmitBlock resolves the rule for the block at (pageIndex, blockIndex),
// constructs its node and returns a snapshot with the node appended and
// the cursor advanced.
func (a *Assembler) EmitBlock(ctx context.Context, s *State, pageIndex, blockIndex int) (*State, error) {
	page := s.ZippedPages[pageIndex]
	block := page.UnifiedBlocks[blockIndex]

	node, err := a.resolveAndConstruct(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("page %d block %d (%q): %w",
			page.Page, blockIndex, truncate(block.SemanticItem.Value, 80), err)
	}

	if node.Attrs == nil {
		node.Attrs = &pmtree.Attrs{}
	}
	node.Attrs.UnifiedBlockID = block.ID

	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("page %d block %d (%q): invalid node: %w",
			page.Page, blockIndex, truncate(block.SemanticItem.Value, 80), err)
	}

	doc := s.Doc.WithContent(pmtree.Append(s.Doc.Content, node))
	return s.with(doc, pageIndex, blockIndex), nil
}

// resolveAndConstruct applies the memoized rule if one was recorded,
// otherwise matches the registry in order, falling back to the proposer.
// The block's ResolvedRuleID is the only field mutated in place; blocks
// are keyed by position, never structurally shared.
func (a *Assembler) resolveAndConstruct(ctx context.Context, block *align.UnifiedBlock) (*pmtree.Node, error) {
	if block.ResolvedRuleID != "" {
		rule, err := a.registry.Get(block.ResolvedRuleID)
		if err != nil {
			return nil, fmt.Errorf("memoized rule: %w", err)
		}
		return rule.Construct(block.SemanticItem, block.StyleItems)
	}

	if rule, ok := a.registry.Match(block); ok {
		block.ResolvedRuleID = rule.ID
		return rule.Construct(block.SemanticItem, block.StyleItems)
	}

	if a.proposer == nil {
		return nil, fmt.Errorf("no rule matches block %s and no proposer is configured", block.ID)
	}

	a.log.Info("no rule matched, proposing", "block_id", block.ID, "match_method", block.MatchMethod)
	proposal, err := a.proposer.ProposeRule(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("propose rule: %w", err)
	}
	block.ResolvedRuleID = proposal.RuleID
	if proposal.Rule != nil {
		a.registry.Register(proposal.Rule)
	}
	return proposal.Node, nil
}

// ReconcileImages runs the image post-pass once.
func (a *Assembler) ReconcileImages(s *State) *State {
	if s.ImagesInserted {
		return s
	}
	next := *s
	next.Doc = InsertImages(s.Doc, s.ZippedPages)
	next.ImagesInserted = true
	a.log.Info("image pass complete", "nodes", len(next.Doc.Content))
	return &next
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
