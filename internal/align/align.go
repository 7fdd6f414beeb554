// Package align reconciles the two extraction views of a PDF page into
// unified blocks: one semantic item paired with the style spans that
// render it.
package align

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/planmirror/internal/extract"
)

// Match methods, in order of preference.
const (
	MethodBBox           = "bbox"
	MethodFuzzyText      = "fuzzyText"
	MethodSequentialText = "sequentialText"
	MethodLLM            = "llm"
	MethodNone           = "none"
)

// UnifiedBlock pairs one semantic item with zero or more style items from
// the same page. ResolvedRuleID starts empty and is assigned at most once
// by the assembler; everything else is immutable after alignment.
type UnifiedBlock struct {
	ID             string               `json:"id"`
	MatchMethod    string               `json:"matchMethod"`
	SemanticItem   extract.SemanticItem `json:"semanticItem"`
	StyleItems     []extract.StyleItem  `json:"styleItems"`
	ResolvedRuleID string               `json:"resolvedRuleId,omitempty"`
}

// ZippedPage holds one page's inputs and the unified blocks aligned from
// them. Document order is page order, then block order within the page.
type ZippedPage struct {
	Page          int                    `json:"page"`
	SemanticItems []extract.SemanticItem `json:"semanticItems"`
	StyleItems    []extract.StyleItem    `json:"styleItems"`
	UnifiedBlocks []*UnifiedBlock        `json:"unifiedBlocks"`
}

// Options control the matching thresholds. The defaults are the values
// the rule set was tuned against; change them only together with the
// rules.
type Options struct {
	BBoxMargin     float64 // inflation applied to the semantic box
	FuzzyThreshold float64 // minimum similarity ratio, exclusive
	GrowthLimit    float64 // stop extending a run past this length ratio
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		BBoxMargin:     5.0,
		FuzzyThreshold: 0.85,
		GrowthLimit:    1.5,
	}
}

// Aligner pairs semantic items with style items page by page.
type Aligner struct {
	opts Options
}

func New(opts Options) *Aligner {
	if opts.BBoxMargin == 0 {
		opts.BBoxMargin = 5.0
	}
	if opts.FuzzyThreshold == 0 {
		opts.FuzzyThreshold = 0.85
	}
	if opts.GrowthLimit == 0 {
		opts.GrowthLimit = 1.5
	}
	return &Aligner{opts: opts}
}

// ZipPages aligns every semantic page against the style page with the
// same page number. sequential selects the order-based fallback aligner
// for documents whose bounding boxes are unreliable.
func (a *Aligner) ZipPages(semPages []extract.SemanticPage, stylePages []extract.StylePage, sequential bool) []*ZippedPage {
	styleByPage := make(map[int][]extract.StyleItem, len(stylePages))
	for _, sp := range stylePages {
		styleByPage[sp.Page] = sp.Items
	}

	out := make([]*ZippedPage, 0, len(semPages))
	for _, sp := range semPages {
		styleItems := styleByPage[sp.Page]
		var blocks []*UnifiedBlock
		if sequential {
			blocks = a.AlignSequential(sp.Items, styleItems)
		} else {
			blocks = a.Align(sp.Items, styleItems)
		}
		out = append(out, &ZippedPage{
			Page:          sp.Page,
			SemanticItems: sp.Items,
			StyleItems:    styleItems,
			UnifiedBlocks: blocks,
		})
	}
	return out
}

// Align pairs one page's semantic items with its style items. Strategies
// are tried in order per semantic item: geometric overlap, then fuzzy
// whole-text match with greedy extension. Every semantic item yields
// exactly one block, and each style item is consumed at most once across
// the whole page.
func (a *Aligner) Align(semantic []extract.SemanticItem, style []extract.StyleItem) []*UnifiedBlock {
	used := make([]bool, len(style))
	blocks := make([]*UnifiedBlock, 0, len(semantic))

	for _, sem := range semantic {
		if idxs := a.bboxMatches(sem, style, used); len(idxs) > 0 {
			blocks = append(blocks, newBlock(MethodBBox, sem, consume(style, used, idxs)))
			continue
		}

		// Geometry is tried even for caption-less items (images usually
		// have no text); only the text strategies need a target.
		target := semanticText(sem)
		if strings.TrimSpace(target) == "" {
			blocks = append(blocks, newBlock(MethodNone, sem, nil))
			continue
		}

		if idxs := a.fuzzyMatch(target, style, used, 0); len(idxs) > 0 {
			blocks = append(blocks, newBlock(MethodFuzzyText, sem, consume(style, used, idxs)))
			continue
		}

		blocks = append(blocks, newBlock(MethodNone, sem, nil))
	}

	return blocks
}

// AlignSequential is the alternate pass for pages whose bounding boxes
// are unreliable: both lists are walked in parallel order and a run of
// style items is grown from the cursor until its concatenated text passes
// the fuzzy threshold.
func (a *Aligner) AlignSequential(semantic []extract.SemanticItem, style []extract.StyleItem) []*UnifiedBlock {
	used := make([]bool, len(style))
	blocks := make([]*UnifiedBlock, 0, len(semantic))
	cursor := 0

	for _, sem := range semantic {
		target := semanticText(sem)
		if strings.TrimSpace(target) == "" {
			blocks = append(blocks, newBlock(MethodNone, sem, nil))
			continue
		}

		idxs := a.fuzzyMatch(target, style, used, cursor)
		if len(idxs) == 0 {
			blocks = append(blocks, newBlock(MethodNone, sem, nil))
			continue
		}
		blocks = append(blocks, newBlock(MethodSequentialText, sem, consume(style, used, idxs)))
		cursor = idxs[len(idxs)-1] + 1
	}

	return blocks
}

// bboxMatches returns the indexes of all unused style items whose boxes
// intersect the semantic box inflated by the margin. Ties are all
// included; downstream rules decide how to weigh multiple spans.
func (a *Aligner) bboxMatches(sem extract.SemanticItem, style []extract.StyleItem, used []bool) []int {
	if sem.BBox.W == 0 && sem.BBox.H == 0 {
		return nil
	}
	var idxs []int
	for i, item := range style {
		if used[i] {
			continue
		}
		if a.intersects(item.BBox, sem.BBox) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

func (a *Aligner) intersects(span [4]float64, box extract.BBox) bool {
	x0, y0, x1, y1 := span[0], span[1], span[2], span[3]
	bx0 := box.X - a.opts.BBoxMargin
	by0 := box.Y - a.opts.BBoxMargin
	bx1 := box.X + box.W + a.opts.BBoxMargin
	by1 := box.Y + box.H + a.opts.BBoxMargin
	return !(x1 < bx0 || x0 > bx1 || y1 < by0 || y0 > by1)
}

// fuzzyMatch looks for an unused text item at or after start whose text
// clears the similarity threshold against target, extending the candidate
// with subsequent unused in-order text items (space-joined) when a single
// item falls short. Returns the indexes of the winning run, or nil.
func (a *Aligner) fuzzyMatch(target string, style []extract.StyleItem, used []bool, start int) []int {
	limit := int(a.opts.GrowthLimit * float64(len(target)))

	for i := start; i < len(style); i++ {
		if used[i] || style[i].Kind != extract.KindText {
			continue
		}

		combined := style[i].Text
		idxs := []int{i}
		if Similarity(combined, target) > a.opts.FuzzyThreshold {
			return idxs
		}

		for j := i + 1; j < len(style); j++ {
			if used[j] || style[j].Kind != extract.KindText {
				continue
			}
			combined = combined + " " + style[j].Text
			idxs = append(idxs, j)
			if Similarity(combined, target) > a.opts.FuzzyThreshold {
				return idxs
			}
			if len(combined) > limit {
				break
			}
		}
	}

	return nil
}

func consume(style []extract.StyleItem, used []bool, idxs []int) []extract.StyleItem {
	items := make([]extract.StyleItem, 0, len(idxs))
	for _, i := range idxs {
		used[i] = true
		items = append(items, style[i])
	}
	return items
}

func newBlock(method string, sem extract.SemanticItem, items []extract.StyleItem) *UnifiedBlock {
	if items == nil {
		items = []extract.StyleItem{}
	}
	return &UnifiedBlock{
		ID:           uuid.NewString(),
		MatchMethod:  method,
		SemanticItem: sem,
		StyleItems:   items,
	}
}

// semanticText is the text used for fuzzy comparison: the item's value,
// or its flattened cell text for tables.
func semanticText(sem extract.SemanticItem) string {
	if sem.Kind == extract.KindTable && sem.Value == "" {
		var parts []string
		for _, row := range sem.Rows {
			parts = append(parts, strings.Join(row, " "))
		}
		return strings.Join(parts, " ")
	}
	return sem.Value
}
