package assemble

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/extract"
	"github.com/dgallion1/planmirror/internal/pmtree"
)

// InsertImages is the reconciliation post-pass: every extraction-
// discovered image whose src is not already in the document is inserted
// at a position inferred from its page number and vertical coordinate.
// This is a stable, single-pass, best-effort positional merge, not
// layout-preserving interleaving.
//
// Dedup is by src string, computed once at pass start. Two distinct
// images that share a src would be wrongly collapsed; that matches the
// upstream extractor's naming contract and stays as-is pending a product
// decision.
func InsertImages(doc *pmtree.Document, pages []*align.ZippedPage) *pmtree.Document {
	content := doc.Content

	existing := make(map[string]bool)
	for _, node := range content {
		collectSrcs(node, existing)
	}

	blockPage := make(map[string]int)
	blockByID := make(map[string]*align.UnifiedBlock)
	for _, page := range pages {
		for _, block := range page.UnifiedBlocks {
			blockPage[block.ID] = page.Page
			blockByID[block.ID] = block
		}
	}

	var candidates []extract.StyleItem
	for _, page := range pages {
		for _, item := range page.StyleItems {
			if item.Kind == extract.KindImage && item.Src != "" && !existing[item.Src] {
				candidates = append(candidates, item)
			}
		}
	}
	if len(candidates) == 0 {
		return doc
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Page != candidates[j].Page {
			return candidates[i].Page < candidates[j].Page
		}
		return candidates[i].BBox[1] < candidates[j].BBox[1]
	})

	// Images inserted by this pass carry no block id, so their vertical
	// position is remembered here; otherwise a later same-page candidate
	// would treat the one placed just before it as bottom-of-page and
	// insert ahead of it, reversing the order.
	insertedY := make(map[string]float64)

	for _, img := range candidates {
		idx := -1
		for i, node := range content {
			nodePage := inferPage(node, blockPage)
			if nodePage == -1 {
				continue
			}
			if nodePage > img.Page {
				idx = i
				break
			}
			if nodePage < img.Page {
				continue
			}
			// Same page: compare vertical position. Nodes with no usable
			// style bbox sort as bottom-of-page so they never block an
			// insertion ahead of them.
			nodeY := math.Inf(1)
			if block := blockByID[node.BlockID()]; block != nil && len(block.StyleItems) > 0 {
				nodeY = block.StyleItems[0].BBox[1]
			} else if node.Type == pmtree.TypeImage && node.Attrs != nil {
				if y, ok := insertedY[node.Attrs.Src]; ok {
					nodeY = y
				}
			}
			if img.BBox[1] < nodeY {
				idx = i
				break
			}
		}

		insertedY[img.Src] = img.BBox[1]

		imageNode := pmtree.NewImage(img.Src, "An image from the PDF", fmt.Sprintf("Page %d image", img.Page))
		if idx != -1 {
			content = pmtree.InsertAt(content, idx, imageNode)
		} else {
			content = pmtree.Append(content, imageNode)
		}
	}

	return doc.WithContent(content)
}

// collectSrcs records image srcs on the node and, for composite
// imageHeader nodes, on its image children.
func collectSrcs(node *pmtree.Node, srcs map[string]bool) {
	if node.Type == pmtree.TypeImage && node.Attrs != nil && node.Attrs.Src != "" {
		srcs[node.Attrs.Src] = true
	}
	if node.Type == pmtree.TypeImageHeader {
		for _, child := range node.Content {
			collectSrcs(child, srcs)
		}
	}
}

// inferPage determines a node's page either from a pass-inserted image
// title ("Page 3 image") or from the block it was emitted for. -1 means
// unknown. An image whose title does not parse still falls through to
// the block lookup; pass-inserted images have no block id, so for them
// the two branches cannot disagree.
func inferPage(node *pmtree.Node, blockPage map[string]int) int {
	if node.Type == pmtree.TypeImage && node.Attrs != nil && node.Attrs.Title != "" {
		parts := strings.Split(node.Attrs.Title, " ")
		if len(parts) >= 2 {
			if n, err := strconv.Atoi(parts[1]); err == nil {
				return n
			}
		}
	}
	if id := node.BlockID(); id != "" {
		if page, ok := blockPage[id]; ok {
			return page
		}
	}
	return -1
}
