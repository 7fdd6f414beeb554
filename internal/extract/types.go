package extract

// Item kinds shared by both extraction passes.
const (
	KindText    = "text"
	KindImage   = "image"
	KindHeading = "heading"
	KindTable   = "table"
)

// BBox is the semantic-side bounding box: origin plus extent.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// StyleItem is one fine-grained span from the glyph-level extraction pass.
// Text items carry font metadata; image items carry a src reference.
// BBox is [x0, y0, x1, y1] with y growing down the page.
type StyleItem struct {
	Kind  string     `json:"type"`
	Page  int        `json:"page"`
	Text  string     `json:"text,omitempty"`
	Font  string     `json:"font,omitempty"`
	Size  int        `json:"size,omitempty"`
	Color string     `json:"color,omitempty"`
	Src   string     `json:"src,omitempty"`
	BBox  [4]float64 `json:"bbox"`
}

// SemanticItem is one coarse content unit from the semantic extraction
// pass. Value holds text/markdown; Rows holds table cells; Level is set
// for headings.
type SemanticItem struct {
	Kind  string     `json:"type"`
	Page  int        `json:"page"`
	Value string     `json:"value,omitempty"`
	Rows  [][]string `json:"rows,omitempty"`
	Level int        `json:"lvl,omitempty"`
	BBox  BBox       `json:"bBox"`
}

// StylePage is a page's style items in extraction order.
type StylePage struct {
	Page  int         `json:"page"`
	Items []StyleItem `json:"content"`
}

// SemanticPage is a page's semantic items in reading order as produced by
// the collaborator (not guaranteed correct).
type SemanticPage struct {
	Page  int            `json:"page"`
	Items []SemanticItem `json:"items"`
}

// SameTextStyle reports whether two text items share font, size and color.
func SameTextStyle(a, b StyleItem) bool {
	return a.Kind == KindText && b.Kind == KindText &&
		a.Font == b.Font && a.Size == b.Size && a.Color == b.Color
}

// Condense merges runs of consecutive text items with identical style into
// one item, joined by single spaces. After Condense no two consecutive
// text items on a page share identical style unless a non-text item sits
// between them. The merged bbox is the union of the run's bboxes.
func Condense(pages []StylePage) []StylePage {
	out := make([]StylePage, len(pages))
	for pi, page := range pages {
		var items []StyleItem
		for _, item := range page.Items {
			if item.Kind == KindText && len(items) > 0 {
				prev := &items[len(items)-1]
				if SameTextStyle(*prev, item) {
					prev.Text = prev.Text + " " + item.Text
					prev.BBox = unionBBox(prev.BBox, item.BBox)
					continue
				}
			}
			items = append(items, item)
		}
		out[pi] = StylePage{Page: page.Page, Items: items}
	}
	return out
}

func unionBBox(a, b [4]float64) [4]float64 {
	return [4]float64{
		min(a[0], b[0]),
		min(a[1], b[1]),
		max(a[2], b[2]),
		max(a[3], b[3]),
	}
}
