package extract

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// defaultPageHeight is US Letter in points, used when a page carries no
// resolvable MediaBox.
const defaultPageHeight = 792.0

// StyleExtractor is the glyph-level extraction pass: per-span text with
// font metadata via the PDF text layer, plus image placements recovered
// from page content streams. Coordinates are normalized so y grows down
// the page, matching the semantic extractor's convention.
type StyleExtractor struct {
	outputDir string
	log       *slog.Logger
}

func NewStyleExtractor(outputDir string, log *slog.Logger) *StyleExtractor {
	return &StyleExtractor{outputDir: outputDir, log: log}
}

// Extract runs both sub-passes over the PDF and returns condensed,
// position-ordered style pages.
func (e *StyleExtractor) Extract(pdfPath string) ([]StylePage, error) {
	pages, err := e.extractText(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("extract text spans: %w", err)
	}

	images, err := e.extractImages(pdfPath)
	if err != nil {
		// Image extraction failing should not lose the text pass; the
		// reconciliation pass simply has nothing to insert.
		e.log.Warn("image extraction failed", "path", pdfPath, "error", err)
	} else {
		for i := range pages {
			pages[i].Items = append(pages[i].Items, images[pages[i].Page]...)
		}
	}

	for i := range pages {
		items := pages[i].Items
		sort.SliceStable(items, func(a, b int) bool {
			if items[a].BBox[1] != items[b].BBox[1] {
				return items[a].BBox[1] < items[b].BBox[1]
			}
			return items[a].BBox[0] < items[b].BBox[0]
		})
	}

	return Condense(pages), nil
}

func (e *StyleExtractor) extractText(pdfPath string) ([]StylePage, error) {
	f, reader, err := pdflib.Open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []StylePage
	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, StylePage{Page: pageNum})
			continue
		}
		height := pageHeight(page)
		pages = append(pages, StylePage{
			Page:  pageNum,
			Items: assembleSpans(page.Content().Text, pageNum, height),
		})
	}
	return pages, nil
}

// assembleSpans groups the raw text fragments (often single glyphs) into
// spans: a fragment joins the current span while font, size and baseline
// hold and the horizontal gap stays small.
func assembleSpans(texts []pdflib.Text, pageNum int, height float64) []StyleItem {
	var items []StyleItem

	var cur strings.Builder
	var font string
	var size float64
	var x0, x1, y float64

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			top := height - y - size
			items = append(items, StyleItem{
				Kind:  KindText,
				Page:  pageNum,
				Text:  s,
				Font:  font,
				Size:  int(math.Round(size)),
				Color: "#000000",
				BBox:  [4]float64{x0, top, x1, top + size},
			})
		}
		cur.Reset()
	}

	for _, t := range texts {
		sameSpan := cur.Len() > 0 &&
			t.Font == font &&
			t.FontSize == size &&
			math.Abs(t.Y-y) < 0.5 &&
			t.X-x1 < size
		if !sameSpan {
			flush()
			font = t.Font
			size = t.FontSize
			x0 = t.X
			y = t.Y
		} else if t.X-x1 > size*0.25 {
			cur.WriteByte(' ')
		}
		cur.WriteString(t.S)
		x1 = t.X + t.W
	}
	flush()

	return items
}

// pageHeight resolves the page's MediaBox height, walking up the page
// tree when the box is inherited.
func pageHeight(page pdflib.Page) float64 {
	v := page.V
	for !v.IsNull() {
		if mb := v.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
			return mb.Index(3).Float64() - mb.Index(1).Float64()
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

// extractImages writes every page image under the output dir and returns
// per-page image items with placements read from the content stream.
func (e *StyleExtractor) extractImages(pdfPath string) (map[int][]StyleItem, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	placements := make(map[int]map[string][4]float64, ctx.PageCount)
	heights := make(map[int]float64, ctx.PageCount)
	if dims, err := ctx.PageDims(); err == nil {
		for i, d := range dims {
			heights[i+1] = d.Height
		}
	}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		placements[pageNr] = pagePlacements(ctx, pageNr)
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	imgDir := filepath.Join(e.outputDir, "images", base)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	items := make(map[int][]StyleItem)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	digest := func(img model.Image, singleImgPerPage bool, maxPageDigits int) error {
		name := fmt.Sprintf("page_%d_%s.%s", img.PageNr, img.Name, img.FileType)
		path := filepath.Join(imgDir, name)
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, img); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}

		height := heights[img.PageNr]
		if height == 0 {
			height = defaultPageHeight
		}
		bbox, ok := placements[img.PageNr][img.Name]
		if ok {
			// cm places the unit square at (e, f) scaled by (a, d) in
			// bottom-up coordinates; flip to top-down.
			x, y, w, h := bbox[0], bbox[1], bbox[2], bbox[3]
			bbox = [4]float64{x, height - y - h, x + w, height - y}
		}
		items[img.PageNr] = append(items[img.PageNr], StyleItem{
			Kind: KindImage,
			Page: img.PageNr,
			Src:  filepath.ToSlash(filepath.Join(base, name)),
			BBox: bbox,
		})
		return nil
	}
	if err := api.ExtractImages(f, nil, digest, conf); err != nil {
		return nil, fmt.Errorf("pdfcpu extract images: %w", err)
	}

	return items, nil
}

// cm operator followed by an XObject invocation: the translation and
// scale components give the image placement.
var (
	cmRe = regexp.MustCompile(`([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s+cm`)
	doRe = regexp.MustCompile(`/(\w+)\s+Do`)
)

// pagePlacements scans a page's content stream for image placements:
// the last cm matrix seen before each Do names the drawn XObject's
// position and extent, in bottom-up page coordinates (x, y, w, h).
func pagePlacements(ctx *model.Context, pageNr int) map[string][4]float64 {
	out := make(map[string][4]float64)

	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return out
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return out
	}

	var last [4]float64
	var haveCM bool
	for _, line := range strings.Split(string(data), "\n") {
		if m := cmRe.FindStringSubmatch(line); m != nil {
			a, _ := strconv.ParseFloat(m[1], 64)
			d, _ := strconv.ParseFloat(m[4], 64)
			ex, _ := strconv.ParseFloat(m[5], 64)
			f, _ := strconv.ParseFloat(m[6], 64)
			last = [4]float64{ex, f, math.Abs(a), math.Abs(d)}
			haveCM = true
		}
		if m := doRe.FindStringSubmatch(line); m != nil && haveCM {
			if _, seen := out[m[1]]; !seen {
				out[m[1]] = last
			}
		}
	}
	return out
}
