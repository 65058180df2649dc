package structure

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/feature"
)

// Config tunes the classification heuristics. Zero values fall back to the
// defaults below.
type Config struct {
	// TitleMaxRunes is the longest text still considered a document title.
	TitleMaxRunes int
	// QuoteIndentRatio: a paragraph indented more than the median body
	// indent times this ratio is a quote candidate.
	QuoteIndentRatio float64
	// QuoteMinIndentPt is the minimum absolute left indent for a quote.
	QuoteMinIndentPt float64
	// ListIndentUnitPt is the approximate indent per list nesting level.
	ListIndentUnitPt float64
}

// DefaultConfig returns the tuned heuristic defaults.
func DefaultConfig() Config {
	return Config{
		TitleMaxRunes:    60,
		QuoteIndentRatio: 2.0,
		QuoteMinIndentPt: 18,
		ListIndentUnitPt: 20,
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.TitleMaxRunes <= 0 {
		c.TitleMaxRunes = d.TitleMaxRunes
	}
	if c.QuoteIndentRatio <= 0 {
		c.QuoteIndentRatio = d.QuoteIndentRatio
	}
	if c.QuoteMinIndentPt <= 0 {
		c.QuoteMinIndentPt = d.QuoteMinIndentPt
	}
	if c.ListIndentUnitPt <= 0 {
		c.ListIndentUnitPt = d.ListIndentUnitPt
	}
}

var (
	bulletMarkerRe   = regexp.MustCompile(`^\s*[•▪◦‣·\-–—*]\s+`)
	numberedMarkerRe = regexp.MustCompile(`^\s*(\d+[.)]|\(\d+\)|[A-Za-z][.)])\s+`)
	captionRe        = regexp.MustCompile(`(?i)^(figure|fig\.|table|chart|图|表)\s*\d*\s*[.::]?\s+`)
)

// referenceKeywords mark a heading that opens a references section.
var referenceKeywords = []string{
	"references", "bibliography", "works cited", "参考文献", "引用文献",
}

func isReferenceHeading(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range referenceKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func isListMarker(text string) bool {
	return bulletMarkerRe.MatchString(text) || numberedMarkerRe.MatchString(text)
}

// sizeKey is a (size, weight) combination, size in half-points so float
// sizes compare exactly.
type sizeKey struct {
	halfPt int
	bold   bool
}

func halfPoints(pt float64) int {
	return int(math.Round(pt * 2))
}

// docStats are the whole-document measurements the per-paragraph rules
// consult. Computed once per Classify call; pure function of the input.
type docStats struct {
	firstNonEmpty  int // index, -1 if none
	titleEligible  bool
	modalHalfPt    int // modal body size, 0 if no sizes present
	medianIndentPt float64
	headingRank    map[sizeKey]int // combination -> heading level 1..6
	minListIndent  float64
}

// walkState is the mutable per-walk state threaded through the rule chain.
type walkState struct {
	inReferences bool
}

// classRule is one predicate in the ordered heuristic table. The first rule
// to match decides the role; later rules never override it.
type classRule struct {
	name  string
	match func(cfg *Config, st *docStats, ws *walkState, f *feature.ParagraphFeature) (Role, bool)
}

// rule order is fixed: positional title, font-emphasis heading, leading
// marker, caption, reference section, indent quote. Anything left is body.
var classRules = []classRule{
	{name: "positional-title", match: matchTitle},
	{name: "font-emphasis-heading", match: matchHeading},
	{name: "leading-marker-list", match: matchListItem},
	{name: "caption-marker", match: matchCaption},
	{name: "reference-section", match: matchReference},
	{name: "indent-quote", match: matchQuote},
}

func matchTitle(cfg *Config, st *docStats, _ *walkState, f *feature.ParagraphFeature) (Role, bool) {
	if f.Index != st.firstNonEmpty || !st.titleEligible {
		return "", false
	}
	return RoleTitle, true
}

func matchHeading(_ *Config, st *docStats, _ *walkState, f *feature.ParagraphFeature) (Role, bool) {
	if f.FontSizePt == nil || !f.Bold {
		return "", false
	}
	switch f.Alignment {
	case docmodel.AlignLeft, docmodel.AlignCenter, docmodel.AlignUnset:
	default:
		return "", false
	}
	if st.modalHalfPt == 0 || halfPoints(*f.FontSizePt) <= st.modalHalfPt {
		return "", false
	}
	level, ok := st.headingRank[sizeKey{halfPt: halfPoints(*f.FontSizePt), bold: f.Bold}]
	if !ok {
		return "", false
	}
	return HeadingRole(level), true
}

func matchListItem(_ *Config, _ *docStats, _ *walkState, f *feature.ParagraphFeature) (Role, bool) {
	if !isListMarker(f.Text) {
		return "", false
	}
	return RoleListItem, true
}

func matchCaption(_ *Config, _ *docStats, _ *walkState, f *feature.ParagraphFeature) (Role, bool) {
	if !captionRe.MatchString(f.Text) {
		return "", false
	}
	return RoleCaption, true
}

func matchReference(_ *Config, _ *docStats, ws *walkState, _ *feature.ParagraphFeature) (Role, bool) {
	if !ws.inReferences {
		return "", false
	}
	return RoleReference, true
}

func matchQuote(cfg *Config, st *docStats, _ *walkState, f *feature.ParagraphFeature) (Role, bool) {
	if f.LeftIndentPt < cfg.QuoteMinIndentPt {
		return "", false
	}
	if f.LeftIndentPt <= st.medianIndentPt*cfg.QuoteIndentRatio {
		return "", false
	}
	return RoleQuote, true
}

// Classifier converts a feature sequence into a structure tree. It holds no
// per-document state; one instance may classify many documents.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier with the given heuristic tuning.
func NewClassifier(cfg Config) *Classifier {
	cfg.defaults()
	return &Classifier{cfg: cfg}
}

// Classify assigns one role per feature and assembles the structure tree.
// It never fails: anything the heuristics cannot place becomes body. The
// result is deterministic for a given feature sequence.
func (c *Classifier) Classify(features []feature.ParagraphFeature) *Tree {
	st := c.computeStats(features)
	ws := &walkState{}

	root := &Node{Role: RoleRoot}
	tree := &Tree{Root: root, nodes: make([]*Node, 0, len(features))}
	stack := []*Node{root}

	for i := range features {
		f := &features[i]
		role := c.classifyOne(st, ws, f)

		// A heading both closes any open references section and may
		// open a new one.
		if HeadingLevel(role) > 0 || role == RoleTitle {
			ws.inReferences = HeadingLevel(role) > 0 && isReferenceHeading(f.Text)
		}

		node := &Node{Role: role, Feature: f}
		if role == RoleListItem {
			node.ListLevel = listLevel(f.LeftIndentPt, st.minListIndent, c.cfg.ListIndentUnitPt)
		}

		lvl := nestLevel(role)
		for len(stack) > 1 && nestLevel(stack[len(stack)-1].Role) >= lvl {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		node.Parent = parent
		node.Depth = parent.Depth + 1
		parent.Children = append(parent.Children, node)
		tree.nodes = append(tree.nodes, node)

		if lvl <= MaxHeadingLevel+1 {
			stack = append(stack, node)
		}
	}

	return tree
}

func (c *Classifier) classifyOne(st *docStats, ws *walkState, f *feature.ParagraphFeature) Role {
	if f.Empty() {
		return RoleBody
	}
	for _, r := range classRules {
		if role, ok := r.match(&c.cfg, st, ws, f); ok {
			return role
		}
	}
	return RoleBody
}

func (c *Classifier) computeStats(features []feature.ParagraphFeature) *docStats {
	st := &docStats{
		firstNonEmpty: -1,
		headingRank:   make(map[sizeKey]int),
		minListIndent: -1,
	}

	sizeCount := make(map[int]int)
	var indents []float64

	for i := range features {
		f := &features[i]
		if f.Empty() {
			continue
		}
		if st.firstNonEmpty < 0 {
			st.firstNonEmpty = i
			st.titleEligible = c.titleEligible(f)
		}
		if f.FontSizePt != nil {
			sizeCount[halfPoints(*f.FontSizePt)]++
		}
		indents = append(indents, f.LeftIndentPt)
		if isListMarker(f.Text) && (st.minListIndent < 0 || f.LeftIndentPt < st.minListIndent) {
			st.minListIndent = f.LeftIndentPt
		}
	}

	st.modalHalfPt = modalKey(sizeCount)
	st.medianIndentPt = median(indents)

	// Rank the distinct bold (size, weight) combinations above the modal
	// body size: largest size is level 1, next distinct level 2, up to 6.
	// Ties on size keep first-seen order via the stable size sort below.
	var combos []sizeKey
	seen := make(map[sizeKey]bool)
	for i := range features {
		f := &features[i]
		if f.Empty() || f.FontSizePt == nil || !f.Bold {
			continue
		}
		if i == st.firstNonEmpty && st.titleEligible {
			continue // the title does not consume a heading level
		}
		k := sizeKey{halfPt: halfPoints(*f.FontSizePt), bold: f.Bold}
		if k.halfPt <= st.modalHalfPt || seen[k] {
			continue
		}
		seen[k] = true
		combos = append(combos, k)
	}
	sort.SliceStable(combos, func(a, b int) bool {
		return combos[a].halfPt > combos[b].halfPt
	})
	for i, k := range combos {
		if i >= MaxHeadingLevel {
			break
		}
		st.headingRank[k] = i + 1
	}

	return st
}

// titleEligible decides whether the first non-empty paragraph looks like a
// document title: short enough, and not shaped like a numbered heading or
// list entry.
func (c *Classifier) titleEligible(f *feature.ParagraphFeature) bool {
	text := strings.TrimSpace(f.Text)
	n := len([]rune(text))
	if n == 0 || n > c.cfg.TitleMaxRunes {
		return false
	}
	return !isListMarker(text)
}

func listLevel(indent, minIndent, unit float64) int {
	if minIndent < 0 || indent <= minIndent {
		return 0
	}
	level := int((indent - minIndent) / unit)
	if level > MaxHeadingLevel {
		level = MaxHeadingLevel
	}
	return level
}

// modalKey returns the most frequent key; count ties break toward the
// smaller key so the result never depends on map iteration order.
func modalKey(m map[int]int) int {
	var best, bestCount int
	for k, count := range m {
		if count > bestCount || (count == bestCount && bestCount > 0 && k < best) {
			best, bestCount = k, count
		}
	}
	return best
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
