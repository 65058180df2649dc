package structure

import (
	"reflect"
	"testing"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/feature"
)

func feat(index int, text string, sizePt float64, bold bool) feature.ParagraphFeature {
	f := feature.ParagraphFeature{Index: index, Text: text, Bold: bold}
	if sizePt > 0 {
		f.FontSizePt = &sizePt
	}
	return f
}

// A small report-like document: an 18pt centered title, two heading sizes,
// and 12pt body text.
func reportFeatures() []feature.ParagraphFeature {
	title := feat(0, "Annual Review", 18, true)
	title.Alignment = docmodel.AlignCenter
	return []feature.ParagraphFeature{
		title,
		feat(1, "Overview", 16, true),
		feat(2, "This year the project advanced on several fronts, with the team shipping three releases.", 12, false),
		feat(3, "Team Changes", 14, true),
		feat(4, "Two engineers joined in the spring and one transferred to the platform group.", 12, false),
		feat(5, "Roadmap", 16, true),
		feat(6, "The next cycle focuses on performance and on the storage backend rewrite.", 12, false),
	}
}

func roles(tree *Tree) []Role {
	out := make([]Role, 0, tree.Len())
	for _, n := range tree.AllNodes() {
		out = append(out, n.Role)
	}
	return out
}

func TestClassify_TitleAndHeadingLadder(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	tree := c.Classify(reportFeatures())

	got := roles(tree)
	want := []Role{
		RoleTitle,
		HeadingRole(1), RoleBody,
		HeadingRole(2), RoleBody,
		HeadingRole(1), RoleBody,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}

	// The title must not consume heading level 1: 16pt is the largest
	// heading combination and ranks first.
	if got[1] != HeadingRole(1) {
		t.Errorf("16pt bold should rank as heading1, got %s", got[1])
	}
}

func TestClassify_NumberedFirstParagraphIsHeadingNotTitle(t *testing.T) {
	// A document that opens with "1. Introduction" has no title; the
	// numbered bold paragraph is a heading.
	feats := []feature.ParagraphFeature{
		feat(0, "1. Introduction", 16, true),
		feat(1, "The opening section lays out the problem and the approach taken.", 12, false),
		feat(2, "2. Method", 16, true),
		feat(3, "Measurements were collected over six weeks.", 12, false),
	}
	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	got := roles(tree)
	want := []Role{HeadingRole(1), RoleBody, HeadingRole(1), RoleBody}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}
}

func TestClassify_ListItemsAndNesting(t *testing.T) {
	feats := []feature.ParagraphFeature{
		feat(0, "Shopping", 16, true),
		feat(1, "- apples", 12, false),
		feat(2, "- pears", 12, false),
	}
	feats[2].LeftIndentPt = 20 // one indent unit deeper

	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	nodes := tree.AllNodes()
	if nodes[1].Role != RoleListItem || nodes[2].Role != RoleListItem {
		t.Fatalf("expected list items, got %s / %s", nodes[1].Role, nodes[2].Role)
	}
	if nodes[1].ListLevel != 0 {
		t.Errorf("first item: list level %d, want 0", nodes[1].ListLevel)
	}
	if nodes[2].ListLevel != 1 {
		t.Errorf("indented item: list level %d, want 1", nodes[2].ListLevel)
	}
}

func TestClassify_ReferencesSection(t *testing.T) {
	feats := []feature.ParagraphFeature{
		feat(0, "Findings", 16, true),
		feat(1, "The effect is consistent across all three datasets examined here.", 12, false),
		feat(2, "References", 16, true),
		feat(3, "Smith, J. (2019). On measurement error. Journal of Important Results.", 12, false),
		feat(4, "Lee, K. (2021). Replication at scale. Proceedings of the Annual Meeting.", 12, false),
	}
	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	nodes := tree.AllNodes()
	if nodes[3].Role != RoleReference || nodes[4].Role != RoleReference {
		t.Fatalf("paragraphs after a References heading should be references, got %s / %s",
			nodes[3].Role, nodes[4].Role)
	}
	// The heading itself stays a heading.
	if HeadingLevel(nodes[2].Role) == 0 {
		t.Errorf("References heading classified as %s", nodes[2].Role)
	}
}

func TestClassify_ReferencesClosedByNextHeading(t *testing.T) {
	feats := []feature.ParagraphFeature{
		feat(0, "Survey Results", 18, true),
		feat(1, "References", 16, true),
		feat(2, "Smith, J. (2019). On measurement error.", 12, false),
		feat(3, "Appendix", 16, true),
		feat(4, "Raw tables follow.", 12, false),
	}
	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	nodes := tree.AllNodes()
	if nodes[2].Role != RoleReference {
		t.Errorf("paragraph 2: got %s, want reference", nodes[2].Role)
	}
	if nodes[4].Role != RoleBody {
		t.Errorf("paragraph after Appendix heading: got %s, want body", nodes[4].Role)
	}
}

func TestClassify_CaptionMarker(t *testing.T) {
	feats := []feature.ParagraphFeature{
		feat(0, "Results", 16, true),
		feat(1, "Figure 3: Throughput under sustained load.", 12, false),
		feat(2, "Table 1. Summary of configurations.", 12, false),
	}
	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	nodes := tree.AllNodes()
	if nodes[1].Role != RoleCaption || nodes[2].Role != RoleCaption {
		t.Fatalf("expected captions, got %s / %s", nodes[1].Role, nodes[2].Role)
	}
}

func TestClassify_IndentedQuote(t *testing.T) {
	feats := []feature.ParagraphFeature{
		feat(0, "Context", 16, true),
		feat(1, "The committee wrote the following in its final memo.", 12, false),
		feat(2, "We find no basis for the claim and recommend the matter be closed.", 12, false),
		feat(3, "That closed the discussion for the year.", 12, false),
	}
	feats[2].LeftIndentPt = 36

	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	if got := tree.AllNodes()[2].Role; got != RoleQuote {
		t.Fatalf("indented paragraph: got %s, want quote", got)
	}
}

func TestClassify_EveryParagraphGetsExactlyOneRole(t *testing.T) {
	feats := reportFeatures()
	feats = append(feats, feature.ParagraphFeature{Index: len(feats)}) // empty paragraph

	c := NewClassifier(DefaultConfig())
	tree := c.Classify(feats)

	if tree.Len() != len(feats) {
		t.Fatalf("tree has %d nodes for %d paragraphs", tree.Len(), len(feats))
	}
	for i, n := range tree.AllNodes() {
		if n.Role == "" {
			t.Errorf("paragraph %d has no role", i)
		}
		if n.Feature.Index != i {
			t.Errorf("node %d carries feature index %d", i, n.Feature.Index)
		}
	}
	// Empty paragraphs classify as body, never as headings.
	last := tree.AllNodes()[len(feats)-1]
	if last.Role != RoleBody {
		t.Errorf("empty paragraph: got %s, want body", last.Role)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	first := roles(c.Classify(reportFeatures()))
	for range 10 {
		if got := roles(c.Classify(reportFeatures())); !reflect.DeepEqual(got, first) {
			t.Fatalf("classification changed between runs: %v vs %v", got, first)
		}
	}
}

func TestClassify_TreeNesting(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	tree := c.Classify(reportFeatures())

	nodes := tree.AllNodes()
	// Title hangs off the root.
	if nodes[0].Parent != tree.Root {
		t.Error("title should be a child of the root")
	}
	// heading1 nests under the title, heading2 under heading1, body under
	// its nearest heading.
	if nodes[1].Parent != nodes[0] {
		t.Error("heading1 should nest under the title")
	}
	if nodes[3].Parent != nodes[1] {
		t.Error("heading2 should nest under the preceding heading1")
	}
	if nodes[4].Parent != nodes[3] {
		t.Error("body should nest under the preceding heading2")
	}
	// The second heading1 pops back up to the title.
	if nodes[5].Parent != nodes[0] {
		t.Error("later heading1 should nest under the title again")
	}
}

func TestHeadingRoleRoundTrip(t *testing.T) {
	for n := 1; n <= MaxHeadingLevel; n++ {
		if got := HeadingLevel(HeadingRole(n)); got != n {
			t.Errorf("HeadingLevel(HeadingRole(%d)) = %d", n, got)
		}
	}
	if HeadingLevel(RoleBody) != 0 {
		t.Error("body is not a heading")
	}
	if HeadingLevel(Role("heading9")) != 0 {
		t.Error("heading9 exceeds the cap")
	}
}
