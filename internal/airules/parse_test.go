package airules

import (
	"strings"
	"testing"
)

func TestParseRuleSet_PlainJSON(t *testing.T) {
	set, err := ParseRuleSet(`{
		"title": {"font_size_pt": 22, "bold": true, "alignment": "center"},
		"body": {"font_size_pt": 12, "line_spacing": 1.5}
	}`)
	if err != nil {
		t.Fatalf("ParseRuleSet: %v", err)
	}
	if set.Name != "ai" {
		t.Errorf("set name = %q", set.Name)
	}
	title := set.Rules["title"]
	if title.FontSizePt == nil || *title.FontSizePt != 22 {
		t.Errorf("title size = %v", title.FontSizePt)
	}
	if title.Bold == nil || !*title.Bold {
		t.Error("title bold missing")
	}
}

func TestParseRuleSet_StripsCodeFence(t *testing.T) {
	completion := "```json\n{\"body\": {\"font_size_pt\": 11}}\n```"
	set, err := ParseRuleSet(completion)
	if err != nil {
		t.Fatalf("ParseRuleSet: %v", err)
	}
	body := set.Rules["body"]
	if body.FontSizePt == nil || *body.FontSizePt != 11 {
		t.Errorf("body size = %v", body.FontSizePt)
	}
}

func TestParseRuleSet_RejectsUnknownField(t *testing.T) {
	_, err := ParseRuleSet(`{"body": {"font_weight": "bold"}}`)
	if err == nil {
		t.Fatal("unknown field should be rejected")
	}
}

func TestParseRuleSet_RejectsOutOfRange(t *testing.T) {
	_, err := ParseRuleSet(`{"body": {"font_size_pt": 5000}}`)
	if err == nil {
		t.Fatal("out-of-range size should be rejected")
	}
	if !strings.Contains(err.Error(), "body") {
		t.Errorf("error should name the role: %v", err)
	}
}

func TestParseRuleSet_RejectsProse(t *testing.T) {
	_, err := ParseRuleSet("Sure! Here are your rules: use 12pt everywhere.")
	if err == nil {
		t.Fatal("non-JSON completion should be rejected")
	}
}

func TestBuildRulesPrompt_IncludesIntentAndRoles(t *testing.T) {
	prompt := BuildRulesPrompt("Use 1.5 line spacing for the body.", nil)
	if !strings.Contains(prompt, "1.5 line spacing") {
		t.Error("prompt should carry the intent verbatim")
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("empty text has no tokens")
	}
	if got := EstimateTokens("one"); got != 1 {
		t.Errorf("single word = %d tokens", got)
	}
	long := strings.Repeat("word ", 100)
	if got := EstimateTokens(long); got < 100 {
		t.Errorf("100 words = %d tokens, expected at least 100", got)
	}
}
