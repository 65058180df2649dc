package airules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/waterdrop26651/FormulaAI/internal/rules"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParseRuleSet decodes a model completion into a rule set. Decoding is
// strict: unknown fields or wrong field types are a validation error the
// caller must surface, never silently dropped.
func ParseRuleSet(completion string) (rules.RuleSet, error) {
	text := stripCodeBlock(completion)

	var parsed map[string]rules.FormatRule
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return rules.RuleSet{}, fmt.Errorf("parse rules json: %w (raw: %s)", err, truncate(text, 200))
	}

	set := rules.RuleSet{Name: "ai", Rules: parsed}
	for role, rule := range parsed {
		if err := rule.Validate(); err != nil {
			return rules.RuleSet{}, fmt.Errorf("ai rule for role %q: %w", role, err)
		}
	}
	return set, nil
}
