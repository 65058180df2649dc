package airules

import (
	"fmt"
	"strings"

	"github.com/waterdrop26651/FormulaAI/internal/structure"
)

// RulesSystemPrompt frames the model as a rule generator. The response
// contract matches ParseRuleSet exactly: one JSON object, role names as
// keys, partial rule objects as values, no prose.
const RulesSystemPrompt = `You are a document formatting assistant. You translate formatting requirements written in natural language into a machine-readable rules object.

Respond with ONLY a JSON object, no markdown fences, no commentary. Keys are role names from this fixed set: "title", "heading1" through "heading6", "body", "list_item", "quote", "caption", "reference". Values are objects with any subset of these fields:

- "font_name": string
- "font_size_pt": number (points)
- "bold": boolean
- "italic": boolean
- "alignment": "left" | "center" | "right" | "justify"
- "first_line_indent_pt": number (points, >= 0)
- "line_spacing": number (multiple, e.g. 1.5)
- "space_before_pt": number
- "space_after_pt": number

Only include fields the requirements actually mention. Omit roles the requirements say nothing about. Never invent fields outside the list above.`

// maxOutlineTokens bounds the document outline included in the prompt so a
// large document cannot blow the request budget.
const maxOutlineTokens = 1200

// BuildRulesPrompt assembles the user prompt: the formatting intent plus a
// truncated outline of the classified document so the model knows which
// roles actually occur.
func BuildRulesPrompt(intent string, tree *structure.Tree) string {
	var sb strings.Builder
	sb.WriteString("Formatting requirements:\n")
	sb.WriteString(strings.TrimSpace(intent))
	sb.WriteString("\n\n")

	if tree != nil && tree.Len() > 0 {
		sb.WriteString("Roles present in the document: ")
		names := make([]string, 0, 8)
		for _, role := range tree.Roles() {
			names = append(names, string(role))
		}
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("\n\nDocument outline (role: first words):\n")
		sb.WriteString(outline(tree, maxOutlineTokens))
	}

	sb.WriteString("\nReturn the rules object now.")
	return sb.String()
}

// outline renders "role: text prefix" lines until the token budget runs out.
func outline(tree *structure.Tree, budget int) string {
	var sb strings.Builder
	used := 0
	for _, node := range tree.AllNodes() {
		if node.Feature == nil || node.Feature.Empty() {
			continue
		}
		line := fmt.Sprintf("%s: %s\n", node.Role, firstWords(node.Feature.Text, 8))
		cost := EstimateTokens(line)
		if used+cost > budget {
			sb.WriteString("...\n")
			break
		}
		used += cost
		sb.WriteString(line)
	}
	return sb.String()
}

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
		return strings.Join(fields, " ") + "..."
	}
	return strings.Join(fields, " ")
}

// EstimateTokens gives a rough token count. Exact tokenization is not
// required for budgeting the outline.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
