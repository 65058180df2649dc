package rules

import (
	"fmt"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/structure"
)

// Resolved is a fully-populated format for one role, plus the winning source
// per field ("<set name>", "inherit:<role>" or "default") for auditability.
type Resolved struct {
	docmodel.Format

	Sources map[string]string
}

// Resolver merges precedence-ordered rule sets into one Resolved per role.
// Construction validates every rule value; a malformed set is the only
// condition under which resolution refuses to proceed.
type Resolver struct {
	sets []normalizedSet
	defs Defaults
}

type normalizedSet struct {
	name  string
	rules map[structure.Role]FormatRule
}

// NewResolver validates the rule sets (highest precedence first) and builds
// a resolver over them plus the terminal defaults.
func NewResolver(sets []RuleSet, defs Defaults) (*Resolver, error) {
	r := &Resolver{defs: defs}
	for i, set := range sets {
		name := set.Name
		if name == "" {
			name = fmt.Sprintf("source-%d", i)
		}
		ns := normalizedSet{name: name, rules: make(map[structure.Role]FormatRule, len(set.Rules))}
		for roleName, rule := range set.Rules {
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("rule set %q, role %q: %w", name, roleName, err)
			}
			role := CanonicalRole(roleName)
			// Two aliases of the same role within one set: keep the
			// first field value seen, matching first-wins merging.
			if existing, ok := ns.rules[role]; ok {
				ns.rules[role] = mergeRules(existing, rule)
			} else {
				ns.rules[role] = rule
			}
		}
		r.sets = append(r.sets, ns)
	}
	return r, nil
}

// parentRole gives the role-hierarchy inheritance chain: headings walk up to
// the title, leaf roles fall back to body, and title/body/unknown terminate
// at the global defaults (returned as the empty role).
func parentRole(r structure.Role) structure.Role {
	switch {
	case r == structure.RoleTitle, r == structure.RoleBody, r == structure.RoleUnknown:
		return ""
	case structure.HeadingLevel(r) == 1:
		return structure.RoleTitle
	case structure.HeadingLevel(r) > 1:
		return structure.HeadingRole(structure.HeadingLevel(r) - 1)
	default:
		return structure.RoleBody
	}
}

// Resolve produces one fully-populated format per role present in the tree.
// Ancestor roles absent from the tree are still resolved internally so
// inheritance sees their rule-set values, but only tree roles appear in the
// result. Rule-set roles matching nothing in the tree are ignored.
func (r *Resolver) Resolve(tree *structure.Tree) map[structure.Role]*Resolved {
	memo := make(map[structure.Role]*Resolved)
	out := make(map[structure.Role]*Resolved)
	for _, role := range tree.Roles() {
		if role == structure.RoleRoot {
			continue
		}
		out[role] = r.resolveRole(role, memo)
	}
	return out
}

// ResolveRole resolves a single role outside any tree, walking the same
// inheritance chain. Used for previews and tests.
func (r *Resolver) ResolveRole(role structure.Role) *Resolved {
	return r.resolveRole(role, make(map[structure.Role]*Resolved))
}

func (r *Resolver) resolveRole(role structure.Role, memo map[structure.Role]*Resolved) *Resolved {
	if res, ok := memo[role]; ok {
		return res
	}

	var parent *Resolved
	pr := parentRole(role)
	if pr != "" {
		parent = r.resolveRole(pr, memo)
	}

	res := &Resolved{Sources: make(map[string]string, 9)}
	inherit := "inherit:" + string(pr)

	// Precedence pass first: per field, the first source in order that
	// supplies a value wins outright. Inheritance and defaults only fill
	// what every source left unspecified.
	if v, src := pickField(r.sets, role, func(fr *FormatRule) *string { return fr.FontName }); v != nil {
		res.FontName, res.Sources["font_name"] = *v, src
	} else if parent != nil {
		res.FontName, res.Sources["font_name"] = parent.FontName, inherit
	} else {
		res.FontName, res.Sources["font_name"] = r.defs.FontName, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *float64 { return fr.FontSizePt }); v != nil {
		res.FontSizePt, res.Sources["font_size_pt"] = *v, src
	} else if parent != nil {
		res.FontSizePt, res.Sources["font_size_pt"] = parent.FontSizePt, inherit
	} else {
		res.FontSizePt, res.Sources["font_size_pt"] = r.defs.FontSizePt, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *bool { return fr.Bold }); v != nil {
		res.Bold, res.Sources["bold"] = *v, src
	} else if parent != nil {
		res.Bold, res.Sources["bold"] = parent.Bold, inherit
	} else {
		res.Bold, res.Sources["bold"] = r.defs.Bold, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *bool { return fr.Italic }); v != nil {
		res.Italic, res.Sources["italic"] = *v, src
	} else if parent != nil {
		res.Italic, res.Sources["italic"] = parent.Italic, inherit
	} else {
		res.Italic, res.Sources["italic"] = r.defs.Italic, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *docmodel.Alignment { return fr.Alignment }); v != nil {
		res.Alignment, res.Sources["alignment"] = *v, src
	} else if parent != nil {
		res.Alignment, res.Sources["alignment"] = parent.Alignment, inherit
	} else {
		res.Alignment, res.Sources["alignment"] = r.defs.Alignment, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *float64 { return fr.FirstLineIndentPt }); v != nil {
		res.FirstLineIndentPt, res.Sources["first_line_indent_pt"] = *v, src
	} else if parent != nil {
		res.FirstLineIndentPt, res.Sources["first_line_indent_pt"] = parent.FirstLineIndentPt, inherit
	} else {
		res.FirstLineIndentPt, res.Sources["first_line_indent_pt"] = r.defs.FirstLineIndentPt, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *float64 { return fr.LineSpacing }); v != nil {
		res.LineSpacing, res.Sources["line_spacing"] = *v, src
	} else if parent != nil {
		res.LineSpacing, res.Sources["line_spacing"] = parent.LineSpacing, inherit
	} else {
		res.LineSpacing, res.Sources["line_spacing"] = r.defs.LineSpacing, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *float64 { return fr.SpaceBeforePt }); v != nil {
		res.SpaceBeforePt, res.Sources["space_before_pt"] = *v, src
	} else if parent != nil {
		res.SpaceBeforePt, res.Sources["space_before_pt"] = parent.SpaceBeforePt, inherit
	} else {
		res.SpaceBeforePt, res.Sources["space_before_pt"] = r.defs.SpaceBeforePt, "default"
	}

	if v, src := pickField(r.sets, role, func(fr *FormatRule) *float64 { return fr.SpaceAfterPt }); v != nil {
		res.SpaceAfterPt, res.Sources["space_after_pt"] = *v, src
	} else if parent != nil {
		res.SpaceAfterPt, res.Sources["space_after_pt"] = parent.SpaceAfterPt, inherit
	} else {
		res.SpaceAfterPt, res.Sources["space_after_pt"] = r.defs.SpaceAfterPt, "default"
	}

	memo[role] = res
	return res
}

// pickField walks the sets in precedence order and returns the first
// non-nil value for the role's field, with the winning set's name.
func pickField[T any](sets []normalizedSet, role structure.Role, get func(*FormatRule) *T) (*T, string) {
	for _, set := range sets {
		rule, ok := set.rules[role]
		if !ok {
			continue
		}
		if v := get(&rule); v != nil {
			return v, set.name
		}
	}
	return nil, ""
}

// mergeRules keeps a's fields and fills gaps from b.
func mergeRules(a, b FormatRule) FormatRule {
	if a.FontName == nil {
		a.FontName = b.FontName
	}
	if a.FontSizePt == nil {
		a.FontSizePt = b.FontSizePt
	}
	if a.Bold == nil {
		a.Bold = b.Bold
	}
	if a.Italic == nil {
		a.Italic = b.Italic
	}
	if a.Alignment == nil {
		a.Alignment = b.Alignment
	}
	if a.FirstLineIndentPt == nil {
		a.FirstLineIndentPt = b.FirstLineIndentPt
	}
	if a.LineSpacing == nil {
		a.LineSpacing = b.LineSpacing
	}
	if a.SpaceBeforePt == nil {
		a.SpaceBeforePt = b.SpaceBeforePt
	}
	if a.SpaceAfterPt == nil {
		a.SpaceAfterPt = b.SpaceAfterPt
	}
	return a
}
