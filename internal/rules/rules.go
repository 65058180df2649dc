// Package rules defines formatting rule sources and resolves them into one
// fully-populated format per semantic role.
package rules

import (
	"fmt"

	"github.com/waterdrop26651/FormulaAI/internal/docmodel"
	"github.com/waterdrop26651/FormulaAI/internal/structure"
)

// FormatRule is a partial formatting instruction for one role. Nil fields
// mean "not specified by this source".
type FormatRule struct {
	FontName          *string             `json:"font_name,omitempty" yaml:"font_name,omitempty"`
	FontSizePt        *float64            `json:"font_size_pt,omitempty" yaml:"font_size_pt,omitempty"`
	Bold              *bool               `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic            *bool               `json:"italic,omitempty" yaml:"italic,omitempty"`
	Alignment         *docmodel.Alignment `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	FirstLineIndentPt *float64            `json:"first_line_indent_pt,omitempty" yaml:"first_line_indent_pt,omitempty"`
	LineSpacing       *float64            `json:"line_spacing,omitempty" yaml:"line_spacing,omitempty"`
	SpaceBeforePt     *float64            `json:"space_before_pt,omitempty" yaml:"space_before_pt,omitempty"`
	SpaceAfterPt      *float64            `json:"space_after_pt,omitempty" yaml:"space_after_pt,omitempty"`
}

// RuleSet is one named source of partial rules, keyed by role name. Sets are
// immutable once handed to a Resolver; precedence is the order in which the
// caller supplies them (highest first).
type RuleSet struct {
	Name  string                `json:"name" yaml:"name"`
	Rules map[string]FormatRule `json:"rules" yaml:"rules"`
}

// roleAliases maps accepted role spellings to canonical roles. Role names
// that match nothing here are kept verbatim; they are ignored at resolution
// unless the tree happens to contain them.
var roleAliases = map[string]structure.Role{
	"title":     structure.RoleTitle,
	"body":      structure.RoleBody,
	"text":      structure.RoleBody,
	"list_item": structure.RoleListItem,
	"list-item": structure.RoleListItem,
	"list":      structure.RoleListItem,
	"quote":     structure.RoleQuote,
	"caption":   structure.RoleCaption,
	"reference": structure.RoleReference,
	"unknown":   structure.RoleUnknown,
	"heading 1": structure.HeadingRole(1),
	"heading 2": structure.HeadingRole(2),
	"heading 3": structure.HeadingRole(3),
	"heading 4": structure.HeadingRole(4),
	"heading 5": structure.HeadingRole(5),
	"heading 6": structure.HeadingRole(6),
	"h1":        structure.HeadingRole(1),
	"h2":        structure.HeadingRole(2),
	"h3":        structure.HeadingRole(3),
	"h4":        structure.HeadingRole(4),
	"h5":        structure.HeadingRole(5),
	"h6":        structure.HeadingRole(6),
}

// CanonicalRole normalises a rule-source role name.
func CanonicalRole(name string) structure.Role {
	if r, ok := roleAliases[name]; ok {
		return r
	}
	return structure.Role(name)
}

// Defaults is the terminal fallback: the concrete value every format field
// takes when no source and no inherited role supplies one. Passed into the
// Resolver explicitly so tests can substitute their own.
type Defaults struct {
	FontName          string
	FontSizePt        float64
	Bold              bool
	Italic            bool
	Alignment         docmodel.Alignment
	FirstLineIndentPt float64
	LineSpacing       float64
	SpaceBeforePt     float64
	SpaceAfterPt      float64
}

// GlobalDefaults returns the stock fallback: 12pt body serif, left aligned,
// single spaced.
func GlobalDefaults() Defaults {
	return Defaults{
		FontName:    "Times New Roman",
		FontSizePt:  12,
		Alignment:   docmodel.AlignLeft,
		LineSpacing: 1.0,
	}
}

// Validate checks one rule's field values. Unknown roles are not an error;
// out-of-range values are.
func (fr *FormatRule) Validate() error {
	if fr.FontSizePt != nil && (*fr.FontSizePt < 1 || *fr.FontSizePt > 400) {
		return fmt.Errorf("font_size_pt %v out of range [1,400]", *fr.FontSizePt)
	}
	if fr.Alignment != nil && !docmodel.ValidAlignment(*fr.Alignment) {
		return fmt.Errorf("invalid alignment %q", *fr.Alignment)
	}
	if fr.LineSpacing != nil && (*fr.LineSpacing < 0.5 || *fr.LineSpacing > 10) {
		return fmt.Errorf("line_spacing %v out of range [0.5,10]", *fr.LineSpacing)
	}
	if fr.FirstLineIndentPt != nil && (*fr.FirstLineIndentPt < 0 || *fr.FirstLineIndentPt > 200) {
		return fmt.Errorf("first_line_indent_pt %v out of range [0,200]", *fr.FirstLineIndentPt)
	}
	if fr.SpaceBeforePt != nil && (*fr.SpaceBeforePt < 0 || *fr.SpaceBeforePt > 500) {
		return fmt.Errorf("space_before_pt %v out of range [0,500]", *fr.SpaceBeforePt)
	}
	if fr.SpaceAfterPt != nil && (*fr.SpaceAfterPt < 0 || *fr.SpaceAfterPt > 500) {
		return fmt.Errorf("space_after_pt %v out of range [0,500]", *fr.SpaceAfterPt)
	}
	return nil
}

// BuiltinRuleSet is the lowest-precedence source: a conservative house style
// so a run with no template, no AI rules and no overrides still produces a
// sensible document.
func BuiltinRuleSet() RuleSet {
	return RuleSet{
		Name: "builtin",
		Rules: map[string]FormatRule{
			"title": {
				FontSizePt: ptr(22.0),
				Bold:       ptr(true),
				Alignment:  alignPtr(docmodel.AlignCenter),
			},
			"heading1": {
				FontSizePt: ptr(16.0),
				Bold:       ptr(true),
				Alignment:  alignPtr(docmodel.AlignLeft),
			},
			"heading2": {
				FontSizePt: ptr(14.0),
				Bold:       ptr(true),
			},
			"body": {
				FontSizePt:        ptr(12.0),
				FirstLineIndentPt: ptr(21.0),
				LineSpacing:       ptr(1.5),
				Alignment:         alignPtr(docmodel.AlignJustify),
			},
			"quote": {
				Italic:            ptr(true),
				FirstLineIndentPt: ptr(0.0),
			},
			"list_item": {
				FirstLineIndentPt: ptr(0.0),
			},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func alignPtr(a docmodel.Alignment) *docmodel.Alignment { return &a }
