// Package validate decides whether a working set is safe to persist.
//
// All rules are evaluated over the effective state: the loaded snapshot with
// pending edits applied and rows staged for deletion excluded. Validation is
// a pure read-only pass; it never mutates the working set.
package validate

import (
	"fmt"
	"strings"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/workset"
)

// Rule identifies a violated integrity rule.
type Rule string

const (
	RuleEmptyLabel        Rule = "empty-label"
	RuleDuplicateLabel    Rule = "duplicate-label"
	RuleDuplicateSymbol   Rule = "duplicate-symbol"
	RuleDanglingType      Rule = "dangling-type"
	RuleDanglingComponent Rule = "dangling-component"
	RuleSelfReference     Rule = "self-reference"
	RuleCycle             Rule = "cycle"
	RuleTypeInUse         Rule = "type-in-use"
	RuleComponentInUse    Rule = "component-in-use"
)

// Violation is one broken rule, attached to the row that breaks it.
type Violation struct {
	Rule   Rule
	Kind   string // "tag_type", "tag" or "compound"
	Ref    models.Ref
	Detail string
}

// Report is the outcome of a validation pass.
type Report struct {
	Violations []Violation
}

// Valid reports whether the working set may be committed.
func (r Report) Valid() bool {
	return len(r.Violations) == 0
}

// Rows returns the refs of all rows with at least one violation, so a
// presentation layer can flag them individually.
func (r Report) Rows() map[models.Ref]bool {
	rows := make(map[models.Ref]bool, len(r.Violations))
	for _, v := range r.Violations {
		rows[v.Ref] = true
	}
	return rows
}

func (r *Report) add(rule Rule, kind string, ref models.Ref, format string, a ...any) {
	r.Violations = append(r.Violations, Violation{
		Rule:   rule,
		Kind:   kind,
		Ref:    ref,
		Detail: fmt.Sprintf(format, a...),
	})
}

// Check runs every integrity rule against the working set.
func Check(ws *workset.WorkingSet) Report {
	var r Report

	types := ws.Types.Effective()
	tags := ws.Tags.Effective()
	compounds := ws.Compounds.Effective()

	checkTypeLabels(&r, types)
	checkTagLabels(&r, tags)
	checkTagTypes(&r, tags, types)
	checkComponents(&r, compounds, tags)
	checkCycles(&r, compounds, tags)
	checkDeletes(&r, ws, tags, compounds)

	return r
}

func checkTypeLabels(r *Report, types map[models.Ref]models.TagType) {
	labels := make(map[string]int)
	symbols := make(map[string]int)
	for _, t := range types {
		labels[normalize(t.Label)]++
		symbols[t.Symbol]++
	}
	for ref, t := range types {
		if strings.TrimSpace(t.Label) == "" {
			r.add(RuleEmptyLabel, "tag_type", ref, "tag type has an empty label")
			continue
		}
		if labels[normalize(t.Label)] > 1 {
			r.add(RuleDuplicateLabel, "tag_type", ref, "tag type label %q is already used", t.Label)
		}
		if t.Symbol != "" && symbols[t.Symbol] > 1 {
			r.add(RuleDuplicateSymbol, "tag_type", ref, "tag type symbol %q is already used", t.Symbol)
		}
	}
}

func checkTagLabels(r *Report, tags map[models.Ref]models.Tag) {
	labels := make(map[string]int)
	for _, t := range tags {
		labels[normalize(t.Label)]++
	}
	for ref, t := range tags {
		if strings.TrimSpace(t.Label) == "" {
			r.add(RuleEmptyLabel, "tag", ref, "tag has an empty label")
			continue
		}
		if labels[normalize(t.Label)] > 1 {
			r.add(RuleDuplicateLabel, "tag", ref, "tag label %q is already used", t.Label)
		}
	}
}

// checkTagTypes enforces reference validity: a plain tag must reference a
// live tag type, and any type reference must resolve.
func checkTagTypes(r *Report, tags map[models.Ref]models.Tag, types map[models.Ref]models.TagType) {
	for ref, t := range tags {
		if t.Type.IsZero() {
			if !t.Compound {
				r.add(RuleDanglingType, "tag", ref, "tag %q has no type", t.Label)
			}
			continue
		}
		if _, ok := types[t.Type]; !ok {
			r.add(RuleDanglingType, "tag", ref, "tag %q references a missing or deleted type", t.Label)
		}
	}
}

func checkComponents(r *Report, compounds map[models.Ref]models.CompoundTag, tags map[models.Ref]models.Tag) {
	for ref, c := range compounds {
		owner, ok := tags[c.Tag]
		if !ok {
			r.add(RuleDanglingComponent, "compound", ref, "compound definition references a missing or deleted tag")
			continue
		}
		if c.SelfReferencing() {
			r.add(RuleSelfReference, "compound", ref, "compound tag %q lists itself as a component", owner.Label)
		}
		for _, comp := range c.Components {
			if comp == c.Tag {
				continue // reported above
			}
			if _, ok := tags[comp]; !ok {
				r.add(RuleDanglingComponent, "compound", ref, "compound tag %q has a missing or deleted component", owner.Label)
			}
		}
	}
}

// Three-color DFS marks for cycle detection.
const (
	unvisited = iota
	active
	closed
)

// checkCycles rejects any cycle in the composed-of graph. Nodes are the
// compound tags; edges go from a compound to each component that is itself
// compound. Hitting an active node during the walk closes a cycle.
func checkCycles(r *Report, compounds map[models.Ref]models.CompoundTag, tags map[models.Ref]models.Tag) {
	// Components refer to tags by owner ref; index compound rows by it so
	// edges land on graph nodes even for uncommitted rows.
	byOwner := make(map[models.Ref]models.Ref, len(compounds))
	for ref, c := range compounds {
		byOwner[c.Tag] = ref
	}

	edges := make(map[models.Ref][]models.Ref, len(compounds))
	for ref, c := range compounds {
		for _, comp := range c.Components {
			if comp == c.Tag {
				continue
			}
			if target, ok := byOwner[comp]; ok {
				edges[ref] = append(edges[ref], target)
			}
		}
	}

	color := make(map[models.Ref]int, len(compounds))
	var visit func(n models.Ref) bool
	visit = func(n models.Ref) bool {
		switch color[n] {
		case active:
			return true
		case closed:
			return false
		}
		color[n] = active
		for _, m := range edges[n] {
			if visit(m) {
				return true
			}
		}
		color[n] = closed
		return false
	}

	for n := range compounds {
		if color[n] != unvisited || !visit(n) {
			continue
		}
		detail := "compound tag contains itself through its components"
		if owner, ok := tags[compounds[n].Tag]; ok {
			detail = fmt.Sprintf("compound tag %q contains itself through its components", owner.Label)
		}
		r.add(RuleCycle, "compound", n, "%s", detail)
		return
	}
}

// checkDeletes enforces the blocking delete policy: a deletion is only valid
// if nothing live still depends on the deleted row. Deleting the dependent
// rows in the same working set clears the violation.
func checkDeletes(r *Report, ws *workset.WorkingSet, tags map[models.Ref]models.Tag, compounds map[models.Ref]models.CompoundTag) {
	for _, id := range ws.Types.Deleted() {
		ref := models.StoreRef(id)
		for _, t := range tags {
			if t.Type == ref {
				tt, _ := ws.Types.Snapshot(id)
				r.add(RuleTypeInUse, "tag_type", ref, "tag type %q is still referenced by tag %q", tt.Label, t.Label)
			}
		}
	}
	for _, id := range ws.Tags.Deleted() {
		ref := models.StoreRef(id)
		for _, c := range compounds {
			for _, comp := range c.Components {
				if comp != ref {
					continue
				}
				tag, _ := ws.Tags.Snapshot(id)
				label := ""
				if owner, ok := tags[c.Tag]; ok {
					label = owner.Label
				}
				r.add(RuleComponentInUse, "tag", ref, "tag %q is still a component of compound tag %q", tag.Label, label)
			}
		}
	}
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
