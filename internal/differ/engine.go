// Package differ compares two normalized policies and explains each
// difference in English with a severity.
package differ

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/policyforge/wspolicy/internal/wspolicy"
	"github.com/wI2L/jsondiff"
)

// ChangeType indicates what kind of difference was detected
type ChangeType string

const (
	ChangeKind               ChangeType = "KIND_CHANGED"
	ChangeNamespace          ChangeType = "NAMESPACE_CHANGED"
	ChangeMetadata           ChangeType = "METADATA_CHANGED"
	ChangeAlternativeAdded   ChangeType = "ALTERNATIVE_ADDED"
	ChangeAlternativeRemoved ChangeType = "ALTERNATIVE_REMOVED"
	ChangeAlternativeChanged ChangeType = "ALTERNATIVE_CHANGED"
	ChangePolicyAdded        ChangeType = "POLICY_ADDED"
	ChangePolicyRemoved      ChangeType = "POLICY_REMOVED"
)

// Change is one explained difference.
type Change struct {
	Type     ChangeType     `json:"type"`
	Severity SeverityLevel  `json:"-"`
	Message  string         `json:"message"`
	Patches  jsondiff.Patch `json:"patches,omitempty"`
}

// Result contains the complete diff result
type Result struct {
	HasChanges bool
	Changes    []Change
}

// MaxSeverity returns the highest severity among the changes, or
// SeveritySafe when there are none.
func (r *Result) MaxSeverity() SeverityLevel {
	highest := SeveritySafe
	for _, c := range r.Changes {
		if c.Severity > highest {
			highest = c.Severity
		}
	}
	return highest
}

// Counts returns the number of changes per severity.
func (r *Result) Counts() (critical, moderate, safe int) {
	for _, c := range r.Changes {
		switch c.Severity {
		case SeverityCritical:
			critical++
		case SeverityModerate:
			moderate++
		default:
			safe++
		}
	}
	return critical, moderate, safe
}

// Compare explains how newP differs from oldP. Alternatives are matched as a
// set first; unmatched alternatives are then paired in order and diffed
// assertion by assertion, and whatever is left over is reported as added or
// removed.
func Compare(oldP, newP *wspolicy.Policy) (*Result, error) {
	if oldP == nil || newP == nil {
		return nil, fmt.Errorf("cannot compare a missing policy")
	}
	result := &Result{Changes: []Change{}}

	if oldP.Kind() != newP.Kind() {
		result.Changes = append(result.Changes, kindChange(oldP.Kind(), newP.Kind()))
	}
	if oldP.NamespaceVersion() != newP.NamespaceVersion() {
		result.Changes = append(result.Changes, Change{
			Type:     ChangeNamespace,
			Severity: SeverityModerate,
			Message:  fmt.Sprintf("WS-Policy namespace changed from %s to %s.", oldP.NamespaceVersion(), newP.NamespaceVersion()),
		})
	}
	if oldP.ID() != newP.ID() || oldP.Name() != newP.Name() {
		result.Changes = append(result.Changes, Change{
			Type:     ChangeMetadata,
			Severity: SeveritySafe,
			Message:  "Documentation update: policy id or name changed.",
		})
	}

	removed := unmatched(oldP.Alternatives(), newP.Alternatives())
	added := unmatched(newP.Alternatives(), oldP.Alternatives())

	paired := len(removed)
	if len(added) < paired {
		paired = len(added)
	}
	for i := 0; i < paired; i++ {
		c, err := compareAlternatives(removed[i], added[i])
		if err != nil {
			return nil, err
		}
		result.Changes = append(result.Changes, c)
	}
	for _, alt := range removed[paired:] {
		result.Changes = append(result.Changes, Change{
			Type:     ChangeAlternativeRemoved,
			Severity: SeverityModerate,
			Message:  fmt.Sprintf("Alternative %s removed; requesters relying on it will be rejected.", describe(alt)),
		})
	}
	for _, alt := range added[paired:] {
		result.Changes = append(result.Changes, Change{
			Type:     ChangeAlternativeAdded,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("⚠️  CRITICAL: New alternative %s added; requesters may now satisfy the policy with it.", describe(alt)),
		})
	}

	result.HasChanges = len(result.Changes) > 0
	return result, nil
}

// Added reports a policy that only exists on the new side.
func Added(p *wspolicy.Policy) *Result {
	return &Result{HasChanges: true, Changes: []Change{{
		Type:     ChangePolicyAdded,
		Severity: SeverityModerate,
		Message:  fmt.Sprintf("New policy added with %d alternatives.", p.Len()),
	}}}
}

// Removed reports a policy that only exists on the old side.
func Removed(p *wspolicy.Policy) *Result {
	return &Result{HasChanges: true, Changes: []Change{{
		Type:     ChangePolicyRemoved,
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("Policy with %d alternatives removed.", p.Len()),
	}}}
}

// unmatched returns the alternatives of a with no equal alternative in b,
// counting duplicates.
func unmatched(a, b []*wspolicy.AssertionSet) []*wspolicy.AssertionSet {
	used := make([]bool, len(b))
	var out []*wspolicy.AssertionSet
outer:
	for _, x := range a {
		for j, y := range b {
			if !used[j] && x.Equal(y) {
				used[j] = true
				continue outer
			}
		}
		out = append(out, x)
	}
	return out
}

func kindChange(from, to wspolicy.Kind) Change {
	c := Change{
		Type:     ChangeKind,
		Severity: SeverityModerate,
		Message:  fmt.Sprintf("Policy kind changed from %s to %s.", from, to),
	}
	switch to {
	case wspolicy.KindEmpty:
		c.Severity = SeverityCritical
		c.Message = fmt.Sprintf("⚠️  CRITICAL: Policy kind changed from %s to empty; every requester is now admitted.", from)
	case wspolicy.KindNull:
		c.Severity = SeverityCritical
		c.Message = fmt.Sprintf("⚠️  CRITICAL: Policy kind changed from %s to null; no requester is admitted.", from)
	}
	return c
}

func compareAlternatives(oldAlt, newAlt *wspolicy.AssertionSet) (Change, error) {
	oldJSON, err := json.Marshal(oldAlt)
	if err != nil {
		return Change{}, fmt.Errorf("failed to marshal old alternative: %w", err)
	}
	newJSON, err := json.Marshal(newAlt)
	if err != nil {
		return Change{}, fmt.Errorf("failed to marshal new alternative: %w", err)
	}
	patches, err := jsondiff.CompareJSON(oldJSON, newJSON, jsondiff.LCS())
	if err != nil {
		return Change{}, fmt.Errorf("failed to compute diff: %w", err)
	}

	translations := Translate(patches, oldAlt.Assertions(), newAlt.Assertions())
	c := Change{
		Type:     ChangeAlternativeChanged,
		Severity: SeveritySafe,
		Patches:  patches,
		Message:  fmt.Sprintf("Alternative %s changed to %s.", describe(oldAlt), describe(newAlt)),
	}
	for _, tr := range translations {
		if s := GetSeverity(tr); s > c.Severity {
			c.Severity = s
		}
	}
	if len(translations) > 0 {
		c.Message += " " + strings.Join(translations, " ")
	} else {
		c.Severity = SeverityModerate
	}
	return c, nil
}

// describe renders an alternative as [A, B].
func describe(alt *wspolicy.AssertionSet) string {
	names := make([]string, 0, alt.Len())
	for _, a := range alt.Assertions() {
		names = append(names, a.Name().Local)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
