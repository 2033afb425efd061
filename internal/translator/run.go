package translator

import (
	"context"
	"fmt"

	"github.com/policyforge/wspolicy/internal/sourcemodel"
	"github.com/policyforge/wspolicy/internal/wspolicy"
)

// rawPolicy is policy content waiting to be decomposed. Its alternatives list
// is shared with the assertion that owns the policy, if any.
type rawPolicy struct {
	content      []*sourcemodel.ModelNode
	alternatives *alternativeList
}

type alternativeList struct {
	items []*rawAlternative
}

// rawAlternative is one decomposed alternative: assertion nodes plus the
// nested policies found on them.
type rawAlternative struct {
	assertions     []*rawAssertion
	nestedPolicies []*rawPolicy
}

type rawAssertion struct {
	node   *sourcemodel.ModelNode
	params []*sourcemodel.ModelNode
	nested *alternativeList
}

// run is the per-call state of one translation.
type run struct {
	t *Translator

	// scratch owns the synthetic nodes used by optional expansion.
	scratch  *sourcemodel.PolicySourceModel
	emptyAll *sourcemodel.ModelNode
	required map[*sourcemodel.ModelNode]*sourcemodel.ModelNode
}

func newRun(t *Translator, version sourcemodel.NamespaceVersion) *run {
	return &run{t: t, scratch: sourcemodel.NewPolicySourceModel(version)}
}

func (r *run) createAlternatives(ctx context.Context, model *sourcemodel.PolicySourceModel) ([]*wspolicy.AssertionSet, error) {
	root := &rawPolicy{
		content:      []*sourcemodel.ModelNode{model.Root()},
		alternatives: &alternativeList{},
	}

	policies := []*rawPolicy{root}
	for len(policies) > 0 {
		policy := policies[0]
		policies = policies[1:]

		contents := [][]*sourcemodel.ModelNode{policy.content}
		for len(contents) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, &TranslationError{Kind: err, Msg: "policy normalization cancelled"}
			}
			content := contents[0]
			contents = contents[1:]

			assertions, exactlyOne, err := r.decompose(content)
			if err != nil {
				return nil, err
			}
			if len(exactlyOne) == 0 {
				alt, err := newRawAlternative(assertions)
				if err != nil {
					return nil, err
				}
				policy.alternatives.items = append(policy.alternatives.items, alt)
				policies = append(policies, alt.nestedPolicies...)
				if err := r.checkLimit(len(policy.alternatives.items)); err != nil {
					return nil, err
				}
				continue
			}
			contents = append(contents, Combine(assertions, exactlyOne, false)...)
			if err := r.checkLimit(len(contents) + len(policy.alternatives.items)); err != nil {
				return nil, err
			}
		}
	}

	var sets []*wspolicy.AssertionSet
	for _, alt := range root.alternatives.items {
		normalized, err := r.normalizeAlternative(alt)
		if err != nil {
			return nil, err
		}
		sets = append(sets, normalized...)
		if err := r.checkLimit(len(sets)); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

func (r *run) checkLimit(n int) error {
	if r.t.limit > 0 && n > r.t.limit {
		return &TranslationError{Kind: ErrAlternativeLimit, Msg: fmt.Sprintf("normalization needs more than %d alternatives", r.t.limit)}
	}
	return nil
}

// decompose dissolves POLICY, ALL and POLICY_REFERENCE nodes in place and
// splits the content into plain assertions and EXACTLY_ONE groups.
func (r *run) decompose(content []*sourcemodel.ModelNode) ([]*sourcemodel.ModelNode, [][]*sourcemodel.ModelNode, error) {
	var (
		assertions []*sourcemodel.ModelNode
		exactlyOne [][]*sourcemodel.ModelNode
	)
	queue := append([]*sourcemodel.ModelNode(nil), content...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch node.Type() {
		case sourcemodel.NodePolicy, sourcemodel.NodeAll:
			queue = append(queue, node.Children()...)
		case sourcemodel.NodePolicyReference:
			root, err := referencedRoot(node)
			if err != nil {
				return nil, nil, err
			}
			queue = append(queue, root.Children()...)
		case sourcemodel.NodeExactlyOne:
			group, err := expandExactlyOne(node.Children())
			if err != nil {
				return nil, nil, err
			}
			exactlyOne = append(exactlyOne, group)
		case sourcemodel.NodeAssertion:
			if r.t.expandOptional && node.Data().IsOptional() {
				group, err := r.optionalGroup(node)
				if err != nil {
					return nil, nil, err
				}
				exactlyOne = append(exactlyOne, group)
				continue
			}
			assertions = append(assertions, node)
		default:
			return nil, nil, structural("unexpected %s node while decomposing policy content", node.Type())
		}
	}
	return assertions, exactlyOne, nil
}

// expandExactlyOne flattens nested EXACTLY_ONE nodes into one list of
// choices; references are replaced by their target's root.
func expandExactlyOne(content []*sourcemodel.ModelNode) ([]*sourcemodel.ModelNode, error) {
	var result []*sourcemodel.ModelNode
	queue := append([]*sourcemodel.ModelNode(nil), content...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch node.Type() {
		case sourcemodel.NodePolicy, sourcemodel.NodeAll, sourcemodel.NodeAssertion:
			result = append(result, node)
		case sourcemodel.NodePolicyReference:
			root, err := referencedRoot(node)
			if err != nil {
				return nil, err
			}
			result = append(result, root)
		case sourcemodel.NodeExactlyOne:
			queue = append(queue, node.Children()...)
		default:
			return nil, structural("unexpected %s node inside EXACTLY_ONE", node.Type())
		}
	}
	return result, nil
}

// optionalGroup returns {A', All{}} where A' is a copy of the optional
// assertion A without its Optional marker. Copies are cached so every path
// reaching A uses the same A'.
func (r *run) optionalGroup(node *sourcemodel.ModelNode) ([]*sourcemodel.ModelNode, error) {
	if r.required == nil {
		r.required = make(map[*sourcemodel.ModelNode]*sourcemodel.ModelNode)
		all, err := r.scratch.Root().AddAll()
		if err != nil {
			return nil, err
		}
		r.emptyAll = all
	}
	required, ok := r.required[node]
	if !ok {
		c, err := node.CopyTo(r.scratch.Root())
		if err != nil {
			return nil, err
		}
		data := c.Data()
		data.SetOptional(sourcemodel.NamespaceV12, false)
		data.SetOptional(sourcemodel.NamespaceV15, false)
		r.required[node] = c
		required = c
	}
	return []*sourcemodel.ModelNode{required, r.emptyAll}, nil
}

func referencedRoot(node *sourcemodel.ModelNode) (*sourcemodel.ModelNode, error) {
	target := node.ReferencedModel()
	if target != nil {
		return target.Root(), nil
	}
	ref := node.ReferenceData()
	if ref == nil {
		return nil, structural("policy reference node has no reference data")
	}
	return nil, structural("unexpanded policy reference node found referencing %q", ref.URI())
}

// newRawAlternative collects parameters and the nested policy of every
// assertion in the alternative.
func newRawAlternative(assertions []*sourcemodel.ModelNode) (*rawAlternative, error) {
	alt := &rawAlternative{}
	for _, node := range assertions {
		ra := &rawAssertion{node: node}
		alt.assertions = append(alt.assertions, ra)

		for _, child := range node.Children() {
			switch child.Type() {
			case sourcemodel.NodeAssertionParameter:
				ra.params = append(ra.params, child)
			case sourcemodel.NodePolicy, sourcemodel.NodePolicyReference:
				if ra.nested != nil {
					return nil, structural("unexpected multiple nested policy nodes in assertion %s", node.Data().Name())
				}
				content := child
				if child.Type() == sourcemodel.NodePolicyReference {
					root, err := referencedRoot(child)
					if err != nil {
						return nil, err
					}
					content = root
				}
				ra.nested = &alternativeList{}
				alt.nestedPolicies = append(alt.nestedPolicies, &rawPolicy{
					content:      []*sourcemodel.ModelNode{content},
					alternatives: ra.nested,
				})
			default:
				return nil, structural("unexpected %s node in assertion %s", child.Type(), node.Data().Name())
			}
		}
	}
	return alt, nil
}

// normalizeAlternative turns a raw alternative into one assertion set per
// combination of assertion options. Assertions keep their position.
func (r *run) normalizeAlternative(alt *rawAlternative) ([]*wspolicy.AssertionSet, error) {
	groups := make([][]wspolicy.Assertion, 0, len(alt.assertions))
	for _, ra := range alt.assertions {
		options, err := r.normalizeAssertion(ra)
		if err != nil {
			return nil, err
		}
		groups = append(groups, options)
	}

	combinations := product(groups)
	sets := make([]*wspolicy.AssertionSet, 0, len(combinations))
	for _, c := range combinations {
		sets = append(sets, wspolicy.NewAssertionSet(c))
	}
	return sets, nil
}

// normalizeAssertion returns one assertion per nested alternative, or a
// single assertion when there is no nested policy.
func (r *run) normalizeAssertion(ra *rawAssertion) ([]wspolicy.Assertion, error) {
	var params []wspolicy.Assertion
	for _, p := range ra.params {
		param, err := r.createParameter(p)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}

	var nested []*wspolicy.AssertionSet
	if ra.nested != nil {
		for _, alt := range ra.nested.items {
			sets, err := r.normalizeAlternative(alt)
			if err != nil {
				return nil, err
			}
			nested = append(nested, sets...)
		}
		if err := r.checkLimit(len(nested)); err != nil {
			return nil, err
		}
	}

	data := ra.node.Data()
	if len(nested) == 0 {
		a, err := r.createAssertion(data, params, nil)
		if err != nil {
			return nil, err
		}
		return []wspolicy.Assertion{a}, nil
	}

	options := make([]wspolicy.Assertion, 0, len(nested))
	for _, alt := range nested {
		a, err := r.createAssertion(data, params, alt)
		if err != nil {
			return nil, err
		}
		options = append(options, a)
	}
	return options, nil
}

// createParameter materializes a parameter subtree. Parameters never carry
// nested policies.
func (r *run) createParameter(node *sourcemodel.ModelNode) (wspolicy.Assertion, error) {
	if node.Type() != sourcemodel.NodeAssertionParameter {
		return nil, structural("expected %s node, got %s", sourcemodel.NodeAssertionParameter, node.Type())
	}
	var children []wspolicy.Assertion
	for _, child := range node.Children() {
		c, err := r.createParameter(child)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return r.createAssertion(node.Data(), children, nil)
}

func (r *run) createAssertion(data *sourcemodel.AssertionData, params []wspolicy.Assertion, nested *wspolicy.AssertionSet) (wspolicy.Assertion, error) {
	var (
		a   wspolicy.Assertion
		err error
	)
	if creator, ok := r.t.creators[data.Name().Namespace]; ok {
		a, err = creator.CreateAssertion(data, params, nested, r.t.defaultCreator)
	} else {
		a, err = r.t.defaultCreator.CreateAssertion(data, params, nested, nil)
	}
	if err != nil {
		return nil, &TranslationError{Kind: ErrAssertionCreation, Msg: fmt.Sprintf("failed to create assertion %s", data.Name()), Err: err}
	}
	if a == nil {
		return nil, &TranslationError{Kind: ErrAssertionCreation, Msg: fmt.Sprintf("creator returned no assertion for %s", data.Name())}
	}
	return a, nil
}
