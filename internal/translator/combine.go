package translator

// Combine returns every combination of base plus one element from each option
// group. Single-element groups are appended to base in order; the remaining
// groups are expanded one after another, earlier groups varying fastest.
// Nothing is sorted or deduplicated.
//
// An empty group makes the whole product empty and Combine returns nil,
// unless ignoreEmpty is set, in which case the group is skipped. With no
// groups at all the result is a single copy of base.
func Combine[E any](base []E, options [][]E, ignoreEmpty bool) [][]E {
	if len(options) == 0 {
		return [][]E{append([]E(nil), base...)}
	}

	first := append([]E(nil), base...)
	var pending [][]E
	for _, opt := range options {
		switch len(opt) {
		case 0:
			if !ignoreEmpty {
				return nil
			}
		case 1:
			first = append(first, opt[0])
		default:
			pending = append(pending, opt)
		}
	}

	combinations := [][]E{first}
	for _, opt := range pending {
		current := combinations
		next := make([][]E, 0, len(current)*len(opt))
		for _, elem := range opt {
			for _, partial := range current {
				c := make([]E, len(partial), len(partial)+1)
				copy(c, partial)
				next = append(next, append(c, elem))
			}
		}
		combinations = next
	}
	return combinations
}

// product is Combine without the single-element shortcut: every group keeps
// its position, so the i-th element of each combination comes from groups[i].
func product[E any](groups [][]E) [][]E {
	combinations := [][]E{nil}
	for _, g := range groups {
		next := make([][]E, 0, len(combinations)*len(g))
		for _, elem := range g {
			for _, partial := range combinations {
				c := make([]E, len(partial), len(partial)+1)
				copy(c, partial)
				next = append(next, append(c, elem))
			}
		}
		combinations = next
	}
	return combinations
}
