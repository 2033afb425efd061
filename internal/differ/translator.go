package differ

import (
	"strconv"
	"strings"

	"github.com/policyforge/wspolicy/internal/wspolicy"
	"github.com/wI2L/jsondiff"
)

// Translate patches between two alternatives to english. Paths are relative
// to the alternative's JSON array; oldAs and newAs resolve assertion indexes
// to names.
func Translate(patches jsondiff.Patch, oldAs, newAs []wspolicy.Assertion) []string {
	if len(patches) == 0 {
		return nil
	}

	var translations []string
	seen := make(map[string]bool)

	for _, op := range patches {
		translation := translateOperation(op, oldAs, newAs)
		if translation != "" && !seen[translation] {
			seen[translation] = true
			translations = append(translations, translation)
		}
	}

	return translations
}

// splitPointer decodes a JSON pointer into its unescaped tokens.
func splitPointer(path string) []string {
	if path == "" || path == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts
}

func nameAt(as []wspolicy.Assertion, i int) string {
	if i < 0 || i >= len(as) {
		return ""
	}
	return as[i].Name().Local
}

// localName strips the "{namespace}" prefix of a rendered name.
func localName(v interface{}) string {
	s, _ := v.(string)
	if i := strings.LastIndex(s, "}"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// assertionName reads the name of an assertion rendered as JSON.
func assertionName(v interface{}) string {
	m, _ := v.(map[string]interface{})
	return localName(m["name"])
}

func translateOperation(op jsondiff.Operation, oldAs, newAs []wspolicy.Assertion) string {
	tokens := splitPointer(op.Path)
	if len(tokens) == 0 {
		return "Alternative modified."
	}

	if len(tokens) == 1 {
		switch op.Type {
		case jsondiff.OperationAdd:
			return "Assertion '" + assertionName(op.Value) + "' added."
		case jsondiff.OperationRemove:
			return "Assertion '" + assertionName(op.OldValue) + "' removed."
		case jsondiff.OperationReplace:
			return replaced(assertionName(op.OldValue), assertionName(op.Value))
		}
		return ""
	}

	// Element diffs are addressed by their index in the new alternative.
	idx, err := strconv.Atoi(tokens[0])
	if err != nil {
		return "Alternative modified."
	}
	name := nameAt(newAs, idx)
	if name == "" {
		name = nameAt(oldAs, idx)
	}

	switch tokens[1] {
	case "name":
		return replaced(localName(op.OldValue), localName(op.Value))
	case "value":
		return "Value of assertion '" + name + "' changed."
	case "attributes":
		return translateAttribute(op.Type, name, tokens[2:])
	case "optional":
		if op.Type == jsondiff.OperationRemove {
			return "Assertion '" + name + "' is no longer optional."
		}
		return "Assertion '" + name + "' is now optional."
	case "ignorable":
		if op.Type == jsondiff.OperationRemove {
			return "Assertion '" + name + "' is no longer ignorable."
		}
		return "Assertion '" + name + "' is now ignorable."
	case "parameters":
		return "Parameters of assertion '" + name + "' changed."
	case "nested_policy":
		return translateNested(op.Type, name, len(tokens) == 2)
	}
	return "Assertion '" + name + "' modified."
}

func replaced(from, to string) string {
	return "⚠️  CRITICAL: Assertion '" + from + "' replaced by '" + to + "'."
}

// translateAttribute
func translateAttribute(t string, assertion string, rest []string) string {
	if len(rest) == 0 {
		return "Attributes of assertion '" + assertion + "' changed."
	}
	attr := rest[0]
	switch t {
	case jsondiff.OperationAdd:
		return "Attribute '" + attr + "' added to assertion '" + assertion + "'."
	case jsondiff.OperationRemove:
		return "Attribute '" + attr + "' removed from assertion '" + assertion + "'."
	default:
		return "Attribute '" + attr + "' of assertion '" + assertion + "' changed."
	}
}

// translateNested
func translateNested(t string, assertion string, whole bool) string {
	switch {
	case whole && t == jsondiff.OperationAdd:
		return "Nested policy added to assertion '" + assertion + "'."
	case whole && t == jsondiff.OperationRemove:
		return "⚠️  CRITICAL: Nested policy removed from assertion '" + assertion + "'."
	case t == jsondiff.OperationAdd:
		return "Requirement added to nested policy of assertion '" + assertion + "'."
	case t == jsondiff.OperationRemove:
		return "Requirement removed from nested policy of assertion '" + assertion + "'."
	default:
		return "Nested policy of assertion '" + assertion + "' modified."
	}
}
