package sourcemodel

import "fmt"

// NamespaceVersion identifies the WS-Policy namespace a model was written in.
type NamespaceVersion string

const (
	// NamespaceV12 is the 2004/09 submission namespace.
	NamespaceV12 NamespaceVersion = "http://schemas.xmlsoap.org/ws/2004/09/policy"
	// NamespaceV15 is the W3C recommendation namespace.
	NamespaceV15 NamespaceVersion = "http://www.w3.org/ns/ws-policy"

	// DefaultNamespaceVersion is used when a model does not name one.
	DefaultNamespaceVersion = NamespaceV15
)

// WSIT vendor namespace carrying the Visibility attribute.
const wsitPolicyNamespace = "http://java.sun.com/xml/ns/wsit/policy"

var (
	// VisibilityAttribute marks assertions that must not be published.
	VisibilityAttribute = QName{Namespace: wsitPolicyNamespace, Local: "visibility"}
	// VisibilityPrivate is the VisibilityAttribute value for private assertions.
	VisibilityPrivate = "private"
)

// ParseNamespaceVersion accepts the namespace URI or the short "1.2"/"1.5" forms.
// An empty string yields the default version.
func ParseNamespaceVersion(s string) (NamespaceVersion, error) {
	switch s {
	case "":
		return DefaultNamespaceVersion, nil
	case "1.2", string(NamespaceV12):
		return NamespaceV12, nil
	case "1.5", string(NamespaceV15):
		return NamespaceV15, nil
	default:
		return "", fmt.Errorf("unknown WS-Policy namespace version %q", s)
	}
}

// OptionalAttribute returns the wsp:Optional attribute name for this version.
func (v NamespaceVersion) OptionalAttribute() QName {
	return QName{Namespace: string(v), Local: "Optional"}
}

// IgnorableAttribute returns the wsp:Ignorable attribute name for this version.
func (v NamespaceVersion) IgnorableAttribute() QName {
	return QName{Namespace: string(v), Local: "Ignorable"}
}

// ShortName is "1.2" or "1.5".
func (v NamespaceVersion) ShortName() string {
	switch v {
	case NamespaceV12:
		return "1.2"
	case NamespaceV15:
		return "1.5"
	default:
		return string(v)
	}
}

var knownVersions = []NamespaceVersion{NamespaceV15, NamespaceV12}

func isOptionalAttribute(name QName) bool {
	for _, v := range knownVersions {
		if name == v.OptionalAttribute() {
			return true
		}
	}
	return false
}

func isIgnorableAttribute(name QName) bool {
	for _, v := range knownVersions {
		if name == v.IgnorableAttribute() {
			return true
		}
	}
	return false
}
