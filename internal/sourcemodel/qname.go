package sourcemodel

import (
	"fmt"
	"strings"
)

// QName is a namespace-qualified name.
type QName struct {
	Namespace string
	Local     string
}

// NewQName builds a qualified name.
func NewQName(namespace, local string) QName {
	return QName{Namespace: namespace, Local: local}
}

// ParseQName accepts "{namespace}local" or a bare local name.
func ParseQName(s string) (QName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return QName{}, fmt.Errorf("empty qualified name")
	}
	if !strings.HasPrefix(s, "{") {
		return QName{Local: s}, nil
	}
	end := strings.Index(s, "}")
	if end < 0 {
		return QName{}, fmt.Errorf("qualified name %q: missing closing brace", s)
	}
	local := s[end+1:]
	if local == "" {
		return QName{}, fmt.Errorf("qualified name %q: missing local part", s)
	}
	return QName{Namespace: s[1:end], Local: local}, nil
}

// IsZero reports whether the name has no local part.
func (q QName) IsZero() bool {
	return q.Local == ""
}

func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return "{" + q.Namespace + "}" + q.Local
}
