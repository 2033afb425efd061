package receipt

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitiveFlags are flag names whose values are always redacted.
var sensitiveFlags = map[string]bool{
	"token":         true,
	"password":      true,
	"secret":        true,
	"api-key":       true,
	"auth":          true,
	"header":        true,
	"headers":       true,
	"otel-headers":  true,
	"bearer":        true,
	"access-token":  true,
	"client-secret": true,
}

// sensitivePrefixes are value prefixes of well-known token formats.
var sensitivePrefixes = []string{
	"ghp_",
	"github_pat_",
	"xoxb-",
	"AKIA",
	"ya29.",
	"Bearer ",
}

var jwtRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}$`)

const redactedValue = "[REDACTED]"

// RedactArgs sanitizes CLI arguments: values of sensitive flags, token-like
// values and passwords in URL user info (for example an --otel-endpoint with
// credentials) are replaced. It reports whether anything was changed.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}

	redacted := make([]string, len(args))
	wasRedacted := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") {
			if eqIdx := strings.Index(arg, "="); eqIdx > 0 {
				flag := extractFlagName(arg[:eqIdx])
				value := arg[eqIdx+1:]
				if sensitiveFlags[flag] || isSensitiveValue(value) {
					redacted[i] = arg[:eqIdx+1] + redactedValue
					wasRedacted = true
					continue
				}
				if clean, ok := redactURL(value); ok {
					redacted[i] = arg[:eqIdx+1] + clean
					wasRedacted = true
					continue
				}
				redacted[i] = arg
				continue
			}

			if sensitiveFlags[extractFlagName(arg)] && i+1 < len(args) {
				redacted[i] = arg
				i++
				redacted[i] = redactedValue
				wasRedacted = true
				continue
			}
		}

		if isSensitiveValue(arg) {
			redacted[i] = redactedValue
			wasRedacted = true
			continue
		}
		if clean, ok := redactURL(arg); ok {
			redacted[i] = clean
			wasRedacted = true
			continue
		}

		redacted[i] = arg
	}

	return redacted, wasRedacted
}

func extractFlagName(s string) string {
	s = strings.TrimPrefix(s, "--")
	s = strings.TrimPrefix(s, "-")
	return strings.ToLower(s)
}

func isSensitiveValue(value string) bool {
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return jwtRegex.MatchString(value)
}

// redactURL masks the password of an absolute URL with user info.
func redactURL(value string) (string, bool) {
	if !strings.Contains(value, "://") || !strings.Contains(value, "@") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return "", false
	}
	if _, has := u.User.Password(); !has {
		return "", false
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String(), true
}
