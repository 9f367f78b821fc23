package events

import "regexp"

// redactionPatterns is the fixed pattern set applied to Error payload string
// fields (message, stack). Grounded on the pack's redaction engine; scoped
// down to the fixed set spec.md §4.1 names: API-key-like tokens, bearer
// tokens, and password=... assignments.
var redactionPatterns = []struct {
	name  string
	regex *regexp.Regexp
}{
	{"bearer-token", regexp.MustCompile(`Bearer [A-Za-z0-9\-._~+/]+=*`)},
	{"api-key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`)},
	{"password", regexp.MustCompile(`(?i)password\s*=\s*\S+`)},
}

// redactedMetadataKeys is the fixed key-set stripped from custom metadata.
var redactedMetadataKeys = map[string]struct{}{
	"api_key":  {},
	"token":    {},
	"password": {},
	"secret":   {},
}

func redactString(s string) string {
	for _, p := range redactionPatterns {
		s = p.regex.ReplaceAllString(s, "[REDACTED:"+p.name+"]")
	}
	return s
}

// Redact returns a copy of e with sensitive content replaced: the fixed
// pattern set applied to Error payload message/stack fields, and the fixed
// metadata key-set stripped from custom metadata. Redact never mutates its
// input and is idempotent: Redact(Redact(e)) == Redact(e).
func Redact(e Event) Event {
	out := e
	out.metadata = e.metadata.clone()
	if out.metadata.Custom != nil {
		for k := range redactedMetadataKeys {
			delete(out.metadata.Custom, k)
		}
	}

	if errData, ok := e.data.(ErrorData); ok {
		errData.Message = redactString(errData.Message)
		errData.Stack = redactString(errData.Stack)
		out.data = errData
	}

	return out
}
