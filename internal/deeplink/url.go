package deeplink

import (
	"net/url"
	"strings"
)

var queryKeys = []string{"v", "item"}

const watchPrefix = "/watch/"

// FromURL extracts an item identifier from a shared link. It accepts
// ?v=<id>, ?item=<id> and /watch/<id> forms.
func FromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	q := u.Query()
	for _, key := range queryKeys {
		if id := strings.TrimSpace(q.Get(key)); id != "" {
			return id, true
		}
	}

	if rest, ok := strings.CutPrefix(u.Path, watchPrefix); ok {
		id := strings.Trim(rest, "/")
		if id != "" && !strings.Contains(id, "/") {
			return id, true
		}
	}
	return "", false
}
