package domain

import (
	"encoding/json"
	"strings"
)

// Host of the short video share links customers paste into the chat.
const ShareLinkHost = "v.douyin.com"

type paramEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NormalizeShareLink brings a share link into the canonical form stored in
// the database: trimmed, no duplicate trailing slashes, and exactly one
// trailing slash for short links.
func NormalizeShareLink(raw string) string {
	link := strings.TrimSpace(raw)
	link = strings.TrimRight(link, "/")
	if link == "" {
		return ""
	}
	if strings.Contains(link, ShareLinkHost) {
		link += "/"
	}
	return link
}

// ShareLinkCore strips scheme and trailing slash so that http/https and
// slash variants of the same link compare equal.
func ShareLinkCore(link string) string {
	core := strings.TrimPrefix(link, "https://")
	core = strings.TrimPrefix(core, "http://")
	return strings.TrimRight(core, "/")
}

// ExtractShareLink pulls the first share link out of an order's Params
// field, a JSON array of {name, value} pairs. Returns "" when none is found
// or the field is not valid JSON.
func ExtractShareLink(params string) string {
	var entries []paramEntry
	if err := json.Unmarshal([]byte(params), &entries); err != nil {
		return ""
	}
	for _, entry := range entries {
		value := strings.TrimSpace(entry.Value)
		if !strings.Contains(value, ShareLinkHost) {
			continue
		}
		if !strings.HasPrefix(value, "http") {
			continue
		}
		return NormalizeShareLink(value)
	}
	return ""
}
