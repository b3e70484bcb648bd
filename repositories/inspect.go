package repositories

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Entry is a stored record summarized for inspection tools.
// Password hashes are never part of it.
type Entry struct {
	Key    string
	Kind   string
	ID     string
	At     string
	Detail string
}

const detailWidth = 60

// Describe decodes the record stored under key. Index keys hold a plain id.
func Describe(key string, val []byte) Entry {
	entry := Entry{Key: key, Kind: "RAW", Detail: fmt.Sprintf("Size: %d bytes", len(val))}
	switch {
	case strings.HasPrefix(key, "user:name:"), strings.HasPrefix(key, "msgid:"):
		entry.Kind, entry.Detail = "INDEX", "-> "+string(val)
		return entry
	case strings.HasPrefix(key, "conv:member:"), strings.HasPrefix(key, "conv:direct:"):
		entry.Kind = "INDEX"
		if len(val) > 0 {
			entry.Detail = "-> " + string(val)
		}
		return entry
	}

	r, err := decode(val)
	if err != nil {
		entry.Detail = "Error: " + err.Error()
		return entry
	}
	entry.ID = r.str("id")
	switch {
	case strings.HasPrefix(key, "user:id:"):
		u := toUser(r)
		entry.Kind = "USER"
		entry.At = formatTime(u.CreatedAt)
		entry.Detail = fmt.Sprintf("%s (%s)", u.Username, u.Name())
	case strings.HasPrefix(key, "conv:id:"):
		c := toConversation(r)
		entry.Kind = "CONVERSATION"
		entry.At = formatTime(c.UpdatedAt)
		entry.Detail = fmt.Sprintf("%s %q, %d participants", c.Kind, c.Name, len(c.Participants))
	case strings.HasPrefix(key, "msg:"):
		entry.Kind = "MESSAGE"
		entry.At = r.str("created_at")
		entry.Detail = fmt.Sprintf("[%s] %s", r.str("type"), truncate(r.str("content"), detailWidth))
	}
	return entry
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width]) + "…"
}
