// Package adapter maps raw webhook requests onto the platform-neutral
// message record. Recognition keys off the User-Agent header; field names
// come from a per-platform mapping table, not a schema parser.
package adapter

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/botbridge/chatbridge/internal/model/client"
)

// userAgentMarkers are matched as case-insensitive substrings.
var userAgentMarkers = []struct {
	marker string
	client client.Type
}{
	{"chatfuel", client.Chatfuel},
	{"manychat", client.ManyChat},
}

// fieldTable names each platform's payload keys for the three fields the
// bridge cares about.
type fieldTable struct {
	userName string
	userID   string
	text     string
}

var fieldTables = map[client.Type]fieldTable{
	client.Chatfuel: {
		userName: "first name",
		userID:   "messenger user id",
		text:     "last user freeform input",
	},
	client.ManyChat: {
		userName: "first_name",
		userID:   "id",
		text:     "last_input_text",
	},
}

// Recognize inspects the User-Agent header and returns the matching
// platform, or Unknown when no marker matches.
func Recognize(headers http.Header) client.Type {
	userAgent := strings.ToLower(headers.Get("User-Agent"))
	for _, entry := range userAgentMarkers {
		if strings.Contains(userAgent, entry.marker) {
			return entry.client
		}
	}
	return client.Unknown
}

// Normalize applies the platform's field table to the decoded JSON body.
// An unknown platform yields a zero Message.
func Normalize(body map[string]any, t client.Type) client.Message {
	table, ok := fieldTables[t]
	if !ok {
		return client.Message{}
	}

	return client.Message{
		UserName: stringField(body, table.userName),
		UserID:   stringField(body, table.userID),
		Text:     stringField(body, table.text),
		Client:   t,
	}
}

// stringField renders a JSON value to its string form. ManyChat sends
// numeric subscriber ids, so numbers are accepted alongside strings.
func stringField(body map[string]any, key string) string {
	value, ok := body[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
