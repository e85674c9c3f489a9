package client

// Type identifies the chat platform that delivered a webhook.
type Type string

const (
	Chatfuel Type = "chatfuel"
	ManyChat Type = "manychat"
	Unknown  Type = "unknown"
)

// Message is the platform-neutral view of one inbound webhook payload.
// UserID is required for any history or dispatch operation; Text may be
// empty and is still forwarded to the model.
type Message struct {
	UserName string `json:"userName,omitempty"`
	UserID   string `json:"userId"`
	Text     string `json:"text"`
	Client   Type   `json:"client"`
}

// Valid reports whether the message can enter the pipeline.
func (m Message) Valid() bool {
	return m.UserID != ""
}
