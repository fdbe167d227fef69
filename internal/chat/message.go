package chat

// Message is one chat entry as it travels the wire and sits in the
// history file. Timestamp is unix milliseconds.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"`
}

// Frame types understood on the socket. Clients send "message" and
// "clear"; the server additionally sends "init" right after a client
// connects.
const (
	frameInit    = "init"
	frameMessage = "message"
	frameClear   = "clear"
)

// inboundFrame is the envelope clients send. Message is only set for
// "message" frames.
type inboundFrame struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// initFrame seeds a new client with the full history, newest first.
// Messages marshals as [] rather than null when the history is empty.
type initFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

// messageFrame carries one relayed message, or just the type for
// "clear".
type messageFrame struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}
