package wire

// Message type discriminators as they appear on the wire.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Message is the tagged-variant representation of one protocol message.
// Exactly three kinds exist: *Request, *Response and *Event.
type Message interface {
	// Kind returns the wire type discriminator of the message.
	Kind() string
}

// Compile-time verification of the variant set.
var (
	_ Message = (*Request)(nil)
	_ Message = (*Response)(nil)
	_ Message = (*Event)(nil)
)

// Request is a client-originated message carrying a command and its
// arguments. Every request expects exactly one response correlated by seq.
//
// Wire format:
//
//	{"seq":1,"type":"request","command":"initialize","arguments":{"pathFormat":"path"}}
type Request struct {
	Seq       int            `json:"seq"`
	Type      string         `json:"type"`
	Command   string         `json:"command"`
	Arguments map[string]any `json:"arguments"`
}

// NewRequest builds a request with the type discriminator filled in.
func NewRequest(seq int, command string, arguments map[string]any) *Request {
	return &Request{
		Seq:       seq,
		Type:      TypeRequest,
		Command:   command,
		Arguments: arguments,
	}
}

// Kind implements Message.
func (r *Request) Kind() string { return TypeRequest }

// Response is the adapter's reply to exactly one prior request, correlated
// via RequestSeq. Success=false responses are still delivered to the waiting
// caller; they are protocol-level results, not transport failures.
type Response struct {
	Seq        int     `json:"seq"`
	Type       string  `json:"type"`
	RequestSeq int     `json:"request_seq"`
	Success    bool    `json:"success"`
	Command    string  `json:"command"`
	Message    *string `json:"message"`
	Body       any     `json:"body"`
}

// Kind implements Message.
func (r *Response) Kind() string { return TypeResponse }

// Event is an unsolicited notification from the adapter. Events carry no
// correlation to any request; zero or more may arrive per event name.
type Event struct {
	Seq   int    `json:"seq"`
	Type  string `json:"type"`
	Event string `json:"event"`
	Body  any    `json:"body"`
}

// Kind implements Message.
func (e *Event) Kind() string { return TypeEvent }
