package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/adapterkit/dap-client-go/internal/errors"
)

// contentLengthHeader is the only header this codec interprets.
const contentLengthHeader = "Content-Length:"

// Encode serializes msg into one wire frame: an ASCII Content-Length header
// line, a blank line, then exactly the declared number of UTF-8 body bytes.
// The frame is self-describing; the receiver never needs to buffer past the
// declared length.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	var buf bytes.Buffer

	buf.Grow(len(body) + 32)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)

	return buf.Bytes(), nil
}

// Decoder reads wire frames from a byte stream.
//
// A Decoder owns its stream: it buffers reads, so nothing else may read from
// the underlying reader, and Decode must not be called concurrently.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads the next frame from the stream and returns its message.
//
// It returns io.EOF when the stream ends at a header boundary (the normal
// signal that the adapter closed its output), and a *errors.DecodeError for
// any malformed frame: a bad Content-Length value, a truncated body,
// unparseable JSON, or an unrecognized type discriminator. Header lines
// other than Content-Length are ignored for forward compatibility.
func (d *Decoder) Decode() (Message, error) {
	contentLength := -1

	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Stream exhausted before a complete header section: the
				// remote side closed its output, usually because it exited.
				return nil, io.EOF
			}

			return nil, &errors.DecodeError{Reason: "read header line", Err: err}
		}

		if strings.TrimRight(line, "\r\n") == "" {
			break
		}

		value, ok := strings.CutPrefix(line, contentLengthHeader)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, &errors.DecodeError{
				Reason:  "malformed Content-Length header",
				RawData: strings.TrimRight(line, "\r\n"),
				Err:     err,
			}
		}

		contentLength = n
	}

	if contentLength < 0 {
		return nil, &errors.DecodeError{Reason: "missing Content-Length header"}
	}

	// Short reads must be completed by further reads; only genuine stream
	// exhaustion mid-body is an error, and a truncated body is fatal.
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, &errors.DecodeError{
			Reason: fmt.Sprintf("truncated body: want %d bytes", contentLength),
			Err:    err,
		}
	}

	return parseBody(body)
}

// parseBody decodes a frame body into its message variant.
func parseBody(body []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &errors.DecodeError{
			Reason:  "invalid message body",
			RawData: string(body),
			Err:     err,
		}
	}

	switch probe.Type {
	case TypeResponse:
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &errors.DecodeError{
				Reason:  "invalid response body",
				RawData: string(body),
				Err:     err,
			}
		}

		return &resp, nil

	case TypeEvent:
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, &errors.DecodeError{
				Reason:  "invalid event body",
				RawData: string(body),
				Err:     err,
			}
		}

		return &ev, nil

	case TypeRequest:
		// Requests only flow client to adapter; one arriving here means the
		// two sides have desynchronized.
		return nil, &errors.DecodeError{
			Reason:  "unexpected request from adapter",
			RawData: string(body),
		}

	default:
		return nil, &errors.DecodeError{
			Reason:  fmt.Sprintf("unknown message type %q", probe.Type),
			RawData: string(body),
		}
	}
}
