package wire

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/adapterkit/dap-client-go/internal/errors"
)

func TestEncode_Request(t *testing.T) {
	req := NewRequest(1, "initialize", map[string]any{"pathFormat": "path"})

	data, err := Encode(req)
	require.NoError(t, err)

	body := `{"seq":1,"type":"request","command":"initialize","arguments":{"pathFormat":"path"}}`
	require.Equal(t, fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body), string(data))
}

func TestEncode_NilArgumentsAreNull(t *testing.T) {
	data, err := Encode(NewRequest(3, "configurationDone", nil))
	require.NoError(t, err)

	require.Contains(t, string(data), `"arguments":null`)
}

func TestRoundTrip(t *testing.T) {
	msg := "attribute missing"

	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "response with body",
			msg: &Response{
				Seq:        2,
				Type:       TypeResponse,
				RequestSeq: 1,
				Success:    true,
				Command:    "initialize",
				Body:       map[string]any{"supportsConfigurationDoneRequest": true},
			},
		},
		{
			name: "failed response with message",
			msg: &Response{
				Seq:        5,
				Type:       TypeResponse,
				RequestSeq: 4,
				Success:    false,
				Command:    "launch",
				Message:    &msg,
			},
		},
		{
			name: "event with body",
			msg: &Event{
				Seq:   3,
				Type:  TypeEvent,
				Event: "output",
				Body:  map[string]any{"category": "stdout", "output": "hello\n"},
			},
		},
		{
			name: "event without body",
			msg: &Event{
				Seq:   7,
				Type:  TypeEvent,
				Event: "initialized",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := NewDecoder(strings.NewReader(string(data))).Decode()
			require.NoError(t, err)
			require.Equal(t, tt.msg, decoded)
		})
	}
}

func TestDecode_CompletesShortReads(t *testing.T) {
	data, err := Encode(&Event{Seq: 1, Type: TypeEvent, Event: "initialized"})
	require.NoError(t, err)

	// One byte per read; the decoder must assemble the declared body length
	// across reads instead of treating a short read as EOF.
	decoded, err := NewDecoder(iotest.OneByteReader(strings.NewReader(string(data)))).Decode()
	require.NoError(t, err)

	ev, ok := decoded.(*Event)
	require.True(t, ok)
	require.Equal(t, "initialized", ev.Event)
}

func TestDecode_IgnoresUnknownHeaders(t *testing.T) {
	body := `{"seq":1,"type":"event","event":"initialized","body":null}`
	frame := fmt.Sprintf(
		"Content-Type: application/json\r\nContent-Length: %d\r\nX-Extra: 1\r\n\r\n%s",
		len(body), body,
	)

	decoded, err := NewDecoder(strings.NewReader(frame)).Decode()
	require.NoError(t, err)
	require.Equal(t, TypeEvent, decoded.Kind())
}

func TestDecode_MultipleFramesThenEOF(t *testing.T) {
	first, err := Encode(&Event{Seq: 1, Type: TypeEvent, Event: "initialized"})
	require.NoError(t, err)

	second, err := Encode(&Response{
		Seq: 2, Type: TypeResponse, RequestSeq: 1, Success: true, Command: "initialize",
	})
	require.NoError(t, err)

	dec := NewDecoder(strings.NewReader(string(first) + string(second)))

	msg, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, TypeEvent, msg.Kind())

	msg, err = dec.Decode()
	require.NoError(t, err)
	require.Equal(t, TypeResponse, msg.Kind())

	_, err = dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecode_EmptyStreamIsEOF(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("")).Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecode_StreamEndsMidHeadersIsEOF(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("Content-Length: 10\r\n")).Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecode_MalformedContentLength(t *testing.T) {
	var decodeErr *errors.DecodeError

	_, err := NewDecoder(strings.NewReader("Content-Length: abc\r\n\r\n")).Decode()
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "malformed Content-Length")
}

func TestDecode_NegativeContentLength(t *testing.T) {
	var decodeErr *errors.DecodeError

	_, err := NewDecoder(strings.NewReader("Content-Length: -5\r\n\r\n{}")).Decode()
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecode_MissingContentLength(t *testing.T) {
	var decodeErr *errors.DecodeError

	_, err := NewDecoder(strings.NewReader("X-Header: 1\r\n\r\n{}")).Decode()
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "missing Content-Length")
}

func TestDecode_TruncatedBody(t *testing.T) {
	var decodeErr *errors.DecodeError

	_, err := NewDecoder(strings.NewReader("Content-Length: 100\r\n\r\n{\"seq\":1")).Decode()
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "truncated body")
}

func TestDecode_InvalidJSONBody(t *testing.T) {
	body := `{"seq":`
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	var decodeErr *errors.DecodeError

	_, err := NewDecoder(strings.NewReader(frame)).Decode()
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, body, decodeErr.RawData)
}

func TestDecode_RequestFromAdapterIsFatal(t *testing.T) {
	data, err := Encode(NewRequest(1, "initialize", nil))
	require.NoError(t, err)

	var decodeErr *errors.DecodeError

	_, err = NewDecoder(strings.NewReader(string(data))).Decode()
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "unexpected request")
}

func TestDecode_UnknownTypeIsFatal(t *testing.T) {
	body := `{"seq":1,"type":"telemetry"}`
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	var decodeErr *errors.DecodeError

	_, err := NewDecoder(strings.NewReader(frame)).Decode()
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, `unknown message type "telemetry"`)
}
