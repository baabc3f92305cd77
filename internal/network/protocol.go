package network

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Message is the envelope of every exchange: a type used for routing and
// a payload decoded later by whoever handles that type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MaxMessageSize bounds one encoded envelope.
const MaxMessageSize = 1024 * 1024

// ErrProtocol marks input that is not a valid envelope. The connection
// that produced it is dropped.
var ErrProtocol = errors.New("protocol error")

// DecodeMessage parses one envelope.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrProtocol)
	}
	return msg, nil
}

// EncodeMessage renders one envelope without the line terminator.
func EncodeMessage(msg Message) ([]byte, error) {
	if len(msg.Payload) == 0 {
		msg.Payload = json.RawMessage("{}")
	}
	return json.Marshal(msg)
}

// WriteMessage writes msg followed by a newline.
func WriteMessage(w io.Writer, msg Message) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Reader splits a byte stream into newline-terminated envelopes.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxMessageSize)
	return &Reader{scanner: s}
}

// ReadMessage returns the next envelope, skipping blank lines. It returns
// io.EOF when the stream ends cleanly.
func (r *Reader) ReadMessage() (Message, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return DecodeMessage(line)
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Message{}, fmt.Errorf("%w: message exceeds %d bytes", ErrProtocol, MaxMessageSize)
		}
		return Message{}, err
	}
	return Message{}, io.EOF
}
