package message

import (
	"encoding/json"

	"gomoku/internal/network"
)

// New wraps payload in an envelope of the given type.
func New(typ string, payload any) network.Message {
	if payload == nil {
		return network.Message{Type: typ}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain structs; this only fires on a programming error.
		panic("message: cannot encode " + typ + ": " + err.Error())
	}
	return network.Message{Type: typ, Payload: data}
}

// NewError builds an error envelope.
func NewError(code, text string) network.Message {
	return New(Error, ErrorPayload{Message: text, Code: code})
}

// Decode unmarshals an inbound payload. An empty payload leaves v as is.
func Decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}
