package realtime

import (
	"encoding/json"

	"example.com/sketch-mvp/internal/room"
)

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server frames.
const (
	TypeSnapshot    = "snapshot"
	TypeFields      = "fields"
	TypeMessage     = "message"
	TypeRoomClosed  = "room_closed"
	TypeError       = "error"
	TypeGuessResult = "guess_result"
)

// Client frames.
const (
	TypeGuess      = "guess"
	TypeChat       = "chat"
	TypeChooseWord = "choose_word"
	TypeStroke     = "stroke"
	TypeStart      = "start"
	TypeReset      = "reset"
	TypeLeave      = "leave"
)

// входящие
type TextPayload struct {
	Text string `json:"text"`
}

type WordPayload struct {
	Word string `json:"word"`
}

// исходящие
type SnapshotPayload struct {
	You  string    `json:"you"`
	Room room.Room `json:"room"`
}

type FieldPayload struct {
	Field   string          `json:"field"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func frame(typ string, payload any) []byte {
	b, _ := json.Marshal(Envelope{Type: typ, Payload: mustJSON(payload)})
	return b
}
