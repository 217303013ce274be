// Package protocol defines the JSON message contract between the similarity engine and its callers.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/simerrors"
	"github.com/formbricks/wordsim/internal/validation"
)

// MessageType discriminates protocol frames.
type MessageType string

// Caller to engine.
const (
	TypeAddWord      MessageType = "addWord"
	TypeClearHistory MessageType = "clearHistory"
)

// Engine to caller.
const (
	TypeReady   MessageType = "ready"
	TypeUpdated MessageType = "updated"
	TypeError   MessageType = "error"
)

// Inbound is a frame sent by the caller.
type Inbound struct {
	Type MessageType `json:"type" validate:"required,oneof=addWord clearHistory"`
	Word string      `json:"word,omitempty" validate:"required_if=Type addWord"`
}

// AddWord builds an addWord frame. The word is trimmed.
func AddWord(word string) Inbound {
	return Inbound{Type: TypeAddWord, Word: strings.TrimSpace(word)}
}

// ClearHistory builds a clearHistory frame.
func ClearHistory() Inbound {
	return Inbound{Type: TypeClearHistory}
}

// Validate checks the frame the way a well-behaved caller must before sending.
// A whitespace-only word counts as missing.
func (m Inbound) Validate() error {
	m.Word = strings.TrimSpace(m.Word)

	return validation.ValidateStruct(m)
}

// DecodeInbound parses and validates a caller frame. Unknown fields are ignored.
// The word of an addWord frame is trimmed.
func DecodeInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, simerrors.NewValidationError("", "malformed message: "+err.Error())
	}

	if err := msg.Validate(); err != nil {
		return Inbound{}, err
	}

	if msg.Type == TypeAddWord {
		msg.Word = strings.TrimSpace(msg.Word)
	}

	return msg, nil
}

// Outbound is a frame emitted by the engine.
type Outbound struct {
	Type  MessageType
	Words []models.EntryView // updated only
	Error string             // error only
	Word  string             // error only: the word whose submission failed, when known
}

// Ready builds the one-time ready frame.
func Ready() Outbound {
	return Outbound{Type: TypeReady}
}

// Updated builds a snapshot frame from the full history.
func Updated(entries []models.Entry) Outbound {
	return Outbound{Type: TypeUpdated, Words: models.Views(entries)}
}

// Failure builds an error frame. word may be empty for failures not tied to a submission.
func Failure(word string, err error) Outbound {
	return Outbound{Type: TypeError, Error: err.Error(), Word: word}
}

type readyFrame struct {
	Type MessageType `json:"type"`
}

type updatedFrame struct {
	Type  MessageType        `json:"type"`
	Words []models.EntryView `json:"words"`
}

type errorFrame struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
	Word  string      `json:"word,omitempty"`
}

// MarshalJSON encodes only the fields that belong to the frame's type.
func (m Outbound) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case TypeReady:
		return json.Marshal(readyFrame{Type: m.Type})
	case TypeUpdated:
		words := m.Words
		if words == nil {
			words = []models.EntryView{}
		}

		return json.Marshal(updatedFrame{Type: m.Type, Words: words})
	case TypeError:
		return json.Marshal(errorFrame{Type: m.Type, Error: m.Error, Word: m.Word})
	default:
		return nil, fmt.Errorf("unknown outbound message type %q", m.Type)
	}
}

// UnmarshalJSON decodes any engine frame.
func (m *Outbound) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  MessageType        `json:"type"`
		Words []models.EntryView `json:"words"`
		Error string             `json:"error"`
		Word  string             `json:"word"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode outbound message: %w", err)
	}

	switch raw.Type {
	case TypeReady, TypeUpdated, TypeError:
	default:
		return fmt.Errorf("unknown outbound message type %q", raw.Type)
	}

	*m = Outbound{Type: raw.Type, Words: raw.Words, Error: raw.Error, Word: raw.Word}
	if m.Type == TypeUpdated && m.Words == nil {
		m.Words = []models.EntryView{}
	}

	return nil
}
