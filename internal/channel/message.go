package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

const (
	TypeVoteCast      = "VOTE_CAST"
	TypeRevealResults = "REVEAL_RESULTS"

	// frameEvent is the broadcast event name every vote channel frame uses.
	frameEvent = "vote"
)

var (
	ErrMalformedMessage = errors.New("malformed vote channel message")
	errForeignEvent     = errors.New("frame carries another event")
)

// Message is one of VoteCast or RevealResults.
type Message interface {
	messageType() string
	sentAt() int64
}

type VoteCast struct {
	Vote   poll.Vote
	SentAt int64
}

type RevealResults struct {
	SentAt int64
}

func (VoteCast) messageType() string { return TypeVoteCast }
func (m VoteCast) sentAt() int64 { return m.SentAt }
func (RevealResults) messageType() string { return TypeRevealResults }
func (m RevealResults) sentAt() int64 { return m.SentAt }

type envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeMessage renders msg as {"type","payload","timestamp"}.
func EncodeMessage(msg Message) ([]byte, error) {
	env := envelope{Type: msg.messageType(), Payload: json.RawMessage("null"), Timestamp: msg.sentAt()}
	if vc, ok := msg.(VoteCast); ok {
		payload, err := json.Marshal(vc.Vote)
		if err != nil {
			return nil, fmt.Errorf("encode vote: %w", err)
		}
		env.Payload = payload
	}
	return json.Marshal(env)
}

// DecodeMessage parses an envelope. Anything it cannot fully read is
// ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeVoteCast:
		if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
			return nil, fmt.Errorf("%w: vote payload missing", ErrMalformedMessage)
		}
		var v poll.Vote
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if v.VoterID == "" || v.SelectedOptionID == "" {
			return nil, fmt.Errorf("%w: vote without voter or option", ErrMalformedMessage)
		}
		return VoteCast{Vote: v, SentAt: env.Timestamp}, nil
	case TypeRevealResults:
		return RevealResults{SentAt: env.Timestamp}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.Type)
	}
}

// EncodeFrame wraps the encoded message in the transport frame published on
// a poll topic.
func EncodeFrame(msg Message) ([]byte, error) {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: frameEvent, Payload: payload})
}

func DecodeFrame(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if f.Event != frameEvent {
		return nil, errForeignEvent
	}
	return DecodeMessage(f.Payload)
}
