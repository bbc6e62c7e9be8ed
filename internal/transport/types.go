// Package transport defines the messaging boundary between the campaign
// core and the Telegram adapter.
package transport

import (
	"context"
	"errors"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	Caption      string
	Audio        *Audio
}

// Audio describes an inbound audio attachment (admin /setaudio flow).
type Audio struct {
	FileID    string
	UniqueID  string
	Title     string
	Performer string
	Duration  int
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// ParseModeHTML is the only rich-text mode this bot uses.
const ParseModeHTML = "HTML"

// VoteCallbackPrefix prefixes the track id in vote button callback data.
const VoteCallbackPrefix = "VOTE:"

// MainKeyboardLabel is the reply-keyboard button the router also matches as
// inbound text, so the label must be identical on both sides.
const MainKeyboardLabel = "🎵 Open today’s track"

// Content is one outbound delivery. When AudioFileID is set the adapter
// sends a Telegram audio with Text as caption, otherwise a plain message.
type Content struct {
	Text           string
	ParseMode      string
	AudioFileID    string
	VoteTrackID    string // attach the like button for this track
	MainKeyboard   bool   // attach the persistent "open today's track" keyboard
	DisablePreview bool
}

// Adapter is the full messaging surface used by the bot router.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	Send(ctx context.Context, chatID int64, c Content) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Deliverer is the single-recipient delivery operation the broadcast
// scheduler depends on.
type Deliverer interface {
	Send(ctx context.Context, chatID int64, c Content) error
}

// PermanentError marks a delivery failure that can never succeed for this
// recipient (blocked, deactivated, chat gone). The broadcast scheduler
// unsubscribes such recipients; every other failure is transient.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent delivery failure: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
