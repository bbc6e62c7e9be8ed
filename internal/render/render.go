// Package render builds outbound message content from catalog tracks.
// Both the command router and the broadcast scheduler use it, so the two
// delivery paths show recipients the same message shape.
package render

import (
	"strings"

	"adventbot/internal/catalog"
	"adventbot/internal/transport"
	"adventbot/pkg/tgui"
)

// Track renders one track as an HTML message with the vote button attached.
// Audio tracks carry the same text as the caption of a Telegram audio.
func Track(t catalog.Track) transport.Content {
	var b strings.Builder
	b.WriteString("✨ Advent Music Calendar\n\n")

	if t.Title != "" || t.Artist != "" {
		b.WriteString("🎵 ")
		b.WriteString(tgui.B("Track of the day:").String())
		b.WriteString("\n")
		var parts []tgui.H
		if t.Title != "" {
			parts = append(parts, tgui.I(t.Title))
		}
		if t.Artist != "" {
			parts = append(parts, tgui.I(t.Artist))
		}
		b.WriteString(tgui.JoinH(" — ", parts...).String())
		b.WriteString("\n\n")
	}
	if t.From != "" {
		b.WriteString("💌 ")
		b.WriteString(tgui.B("From:").String())
		b.WriteString(" ")
		b.WriteString(tgui.Esc(t.From).String())
		b.WriteString("\n\n")
	}
	if t.Message != "" {
		b.WriteString(tgui.Esc(t.Message).String())
		b.WriteString("\n\n")
	}
	if t.Link != "" {
		b.WriteString("🔗 ")
		b.WriteString(tgui.Link("Listen here", t.Link).String())
		b.WriteString("\n\n")
	}
	b.WriteString("If you liked this track, tap ❤️ below!")

	return transport.Content{
		Text:        b.String(),
		ParseMode:   transport.ParseModeHTML,
		AudioFileID: t.AudioID,
		VoteTrackID: t.ID,
	}
}
