package bot

import "fmt"

const welcomeText = "Welcome to the Advent Music Calendar 🎄🎧\n\n" +
	"You can open ONE track with a message from the person who chose it.\n\n" +
	"Press the button below or send /today to open today’s track.\n" +
	"You can also tap ❤️ under a track to vote for it. At the end of December we’ll count the top 5.\n\n" +
	"Send /subscribe to also get the scheduled daily pushes."

const emptyCatalogText = "There are no tracks in the calendar yet. " +
	"Please ask the organizer to add some to tracks.csv. 🎧"

const hintText = "Use /today or the button to open today’s track. 🎄"

const (
	voteThanksText  = "Thank you for your vote! ❤️"
	voteAlreadyText = "You already voted for this track 💿"
)

const (
	subscribedText        = "You’re in! Scheduled tracks will arrive here. 🎄"
	alreadySubscribedText = "You’re already subscribed. 🎧"
	unsubscribedText      = "Done, no more scheduled pushes."
	notSubscribedText     = "You weren’t subscribed."
)

const setAudioPromptText = "🎧 Send me the audio file now (as an Audio). " +
	"I’ll reply with its file_id for tracks.csv.\n\n" +
	"Tip: you can also send an audio with caption /setaudio."

const setAudioHintText = "If you want to save this audio’s file_id, send /setaudio first " +
	"or add caption /setaudio to the audio message."

func windowClosedText(from, to, current string) string {
	return fmt.Sprintf(
		"The Advent window is closed now. ⏰\n\n"+
			"You can open today’s track between %s and %s.\n"+
			"Current time: %s.",
		from, to, current,
	)
}

func notAllowedText(cmd string) string {
	return fmt.Sprintf("You are not allowed to use %s.", cmd)
}

func audioSavedText(fileID, uniqueID, title, performer string, duration int) string {
	return fmt.Sprintf(
		"✅ Audio saved.\n\n"+
			"file_id:\n%s\n\n"+
			"(debug) file_unique_id: %s\n"+
			"Title: %s\nPerformer: %s\nDuration: %ds\n\n"+
			"👉 Put this file_id into tracks.csv column `audio`.",
		fileID, uniqueID, title, performer, duration,
	)
}

func reloadedText(n int) string {
	return fmt.Sprintf("Catalog reloaded: %d tracks.", n)
}

func sendTopDoneText(delivered, failed, unsubscribed int) string {
	return fmt.Sprintf("Forced TOP5 broadcast done: %d delivered, %d failed, %d unsubscribed.",
		delivered, failed, unsubscribed)
}
