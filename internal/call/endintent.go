package call

import (
	"strings"
	"time"
)

// userEndPhrases end the call when they appear anywhere in a callee
// utterance.
var userEndPhrases = []string{
	"goodbye", "bye", "have a good day",
}

// aiEndPhrases signal that the assistant is wrapping up, but only when they
// appear near the end of the response.
var aiEndPhrases = []string{
	"goodbye", "good bye", "have a great day", "take care",
}

// completionPhrases are the questions the assistant asks when it believes the
// conversation is complete. The trailing question mark is required so that a
// statement like "let me know if there is anything else" does not count.
var completionPhrases = []string{
	"anything else", "is that all", "does that help",
}

// endPhraseSlack is how far from the end of the response an end phrase may
// start and still count, allowing for trailing punctuation or a short
// sign-off.
const endPhraseSlack = 10

// UserWantsToEnd reports whether a callee utterance asks to finish the call.
func UserWantsToEnd(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, phrase := range userEndPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// AIWantsToEnd reports whether an assistant response signals readiness to end
// the call. Two independent signals are required: a farewell phrase near the
// end of the response, and a completion question somewhere in it. Requiring
// both keeps a mid-conversation "take care of that for you" from hanging up
// on the callee.
func AIWantsToEnd(response string) bool {
	lower := strings.ToLower(response)

	hasEndPhrase := false
	for _, phrase := range aiEndPhrases {
		idx := strings.Index(lower, phrase)
		if idx != -1 && idx >= len(lower)-len(phrase)-endPhraseSlack {
			hasEndPhrase = true
			break
		}
	}
	if !hasEndPhrase {
		return false
	}

	for _, phrase := range completionPhrases {
		if strings.Contains(lower, phrase+"?") {
			return true
		}
	}
	return false
}

// SpeakingDuration estimates how long the media client needs to play text at
// the given words-per-minute rate, clamped to floor so short farewells are
// not cut off mid-word.
func SpeakingDuration(text string, wpm int, floor time.Duration) time.Duration {
	if wpm <= 0 {
		wpm = 150
	}
	words := len(strings.Fields(text))
	d := time.Duration(float64(words) / float64(wpm) * float64(time.Minute))
	if d < floor {
		return floor
	}
	return d
}
