package call_test

import (
	"testing"
	"time"

	"github.com/attendly/callline/internal/call"
)

func TestUserWantsToEnd(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		utterance string
		want      bool
	}{
		{"plain goodbye", "okay goodbye", true},
		{"bye embedded", "alright bye now", true},
		{"have a good day", "thanks, have a good day!", true},
		{"mixed case", "GOODBYE", true},
		{"question", "when does the class start?", false},
		{"confirmation", "yes I'll be there", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := call.UserWantsToEnd(tc.utterance); got != tc.want {
				t.Errorf("UserWantsToEnd(%q) = %v, want %v", tc.utterance, got, tc.want)
			}
		})
	}
}

func TestAIWantsToEnd(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		response string
		want     bool
	}{
		{
			"farewell and completion question",
			"Is there anything else? Great, see you Monday. Goodbye!",
			true,
		},
		{
			"farewell without completion question",
			"See you in class. Goodbye!",
			false,
		},
		{
			"completion question without farewell",
			"Is there anything else I can help you with?",
			false,
		},
		{
			"farewell in the middle only",
			"I said goodbye to your instructor earlier. Is there anything else? Let me know what you need.",
			false,
		},
		{
			"completion phrase without question mark",
			"If there is anything else you need just ask. Goodbye!",
			false,
		},
		{
			"take care near end",
			"Is that all? Perfect, take care!",
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := call.AIWantsToEnd(tc.response); got != tc.want {
				t.Errorf("AIWantsToEnd(%q) = %v, want %v", tc.response, got, tc.want)
			}
		})
	}
}

func TestSpeakingDuration(t *testing.T) {
	t.Parallel()

	// 300 words at 150 wpm is two minutes.
	words := make([]byte, 0, 300*2)
	for range 300 {
		words = append(words, 'a', ' ')
	}
	if got := call.SpeakingDuration(string(words), 150, 3*time.Second); got != 2*time.Minute {
		t.Errorf("long text duration = %v, want 2m", got)
	}

	// Short farewells clamp to the floor.
	if got := call.SpeakingDuration("Goodbye!", 150, 3*time.Second); got != 3*time.Second {
		t.Errorf("short text duration = %v, want 3s floor", got)
	}

	// Non-positive rate falls back to the default rather than dividing by zero.
	if got := call.SpeakingDuration("Goodbye!", 0, time.Second); got != time.Second {
		t.Errorf("zero wpm duration = %v, want 1s floor", got)
	}
}
