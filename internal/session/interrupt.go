package session

import "strings"

// ApplyInterrupt reconciles the conversation log with a barge-in: the callee
// only heard heardPrefix of the assistant's speech before interrupting.
//
// It locates the most recent assistant turn containing heardPrefix, truncates
// that turn at the end of the prefix's first occurrence within it (the callee
// heard the earliest playback of the phrase), and removes every later
// assistant turn (speech that was queued but never played). User and
// system turns are never touched. If no assistant turn contains the prefix,
// the conversation is left unchanged.
//
// Returns true if the log was modified. Callers must hold the session via Do.
func (s *Session) ApplyInterrupt(heardPrefix string) bool {
	if heardPrefix == "" {
		return false
	}

	idx := -1
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		t := s.Conversation[i]
		if t.Role != RoleAssistant {
			continue
		}
		if strings.Contains(t.Content, heardPrefix) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	// Truncate at the end of the first occurrence of the prefix within the turn.
	pos := strings.Index(s.Conversation[idx].Content, heardPrefix)
	truncated := s.Conversation[idx].Content[:pos+len(heardPrefix)]
	changed := truncated != s.Conversation[idx].Content
	s.Conversation[idx].Content = truncated

	// Drop assistant turns after the truncated one, keeping user/system turns
	// in order.
	kept := s.Conversation[:idx+1]
	for _, t := range s.Conversation[idx+1:] {
		if t.Role == RoleAssistant {
			changed = true
			continue
		}
		kept = append(kept, t)
	}
	s.Conversation = kept
	return changed
}
