package custody

import (
	"sort"
	"time"
)

// Summary condenses a document's custody chain for display.
type Summary struct {
	DocumentID  string        `json:"document_id"`
	EntryCount  int           `json:"entry_count"`
	FirstAction string        `json:"first_action,omitempty"`
	LastAction  string        `json:"last_action,omitempty"`
	FirstAt     time.Time     `json:"first_at,omitempty"`
	LastAt      time.Time     `json:"last_at,omitempty"`
	Span        time.Duration `json:"span"`
	Custodians  []string      `json:"custodians"`
	Locations   []string      `json:"locations"`
	Actions     []string      `json:"actions"`
	CurrentHash string        `json:"current_hash,omitempty"`
}

// Summarize walks the document's chain and reports who held it, where it
// has been, what was done to it and over what time span. CurrentHash is the
// most recent recorded hash_after of the physical document.
func (r *Registry) Summarize(documentID string) (Summary, error) {
	led, err := r.lookup(documentID)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{DocumentID: documentID}
	custodians := map[string]struct{}{}
	locations := map[string]struct{}{}
	actions := map[string]struct{}{}

	for _, e := range led.Entries() {
		s.EntryCount++
		action, _ := e.Payload["action"].(string)
		if s.EntryCount == 1 {
			s.FirstAction = action
			s.FirstAt = e.Timestamp
		}
		s.LastAction = action
		s.LastAt = e.Timestamp

		if action != "" {
			actions[action] = struct{}{}
		}
		if user, ok := e.Payload["user_id"].(string); ok && user != "" {
			custodians[user] = struct{}{}
		}
		if loc, ok := e.Payload["location"].(string); ok && loc != "" {
			locations[loc] = struct{}{}
		}
		if h, ok := e.Payload["hash_after"].(string); ok && h != "" {
			s.CurrentHash = h
		}
	}

	if s.EntryCount > 0 {
		s.Span = s.LastAt.Sub(s.FirstAt)
	}
	s.Custodians = sortedKeys(custodians)
	s.Locations = sortedKeys(locations)
	s.Actions = sortedKeys(actions)
	return s, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
