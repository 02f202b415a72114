package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Recorder is an in-memory Publisher that keeps every envelope it receives.
type Recorder struct {
	mu        sync.Mutex
	envelopes []Envelope
	Err       error
}

func (r *Recorder) Publish(_ context.Context, _ string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	switch e := event.(type) {
	case Envelope:
		r.envelopes = append(r.envelopes, e)
	default:
		raw, err := json.Marshal(event)
		if err != nil {
			return err
		}
		r.envelopes = append(r.envelopes, Envelope{Data: raw})
	}
	return nil
}

// Envelopes returns a copy of everything published so far.
func (r *Recorder) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.envelopes))
	copy(out, r.envelopes)
	return out
}

// OfType returns the published envelopes with the given type.
func (r *Recorder) OfType(eventType string) []Envelope {
	var out []Envelope
	for _, e := range r.Envelopes() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
