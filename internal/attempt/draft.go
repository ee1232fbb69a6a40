package attempt

import "sync"

// DraftStore holds a student's editable answers, keyed by question ID.
// Writes are last-write-wins with no history.
type DraftStore struct {
	mu      sync.RWMutex
	answers map[uint]string
}

func NewDraftStore() *DraftStore {
	return &DraftStore{answers: map[uint]string{}}
}

func (d *DraftStore) Set(questionID uint, payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answers[questionID] = payload
}

func (d *DraftStore) Get(questionID uint) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.answers[questionID]
	return v, ok
}

// All returns a copy of the current answers.
func (d *DraftStore) All() map[uint]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uint]string, len(d.answers))
	for k, v := range d.answers {
		out[k] = v
	}
	return out
}

// Restore seeds the store from a checkpoint, overwriting existing keys.
func (d *DraftStore) Restore(answers map[uint]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range answers {
		d.answers[k] = v
	}
}
