package timing

import "sync"

// OneShot is a write-once completion cell. Racing paths (a scheduled start
// vs. its cancellation, a timeout vs. a state change) each call TryComplete
// and exactly one of them wins, so a continuation can never fire twice.
type OneShot struct {
	mu   sync.Mutex
	done bool
}

// TryComplete marks the cell done. It returns true for the first caller only.
func (o *OneShot) TryComplete() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return false
	}
	o.done = true
	return true
}

// Done reports whether the cell has completed.
func (o *OneShot) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}
