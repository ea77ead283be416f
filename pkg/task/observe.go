package task

import (
	"sort"
	"sync"
)

// Field names an observable attribute of a task.
type Field string

const (
	FieldState    Field = "state"
	FieldActive   Field = "is_active"
	FieldProgress Field = "progress"
	FieldMessage  Field = "message"
	FieldResult   Field = "result"
	FieldError    Field = "error"
)

// Change describes one field mutation. Old and New hold the field's values:
// State for FieldState, bool for FieldActive, float64 for FieldProgress,
// string for FieldMessage, the result type for FieldResult and error for FieldError.
type Change struct {
	Field Field
	Old   any
	New   any
}

// observers is a small ordered listener registry.
type observers struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]func(Change)
}

func (o *observers) add(fn func(Change)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[uint64]func(Change))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

// list returns listeners in subscription order.
func (o *observers) list() []func(Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]uint64, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		out = append(out, o.fns[id])
	}
	return out
}
