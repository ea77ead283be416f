package task

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle position of one task run.
type State int

const (
	NotCalled State = iota
	Starting
	Waiting
	Running
	Finished
	Errored
	Cancelled
)

var stateNames = map[State]string{
	NotCalled: "not_called",
	Starting:  "starting",
	Waiting:   "waiting",
	Running:   "running",
	Finished:  "finished",
	Errored:   "error",
	Cancelled: "cancelled",
}

var stateFromName = map[string]State{
	"not_called": NotCalled,
	"starting":   Starting,
	"waiting":    Waiting,
	"running":    Running,
	"finished":   Finished,
	"error":      Errored,
	"cancelled":  Cancelled,
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsActive reports whether a run is in flight.
func (s State) IsActive() bool {
	return s == Starting || s == Waiting || s == Running
}

// IsTerminal reports whether a run has ended.
func (s State) IsTerminal() bool {
	return s == Finished || s == Errored || s == Cancelled
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := stateFromName[name]
	if !ok {
		return fmt.Errorf("unknown task state %q", name)
	}
	*s = v
	return nil
}
