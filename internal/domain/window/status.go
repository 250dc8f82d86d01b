// Package window defines the lifecycle status shared by everything that
// reports on windows.
package window

import (
	"encoding/json"
	"fmt"
)

type Status int

const (
	Idle Status = iota
	Starting
	Playing
	Degraded
	Failed
)

var statusNames = [...]string{"idle", "starting", "playing", "degraded", "failed"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Active reports whether a player should be on screen.
func (s Status) Active() bool { return s == Starting || s == Playing || s == Degraded }

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown window status %q", name)
}
