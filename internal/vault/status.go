package vault

import (
	"encoding/json"
	"fmt"
)

// Status is a vault's position in its lifecycle.
type Status int

const (
	StatusScheduled Status = iota + 1
	StatusActive
	StatusInactive
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusScheduled: "scheduled",
	StatusActive:    "active",
	StatusInactive:  "inactive",
	StatusCancelled: "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus is the inverse of String.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown vault status %q", name)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
