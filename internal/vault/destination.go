package vault

import (
	"encoding/json"
	"fmt"
	"strings"

	"cosmossdk.io/math"
)

// ActionKind discriminates destination actions.
type ActionKind string

const (
	ActionTransfer ActionKind = "transfer"
	ActionDelegate ActionKind = "delegate"
	ActionInvoke   ActionKind = "invoke"
)

// Action says what happens to a destination's share once it is settled.
// Implemented by Transfer, Delegate and Invoke only.
type Action interface {
	Kind() ActionKind
	sealed()
}

// Transfer sends the share to the destination address.
type Transfer struct{}

// Delegate stakes the share with Validator on behalf of the destination
// address.
type Delegate struct {
	Validator string `json:"validator"`
}

// Invoke calls the contract at the destination address with Msg and the
// share attached.
type Invoke struct {
	Msg json.RawMessage `json:"msg"`
}

func (Transfer) Kind() ActionKind { return ActionTransfer }
func (Delegate) Kind() ActionKind { return ActionDelegate }
func (Invoke) Kind() ActionKind   { return ActionInvoke }
func (Transfer) sealed()          {}
func (Delegate) sealed()          {}
func (Invoke) sealed()            {}

// IsFollowUp reports whether settling to this action needs a reported
// call rather than a plain transfer.
func IsFollowUp(a Action) bool {
	switch a.(type) {
	case Delegate, Invoke:
		return true
	default:
		return false
	}
}

// Destination is one recipient of settled proceeds.
type Destination struct {
	Address    string
	Allocation math.LegacyDec
	Action     Action
}

type destinationJSON struct {
	Address    string          `json:"address"`
	Allocation math.LegacyDec  `json:"allocation"`
	Action     ActionKind      `json:"action"`
	Params     json.RawMessage `json:"params,omitempty"`
}

func (d Destination) MarshalJSON() ([]byte, error) {
	action := d.Action
	if action == nil {
		action = Transfer{}
	}
	out := destinationJSON{Address: d.Address, Allocation: d.Allocation, Action: action.Kind()}
	switch a := action.(type) {
	case Delegate:
		params, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		out.Params = params
	case Invoke:
		params, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		out.Params = params
	}
	return json.Marshal(out)
}

func (d *Destination) UnmarshalJSON(b []byte) error {
	var in destinationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d.Address = in.Address
	d.Allocation = in.Allocation
	switch in.Action {
	case "", ActionTransfer:
		d.Action = Transfer{}
	case ActionDelegate:
		var a Delegate
		if err := json.Unmarshal(in.Params, &a); err != nil {
			return fmt.Errorf("decode delegate action: %w", err)
		}
		d.Action = a
	case ActionInvoke:
		var a Invoke
		if err := json.Unmarshal(in.Params, &a); err != nil {
			return fmt.Errorf("decode invoke action: %w", err)
		}
		d.Action = a
	default:
		return fmt.Errorf("unknown destination action %q", in.Action)
	}
	return nil
}

// DefaultDestinations routes everything to owner.
func DefaultDestinations(owner string) []Destination {
	return []Destination{{Address: owner, Allocation: math.LegacyOneDec(), Action: Transfer{}}}
}

// ParseDestination parses the flag form "address:allocation", optionally
// followed by ":delegate:VALIDATOR" or ":invoke:JSON".
func ParseDestination(s string) (Destination, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 2 || parts[0] == "" {
		return Destination{}, fmt.Errorf("destination %q: want address:allocation[:delegate:VALIDATOR|:invoke:JSON]", s)
	}
	alloc, err := math.LegacyNewDecFromStr(parts[1])
	if err != nil {
		return Destination{}, fmt.Errorf("destination %q: allocation: %w", s, err)
	}

	d := Destination{Address: parts[0], Allocation: alloc, Action: Transfer{}}
	if len(parts) == 2 {
		return d, nil
	}
	if len(parts) != 4 {
		return Destination{}, fmt.Errorf("destination %q: action needs a parameter", s)
	}
	switch ActionKind(parts[2]) {
	case ActionDelegate:
		d.Action = Delegate{Validator: parts[3]}
	case ActionInvoke:
		if !json.Valid([]byte(parts[3])) {
			return Destination{}, fmt.Errorf("destination %q: invoke message is not valid JSON", s)
		}
		d.Action = Invoke{Msg: json.RawMessage(parts[3])}
	default:
		return Destination{}, fmt.Errorf("destination %q: unknown action %q", s, parts[2])
	}
	return d, nil
}

// ParseDestinations parses each value with ParseDestination.
func ParseDestinations(values []string) ([]Destination, error) {
	out := make([]Destination, 0, len(values))
	for _, s := range values {
		d, err := ParseDestination(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
