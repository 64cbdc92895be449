package trigger

import (
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
)

// Kind discriminates trigger configurations.
type Kind string

const (
	KindTime  Kind = "time"
	KindPrice Kind = "price"
)

// Config is the sum of trigger configurations. Implemented by Time and
// Price only.
type Config interface {
	Kind() Kind
	sealed()
}

// Time fires when now >= TargetTime.
type Time struct {
	TargetTime time.Time `json:"target_time"`
}

// Price tracks a resting limit order at the venue.
type Price struct {
	TargetPrice math.LegacyDec `json:"target_price"`
	OrderIdx    string         `json:"order_idx"`
}

func (Time) Kind() Kind  { return KindTime }
func (Price) Kind() Kind { return KindPrice }
func (Time) sealed()     {}
func (Price) sealed()    {}

// Trigger binds a configuration to its vault.
type Trigger struct {
	VaultID uint64
	Config  Config
}

// IsDue reports whether the trigger may fire at now. Price triggers are
// never due by time alone; the venue decides.
func (t Trigger) IsDue(now time.Time) bool {
	tt, ok := t.Config.(Time)
	return ok && !now.Before(tt.TargetTime)
}

type envelope struct {
	VaultID uint64          `json:"vault_id,omitempty"`
	Kind    Kind            `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// MarshalJSON encodes the trigger with a kind discriminator.
func (t Trigger) MarshalJSON() ([]byte, error) {
	data, err := EncodeConfig(t.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{VaultID: t.VaultID, Kind: t.Config.Kind(), Data: data})
}

// UnmarshalJSON decodes the discriminated form written by MarshalJSON.
func (t *Trigger) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	cfg, err := DecodeConfig(env.Kind, env.Data)
	if err != nil {
		return err
	}
	t.VaultID = env.VaultID
	t.Config = cfg
	return nil
}

// EncodeConfig serializes a configuration without its discriminator.
func EncodeConfig(c Config) ([]byte, error) {
	switch v := c.(type) {
	case Time:
		return json.Marshal(v)
	case Price:
		return json.Marshal(v)
	case nil:
		return nil, fmt.Errorf("trigger config is nil")
	default:
		return nil, fmt.Errorf("unknown trigger config %T", c)
	}
}

// DecodeConfig is the inverse of EncodeConfig.
func DecodeConfig(kind Kind, data []byte) (Config, error) {
	switch kind {
	case KindTime:
		var v Time
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode time trigger: %w", err)
		}
		v.TargetTime = v.TargetTime.UTC()
		return v, nil
	case KindPrice:
		var v Price
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode price trigger: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", kind)
	}
}
