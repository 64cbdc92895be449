package event

import (
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
)

// Kind discriminates event payloads.
type Kind string

const (
	KindFundsDeposited              Kind = "funds_deposited"
	KindExecutionTriggered          Kind = "execution_triggered"
	KindExecutionCompleted          Kind = "execution_completed"
	KindSimulatedExecutionCompleted Kind = "simulated_execution_completed"
	KindExecutionSkipped            Kind = "execution_skipped"
	KindSimulatedExecutionSkipped   Kind = "simulated_execution_skipped"
	KindCancelled                   Kind = "cancelled"
	KindEscrowDisbursed             Kind = "escrow_disbursed"
	KindPostExecutionActionFailed   Kind = "post_execution_action_failed"
	KindUpdated                     Kind = "updated"
)

// Event is one immutable ledger record.
type Event struct {
	ID         uint64
	ResourceID uint64
	Timestamp  time.Time
	Height     int64
	Data       Data
}

// Data is the sum of event payloads.
type Data interface {
	Kind() Kind
	sealed()
}

type FundsDeposited struct {
	Amount coin.Coin `json:"amount"`
}

type ExecutionTriggered struct {
	BaseDenom  string         `json:"base_denom"`
	QuoteDenom string         `json:"quote_denom"`
	AssetPrice math.LegacyDec `json:"asset_price"`
}

type ExecutionCompleted struct {
	Sent     coin.Coin `json:"sent"`
	Received coin.Coin `json:"received"`
	Fee      coin.Coin `json:"fee"`
}

type SimulatedExecutionCompleted struct {
	Sent     coin.Coin `json:"sent"`
	Received coin.Coin `json:"received"`
	Fee      coin.Coin `json:"fee"`
}

type ExecutionSkipped struct {
	Reason SkipReason `json:"reason"`
}

type SimulatedExecutionSkipped struct {
	Reason SkipReason `json:"reason"`
}

// Cancelled records a cancellation. Reserved is the balance kept back for
// a swap still outstanding at the venue.
type Cancelled struct {
	Reserved *coin.Coin `json:"reserved,omitempty"`
}

type EscrowDisbursed struct {
	AmountDisbursed coin.Coin `json:"amount_disbursed"`
	PerformanceFee  coin.Coin `json:"performance_fee"`
}

// PostExecutionActionFailed records a destination follow-up that failed.
// Msg is the encoded call that was attempted.
type PostExecutionActionFailed struct {
	Msg   string      `json:"msg"`
	Funds []coin.Coin `json:"funds"`
}

// FieldUpdate is one entry of an update diff.
type FieldUpdate struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

type Updated struct {
	Updates []FieldUpdate `json:"updates"`
}

func (FundsDeposited) Kind() Kind              { return KindFundsDeposited }
func (ExecutionTriggered) Kind() Kind          { return KindExecutionTriggered }
func (ExecutionCompleted) Kind() Kind          { return KindExecutionCompleted }
func (SimulatedExecutionCompleted) Kind() Kind { return KindSimulatedExecutionCompleted }
func (ExecutionSkipped) Kind() Kind            { return KindExecutionSkipped }
func (SimulatedExecutionSkipped) Kind() Kind   { return KindSimulatedExecutionSkipped }
func (Cancelled) Kind() Kind                   { return KindCancelled }
func (EscrowDisbursed) Kind() Kind             { return KindEscrowDisbursed }
func (PostExecutionActionFailed) Kind() Kind   { return KindPostExecutionActionFailed }
func (Updated) Kind() Kind                     { return KindUpdated }

func (FundsDeposited) sealed()              {}
func (ExecutionTriggered) sealed()          {}
func (ExecutionCompleted) sealed()          {}
func (SimulatedExecutionCompleted) sealed() {}
func (ExecutionSkipped) sealed()            {}
func (SimulatedExecutionSkipped) sealed()   {}
func (Cancelled) sealed()                   {}
func (EscrowDisbursed) sealed()             {}
func (PostExecutionActionFailed) sealed()   {}
func (Updated) sealed()                     {}

// EncodeData serializes a payload without its discriminator.
func EncodeData(d Data) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("event data is nil")
	}
	return json.Marshal(d)
}

// DecodeData is the inverse of EncodeData.
func DecodeData(kind Kind, raw []byte) (Data, error) {
	var (
		d   Data
		err error
	)
	switch kind {
	case KindFundsDeposited:
		d, err = decodeAs[FundsDeposited](raw)
	case KindExecutionTriggered:
		d, err = decodeAs[ExecutionTriggered](raw)
	case KindExecutionCompleted:
		d, err = decodeAs[ExecutionCompleted](raw)
	case KindSimulatedExecutionCompleted:
		d, err = decodeAs[SimulatedExecutionCompleted](raw)
	case KindExecutionSkipped:
		d, err = decodeAs[ExecutionSkipped](raw)
	case KindSimulatedExecutionSkipped:
		d, err = decodeAs[SimulatedExecutionSkipped](raw)
	case KindCancelled:
		d, err = decodeAs[Cancelled](raw)
	case KindEscrowDisbursed:
		d, err = decodeAs[EscrowDisbursed](raw)
	case KindPostExecutionActionFailed:
		d, err = decodeAs[PostExecutionActionFailed](raw)
	case KindUpdated:
		d, err = decodeAs[Updated](raw)
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return d, nil
}

func decodeAs[T Data](raw []byte) (Data, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type eventJSON struct {
	ID         uint64          `json:"id"`
	ResourceID uint64          `json:"resource_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Height     int64           `json:"height"`
	Type       Kind            `json:"type"`
	Data       json.RawMessage `json:"data"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := EncodeData(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventJSON{
		ID:         e.ID,
		ResourceID: e.ResourceID,
		Timestamp:  e.Timestamp,
		Height:     e.Height,
		Type:       e.Data.Kind(),
		Data:       data,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var in eventJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d, err := DecodeData(in.Type, in.Data)
	if err != nil {
		return err
	}
	*e = Event{ID: in.ID, ResourceID: in.ResourceID, Timestamp: in.Timestamp, Height: in.Height, Data: d}
	return nil
}
