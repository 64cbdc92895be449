package engine

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
)

// MsgKind identifies an outbound message.
type MsgKind string

const (
	MsgSend            MsgKind = "send"
	MsgSwap            MsgKind = "swap"
	MsgDelegate        MsgKind = "delegate"
	MsgInvoke          MsgKind = "invoke"
	MsgPlaceLimitOrder MsgKind = "place_limit_order"
	MsgRetractOrder    MsgKind = "retract_order"
	MsgWithdrawOrder   MsgKind = "withdraw_order"
)

// Msg is an instruction to an external collaborator. Handlers never execute
// messages themselves; they return them as Calls for the dispatcher.
type Msg interface {
	Kind() MsgKind
	sealed()
}

// SendMsg transfers funds from the ledger account.
type SendMsg struct {
	To     string    `json:"to"`
	Amount coin.Coin `json:"amount"`
}

// SwapMsg sells Offer for TargetDenom at the venue.
type SwapMsg struct {
	Offer             coin.Coin      `json:"offer"`
	TargetDenom       string         `json:"target_denom"`
	Route             []string       `json:"route,omitempty"`
	SlippageTolerance math.LegacyDec `json:"slippage_tolerance"`
	MinimumReceive    *math.Int      `json:"minimum_receive,omitempty"`
}

// DelegateMsg stakes Amount with Validator on behalf of Delegator.
type DelegateMsg struct {
	Delegator string    `json:"delegator"`
	Validator string    `json:"validator"`
	Amount    coin.Coin `json:"amount"`
}

// InvokeMsg executes Msg on Contract, attaching Funds.
type InvokeMsg struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []coin.Coin     `json:"funds"`
}

// PlaceLimitOrderMsg offers Offer for TargetDenom at TargetPrice, quoted in
// offer units per target unit.
type PlaceLimitOrderMsg struct {
	Offer       coin.Coin      `json:"offer"`
	TargetDenom string         `json:"target_denom"`
	TargetPrice math.LegacyDec `json:"target_price"`
}

// RetractOrderMsg cancels the unfilled part of a limit order.
type RetractOrderMsg struct {
	OrderIdx string `json:"order_idx"`
}

// WithdrawOrderMsg claims the filled part of a limit order.
type WithdrawOrderMsg struct {
	OrderIdx string `json:"order_idx"`
}

func (SendMsg) Kind() MsgKind            { return MsgSend }
func (SwapMsg) Kind() MsgKind            { return MsgSwap }
func (DelegateMsg) Kind() MsgKind        { return MsgDelegate }
func (InvokeMsg) Kind() MsgKind          { return MsgInvoke }
func (PlaceLimitOrderMsg) Kind() MsgKind { return MsgPlaceLimitOrder }
func (RetractOrderMsg) Kind() MsgKind    { return MsgRetractOrder }
func (WithdrawOrderMsg) Kind() MsgKind   { return MsgWithdrawOrder }

func (SendMsg) sealed()            {}
func (SwapMsg) sealed()            {}
func (DelegateMsg) sealed()        {}
func (InvokeMsg) sealed()          {}
func (PlaceLimitOrderMsg) sealed() {}
func (RetractOrderMsg) sealed()    {}
func (WithdrawOrderMsg) sealed()   {}

// ReplyOn controls when the dispatcher resumes the engine with a call's
// result.
type ReplyOn string

const (
	ReplyNever     ReplyOn = "never"
	ReplyAlways    ReplyOn = "always"
	ReplyOnError   ReplyOn = "on_error"
	ReplyOnSuccess ReplyOn = "on_success"
)

// ReplyID names the continuation that handles a call's result.
type ReplyID string

const (
	ReplyAfterSwap                ReplyID = "after_swap"
	ReplyAfterPostExecutionAction ReplyID = "after_post_execution_action"
	ReplyAfterLimitOrderPlaced    ReplyID = "after_limit_order_placed"
	ReplyFailSilently             ReplyID = "fail_silently"
)

// Call is an outbound message together with its reply routing.
type Call struct {
	VaultID uint64
	Msg     Msg
	ReplyOn ReplyOn
	ReplyID ReplyID
}

// Wants reports whether a result with the given success should be
// delivered back to the engine.
func (c Call) Wants(ok bool) bool {
	switch c.ReplyOn {
	case ReplyAlways:
		return true
	case ReplyOnError:
		return !ok
	case ReplyOnSuccess:
		return ok
	default:
		return false
	}
}

// send builds a fire-and-forget transfer.
func send(vaultID uint64, to string, amount coin.Coin) Call {
	return Call{VaultID: vaultID, Msg: SendMsg{To: to, Amount: amount}, ReplyOn: ReplyNever}
}

type callJSON struct {
	VaultID uint64          `json:"vault_id"`
	Kind    MsgKind         `json:"kind"`
	Msg     json.RawMessage `json:"msg"`
	ReplyOn ReplyOn         `json:"reply_on"`
	ReplyID ReplyID         `json:"reply_id,omitempty"`
}

// MarshalJSON encodes the call with its message kind tag.
func (c Call) MarshalJSON() ([]byte, error) {
	msg, err := json.Marshal(c.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(callJSON{
		VaultID: c.VaultID,
		Kind:    c.Msg.Kind(),
		Msg:     msg,
		ReplyOn: c.ReplyOn,
		ReplyID: c.ReplyID,
	})
}

// UnmarshalJSON decodes a call written by MarshalJSON.
func (c *Call) UnmarshalJSON(b []byte) error {
	var raw callJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	msg, err := DecodeMsg(raw.Kind, raw.Msg)
	if err != nil {
		return err
	}
	*c = Call{VaultID: raw.VaultID, Msg: msg, ReplyOn: raw.ReplyOn, ReplyID: raw.ReplyID}
	return nil
}

// DecodeMsg decodes a message payload by kind.
func DecodeMsg(kind MsgKind, raw []byte) (Msg, error) {
	switch kind {
	case MsgSend:
		return decodeMsgAs[SendMsg](raw)
	case MsgSwap:
		return decodeMsgAs[SwapMsg](raw)
	case MsgDelegate:
		return decodeMsgAs[DelegateMsg](raw)
	case MsgInvoke:
		return decodeMsgAs[InvokeMsg](raw)
	case MsgPlaceLimitOrder:
		return decodeMsgAs[PlaceLimitOrderMsg](raw)
	case MsgRetractOrder:
		return decodeMsgAs[RetractOrderMsg](raw)
	case MsgWithdrawOrder:
		return decodeMsgAs[WithdrawOrderMsg](raw)
	default:
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
}

func decodeMsgAs[T Msg](raw []byte) (Msg, error) {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %T: %w", m, err)
	}
	return m, nil
}

// ResultKind distinguishes a call's outcomes.
type ResultKind string

const (
	ResultValue ResultKind = "value"
	ResultError ResultKind = "error"
)

// Result is what a collaborator reported for one call.
//
// Received is set for swaps and order withdrawals, OrderIdx for limit
// order placement, Error for failures.
type Result struct {
	Kind     ResultKind `json:"kind"`
	Received coin.Coin  `json:"received"`
	OrderIdx string     `json:"order_idx,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Kind == ResultValue }

// ValueResult reports a successful call.
func ValueResult(received coin.Coin, orderIdx string) Result {
	return Result{Kind: ResultValue, Received: received, OrderIdx: orderIdx}
}

// ErrorResult reports a failed call with the collaborator's error text.
func ErrorResult(msg string) Result {
	return Result{Kind: ResultError, Error: msg}
}

// Reply resumes the continuation named by ID for VaultID.
type Reply struct {
	ID      ReplyID `json:"id"`
	VaultID uint64  `json:"vault_id"`
	Result  Result  `json:"result"`
}

// Response is what a handled request or resume asks the dispatcher to do.
type Response struct {
	Calls      []Call
	Attributes map[string]string
}

func (r *Response) add(calls ...Call) {
	r.Calls = append(r.Calls, calls...)
}

func (r *Response) attr(key, value string) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]string)
	}
	r.Attributes[key] = value
}
