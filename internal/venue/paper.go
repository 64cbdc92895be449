package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
)

// Op names a Paper operation for failure injection.
type Op string

const (
	OpQuote           Op = "quote"
	OpTWAP            Op = "twap"
	OpSwap            Op = "swap"
	OpPlaceLimitOrder Op = "place_limit_order"
	OpRetractOrder    Op = "retract_order"
	OpWithdrawOrder   Op = "withdraw_order"
	OpSend            Op = "send"
	OpDelegate        Op = "delegate"
	OpInvoke          Op = "invoke"
)

// ErrNoPrice is returned for a pair with no configured price.
var ErrNoPrice = errors.New("no price for pair")

// Transfer records a Send.
type Transfer struct {
	To     string    `json:"to"`
	Amount coin.Coin `json:"amount"`
}

// Delegation records a Delegate.
type Delegation struct {
	Delegator string    `json:"delegator"`
	Validator string    `json:"validator"`
	Amount    coin.Coin `json:"amount"`
}

// Invocation records an Invoke.
type Invocation struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []coin.Coin     `json:"funds"`
}

type pair struct {
	base, quote string
}

type order struct {
	offer       coin.Coin
	targetDenom string
	price       math.LegacyDec
	filled      bool
	closed      bool
}

// Paper is an in-memory venue. Swaps execute at the configured price less
// the spread; limit orders fill once the price reaches their target.
//
// Failures are injected per operation: FailNext fails the next call only,
// FailAlways every call until Clear.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Paper struct {
	mu          sync.Mutex
	prices      map[pair]math.LegacyDec
	spread      math.LegacyDec
	next        map[Op][]error
	always      map[Op]error
	orders      map[string]*order
	orderSeq    uint64
	transfers   []Transfer
	delegations []Delegation
	invocations []Invocation
}

// NewPaper creates a venue with no prices and no spread.
func NewPaper() *Paper {
	return &Paper{
		prices: make(map[pair]math.LegacyDec),
		spread: math.LegacyZeroDec(),
		next:   make(map[Op][]error),
		always: make(map[Op]error),
		orders: make(map[string]*order),
	}
}

// SetPrice sets the price of one quote unit in base units and fills any
// resting orders the new price crosses.
func (p *Paper) SetPrice(base, quote string, price math.LegacyDec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[pair{base, quote}] = price
	for _, o := range p.orders {
		if !o.closed && o.offer.Denom == base && o.targetDenom == quote && price.LTE(o.price) {
			o.filled = true
		}
	}
}

// SetSpread sets the fraction lost on every swap.
func (p *Paper) SetSpread(spread math.LegacyDec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spread = spread
}

// FailNext makes the next call to op fail with err. Calls queue up.
func (p *Paper) FailNext(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next[op] = append(p.next[op], err)
}

// FailAlways makes every call to op fail with err until Clear.
func (p *Paper) FailAlways(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.always[op] = err
}

// Clear removes all injected failures.
func (p *Paper) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = make(map[Op][]error)
	p.always = make(map[Op]error)
}

// Transfers returns the sends performed so far, oldest first.
func (p *Paper) Transfers() []Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transfer(nil), p.transfers...)
}

// Delegations returns the delegations performed so far, oldest first.
func (p *Paper) Delegations() []Delegation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Delegation(nil), p.delegations...)
}

// Invocations returns the contract calls performed so far, oldest first.
func (p *Paper) Invocations() []Invocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Invocation(nil), p.invocations...)
}

// failure returns the injected error for op, consuming a FailNext entry.
// Callers hold p.mu.
func (p *Paper) failure(op Op) error {
	if errs := p.next[op]; len(errs) > 0 {
		p.next[op] = errs[1:]
		return errs[0]
	}
	return p.always[op]
}

// price looks up base/quote, inverting the reverse pair when only that is
// configured. Callers hold p.mu.
func (p *Paper) price(base, quote string) (math.LegacyDec, error) {
	if price, ok := p.prices[pair{base, quote}]; ok {
		return price, nil
	}
	if price, ok := p.prices[pair{quote, base}]; ok && price.IsPositive() {
		return math.LegacyOneDec().Quo(price), nil
	}
	return math.LegacyDec{}, fmt.Errorf("%w %s/%s", ErrNoPrice, base, quote)
}

func (p *Paper) Quote(_ context.Context, base, quote string, _ []string) (math.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpQuote); err != nil {
		return math.LegacyDec{}, err
	}
	return p.price(base, quote)
}

// TWAP returns the current price; Paper keeps no history.
func (p *Paper) TWAP(_ context.Context, base, quote string, _ time.Duration, _ []string) (math.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpTWAP); err != nil {
		return math.LegacyDec{}, err
	}
	return p.price(base, quote)
}

func (p *Paper) Swap(_ context.Context, req SwapRequest) (coin.Coin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpSwap); err != nil {
		return coin.Coin{}, err
	}
	price, err := p.price(req.Offer.Denom, req.TargetDenom)
	if err != nil {
		return coin.Coin{}, err
	}
	if !req.SlippageTolerance.IsNil() && p.spread.GT(req.SlippageTolerance) {
		return coin.Coin{}, fmt.Errorf("max spread assertion: spread %s exceeds tolerance %s", p.spread, req.SlippageTolerance)
	}
	gross := coin.QuoDec(req.Offer.Amount, price)
	received := coin.SubFloor(gross, coin.MulDec(gross, p.spread))
	if req.MinimumReceive != nil && received.LT(*req.MinimumReceive) {
		return coin.Coin{}, fmt.Errorf("received %s is less than minimum receive %s", received, req.MinimumReceive)
	}
	return coin.New(req.TargetDenom, received), nil
}

func (p *Paper) PlaceLimitOrder(_ context.Context, offer coin.Coin, targetDenom string, price math.LegacyDec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpPlaceLimitOrder); err != nil {
		return "", err
	}
	if !price.IsPositive() {
		return "", fmt.Errorf("limit order price must be positive")
	}
	p.orderSeq++
	idx := strconv.FormatUint(p.orderSeq, 10)
	o := &order{offer: offer, targetDenom: targetDenom, price: price}
	if current, err := p.price(offer.Denom, targetDenom); err == nil && current.LTE(price) {
		o.filled = true
	}
	p.orders[idx] = o
	return idx, nil
}

func (p *Paper) OrderFilled(_ context.Context, orderIdx string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderIdx]
	if !ok {
		return false, fmt.Errorf("order %s not found", orderIdx)
	}
	return o.filled && !o.closed, nil
}

func (p *Paper) RetractOrder(_ context.Context, orderIdx string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpRetractOrder); err != nil {
		return err
	}
	o, ok := p.orders[orderIdx]
	if !ok || o.closed {
		return fmt.Errorf("order %s not found", orderIdx)
	}
	if o.filled {
		return fmt.Errorf("order %s is already filled", orderIdx)
	}
	o.closed = true
	return nil
}

// WithdrawOrder claims a filled order's proceeds at its limit price.
func (p *Paper) WithdrawOrder(_ context.Context, orderIdx string) (coin.Coin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpWithdrawOrder); err != nil {
		return coin.Coin{}, err
	}
	o, ok := p.orders[orderIdx]
	if !ok || o.closed {
		return coin.Coin{}, fmt.Errorf("order %s not found", orderIdx)
	}
	if !o.filled {
		return coin.Coin{}, fmt.Errorf("order %s is not filled", orderIdx)
	}
	o.closed = true
	return coin.New(o.targetDenom, coin.QuoDec(o.offer.Amount, o.price)), nil
}

func (p *Paper) Send(_ context.Context, to string, amount coin.Coin) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpSend); err != nil {
		return err
	}
	p.transfers = append(p.transfers, Transfer{To: to, Amount: amount})
	return nil
}

func (p *Paper) Delegate(_ context.Context, delegator, validator string, amount coin.Coin) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpDelegate); err != nil {
		return err
	}
	p.delegations = append(p.delegations, Delegation{Delegator: delegator, Validator: validator, Amount: amount})
	return nil
}

func (p *Paper) Invoke(_ context.Context, contract string, msg json.RawMessage, funds []coin.Coin) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpInvoke); err != nil {
		return err
	}
	p.invocations = append(p.invocations, Invocation{Contract: contract, Msg: msg, Funds: append([]coin.Coin(nil), funds...)})
	return nil
}

var (
	_ Exchange  = (*Paper)(nil)
	_ Bank      = (*Paper)(nil)
	_ Staking   = (*Paper)(nil)
	_ Contracts = (*Paper)(nil)
)
