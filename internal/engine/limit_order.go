package engine

import (
	"cosmossdk.io/math"

	"github.com/PrismoFinance/bounties/internal/coin"
	"github.com/PrismoFinance/bounties/internal/event"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// placeLimitOrder offers the vault's next swap at the price implied by
// receiveAmount. The price trigger is saved when the venue reports the
// order index.
func placeLimitOrder(s *session, v *vault.Vault, receiveAmount math.Int, resp *Response) error {
	offer := v.NextSwapAmount()
	price := coin.Ratio(offer, receiveAmount)

	pending := trigger.Trigger{VaultID: v.ID, Config: trigger.Price{TargetPrice: price}}
	err := saveContinuation(s, &Continuation{
		VaultID:    v.ID,
		RequestID:  s.requestID,
		Trigger:    &pending,
		SwapAmount: offer,
		Price:      price,
	})
	if err != nil {
		return err
	}

	resp.add(Call{
		VaultID: v.ID,
		Msg: PlaceLimitOrderMsg{
			Offer:       coin.New(v.SourceDenom(), offer),
			TargetDenom: v.TargetDenom,
			TargetPrice: price,
		},
		ReplyOn: ReplyAlways,
		ReplyID: ReplyAfterLimitOrderPlaced,
	})
	return nil
}

// afterLimitOrderPlaced stores the price trigger for a placed order. When
// placement failed the vault falls back to a time trigger due now.
func (e *Engine) afterLimitOrderPlaced(s *session, reply Reply, resp *Response) error {
	cont, err := loadContinuation(s, reply.VaultID)
	if err != nil {
		return err
	}
	if err := s.tx.DeleteContinuation(s.ctx, reply.VaultID); err != nil {
		return err
	}
	v, err := loadVault(s, reply.VaultID)
	if err != nil {
		return err
	}

	if v.IsCancelled() {
		if reply.Result.OK() && reply.Result.OrderIdx != "" {
			resp.add(abandonOrder(v.ID, reply.Result.OrderIdx)...)
		}
		return nil
	}

	if !reply.Result.OK() {
		if err := s.emit(v.ID, event.ExecutionSkipped{Reason: event.ClassifySwapFailure(reply.Result.Error)}); err != nil {
			return err
		}
		return s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: v.ID, Config: trigger.Time{TargetTime: s.now}})
	}

	placed := trigger.Price{TargetPrice: cont.Price}
	if cont.Trigger != nil {
		if p, ok := cont.Trigger.Config.(trigger.Price); ok {
			placed = p
		}
	}
	placed.OrderIdx = reply.Result.OrderIdx
	resp.attr("order_idx", placed.OrderIdx)
	return s.tx.SaveTrigger(s.ctx, trigger.Trigger{VaultID: v.ID, Config: placed})
}

// abandonOrder retracts and withdraws a venue order without waiting on
// either result.
func abandonOrder(vaultID uint64, orderIdx string) []Call {
	return []Call{
		{VaultID: vaultID, Msg: RetractOrderMsg{OrderIdx: orderIdx}, ReplyOn: ReplyOnError, ReplyID: ReplyFailSilently},
		{VaultID: vaultID, Msg: WithdrawOrderMsg{OrderIdx: orderIdx}, ReplyOn: ReplyOnError, ReplyID: ReplyFailSilently},
	}
}
