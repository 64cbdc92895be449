package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/PrismoFinance/bounties/internal/event"
)

// afterPostExecutionAction handles the result of a destination follow-up
// call. Results arrive in the order the calls were issued, so the front
// pending action is the one that completed.
//
// A failed follow-up is recorded and its funds are returned to the vault
// owner.
func (e *Engine) afterPostExecutionAction(s *session, reply Reply, resp *Response) error {
	cont, err := loadContinuation(s, reply.VaultID)
	if err != nil {
		return err
	}
	if len(cont.Pending) == 0 {
		return NewFatalError(reply.VaultID, fmt.Errorf("no pending destination action for vault %d", reply.VaultID))
	}
	done := cont.Pending[0]
	cont.Pending = cont.Pending[1:]
	if err := settle(s, cont); err != nil {
		return err
	}

	key := "destination_msg_" + strconv.Itoa(done.DestinationIndex)
	if reply.Result.OK() {
		resp.attr(key, "succeeded")
		return nil
	}

	v, err := loadVault(s, reply.VaultID)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(done.Call)
	if err != nil {
		return fmt.Errorf("encode failed call: %w", err)
	}
	err = s.emit(v.ID, event.PostExecutionActionFailed{Msg: string(msg), Funds: done.Funds})
	if err != nil {
		return err
	}
	s.logger.Warn("destination action failed",
		"vault_id", v.ID,
		"destination", done.DestinationIndex,
		"error", reply.Result.Error,
	)

	resp.attr(key, "failed")
	for _, f := range done.Funds {
		if f.IsPositive() {
			resp.add(send(v.ID, v.Owner, f))
		}
	}
	return nil
}
