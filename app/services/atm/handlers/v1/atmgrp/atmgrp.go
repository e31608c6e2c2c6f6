// Package atmgrp maintains the group of handlers for driving the ATM
// session.
package atmgrp

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/metacrafters/atm/business/core/session"
	"github.com/metacrafters/atm/business/sys/validate"
	"github.com/metacrafters/atm/business/web/errs"
	"github.com/metacrafters/atm/foundation/events"
	"github.com/metacrafters/atm/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of ATM endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Session *session.Session
	WS      websocket.Upgrader
	Evts    *events.Events[session.Record]
}

// View returns the current view of the session.
func (h Handlers) View(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Session.Snapshot(), http.StatusOK)
}

// Connect requests account access from the wallet and binds the contract.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Session.Connect(ctx); err != nil {
		return errs.FromSession(err)
	}

	return web.Respond(ctx, w, h.Session.Snapshot(), http.StatusOK)
}

// Balance reads the contract balance.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	balance, err := h.Session.Balance(ctx)
	if err != nil {
		return errs.FromSession(err)
	}

	resp := balanceResponse{
		Account: h.Session.Snapshot().Account,
		Balance: balance,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Deposit adds the requested amount to the contract balance.
func (h Handlers) Deposit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.transact(ctx, w, r, h.Session.Deposit)
}

// Withdraw removes the requested amount from the contract balance.
func (h Handlers) Withdraw(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.transact(ctx, w, r, h.Session.Withdraw)
}

// Transactions returns the transaction log in call order.
func (h Handlers) Transactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toRecordResponses(h.Session.Records()), http.StatusOK)
}

// Events handles a web socket to stream new transaction records to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// Subscribe before the upgrade so no record published after the
	// handshake is missed.
	ch := h.Evts.Subscribe(v.TraceID)
	defer h.Evts.Unsubscribe(v.TraceID)

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case rec, wd := <-ch:
			if !wd {
				return nil
			}

			data, err := json.Marshal(recordResponse{Record: rec, Display: rec.String()})
			if err != nil {
				return err
			}

			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// =============================================================================

func (h Handlers) transact(ctx context.Context, w http.ResponseWriter, r *http.Request, fn func(context.Context, *big.Int) (session.Record, error)) error {
	var req amountRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	if _, err := fn(ctx, big.NewInt(req.Amount)); err != nil {
		return errs.FromSession(err)
	}

	return web.Respond(ctx, w, h.Session.Snapshot(), http.StatusOK)
}
