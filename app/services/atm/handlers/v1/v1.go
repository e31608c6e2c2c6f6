// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/metacrafters/atm/app/services/atm/handlers/v1/atmgrp"
	"github.com/metacrafters/atm/business/core/session"
	"github.com/metacrafters/atm/foundation/events"
	"github.com/metacrafters/atm/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Session *session.Session
	Evts    *events.Events[session.Record]
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	agh := atmgrp.Handlers{
		Log:     cfg.Log,
		Session: cfg.Session,
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/session", agh.View)
	app.Handle(http.MethodPost, version, "/connect", agh.Connect)
	app.Handle(http.MethodGet, version, "/balance", agh.Balance)
	app.Handle(http.MethodPost, version, "/deposit", agh.Deposit)
	app.Handle(http.MethodPost, version, "/withdraw", agh.Withdraw)
	app.Handle(http.MethodGet, version, "/transactions", agh.Transactions)
	app.Handle(http.MethodGet, version, "/events", agh.Events)
}
