package handlers_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/metacrafters/atm/app/services/atm/handlers"
	"github.com/metacrafters/atm/business/core/atm"
	"github.com/metacrafters/atm/business/core/atm/atmtest"
	"github.com/metacrafters/atm/business/core/session"
	"github.com/metacrafters/atm/business/web/errs"
	"github.com/metacrafters/atm/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type view struct {
	State   string           `json:"state"`
	Account string           `json:"account"`
	Balance *big.Int         `json:"balance"`
	Records []session.Record `json:"records"`
}

type service struct {
	node   *atmtest.Node
	sess   *session.Session
	server *httptest.Server
}

func newService(t *testing.T, detect bool) *service {
	t.Helper()

	node, err := atmtest.New(atmtest.Config{Balance: 10})
	if err != nil {
		t.Fatalf("Should be able to start a node: %s", err)
	}
	t.Cleanup(node.Close)

	log := zap.NewNop().Sugar()
	evts := events.New[session.Record]()
	t.Cleanup(evts.Shutdown)

	sess := session.New(session.Config{
		Log:             log,
		ContractAddress: common.HexToAddress(atm.DefaultAddress),
		ContractABI:     atm.AssessmentABI(),
		PollInterval:    time.Millisecond,
		EvHandler:       evts.Publish,
	})

	if detect {
		p := node.Provider()
		t.Cleanup(p.Close)

		if err := sess.Detect(context.Background(), p); err != nil {
			t.Fatalf("Should be able to detect the provider: %s", err)
		}
	}

	server := httptest.NewServer(handlers.APIMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Session:  sess,
		Evts:     evts,
	}))
	t.Cleanup(server.Close)

	return &service{
		node:   node,
		sess:   sess,
		server: server,
	}
}

func (s *service) do(t *testing.T, method string, path string, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Should be able to build the request: %s", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Should be able to send the request: %s", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Should be able to decode the response: %s", err)
		}
	}

	return resp.StatusCode
}

// =============================================================================

func TestDepositWithdraw(t *testing.T) {
	t.Log("Given the need to drive the ATM over the API.")
	{
		svc := newService(t, true)

		t.Logf("\tTest 0:\tWhen reading the session.")
		{
			var v view
			if status := svc.do(t, http.MethodGet, "/v1/session", "", &v); status != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 200 for the response : %v", failed, status)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a status code of 200 for the response.", success)

			if v.State != session.Ready.String() || v.Balance.Cmp(big.NewInt(10)) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould be ready with a balance of 10, got %s %v.", failed, v.State, v.Balance)
			}
			t.Logf("\t%s\tTest 0:\tShould be ready with a balance of 10.", success)
		}

		wsURL := "ws" + strings.TrimPrefix(svc.server.URL, "http") + "/v1/events"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Should be able to open the events socket: %s", err)
		}
		defer conn.Close()

		t.Logf("\tTest 1:\tWhen depositing 5.")
		{
			var v view
			if status := svc.do(t, http.MethodPost, "/v1/deposit", `{"amount":5}`, &v); status != http.StatusOK {
				t.Fatalf("\t%s\tTest 1:\tShould receive a status code of 200 for the response : %v", failed, status)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a status code of 200 for the response.", success)

			if v.Balance.Cmp(big.NewInt(15)) != 0 || len(v.Records) != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould have a balance of 15 and one record, got %v %d.", failed, v.Balance, len(v.Records))
			}
			t.Logf("\t%s\tTest 1:\tShould have a balance of 15 and one record.", success)

			conn.SetReadDeadline(time.Now().Add(5 * time.Second))

			var msg struct {
				Record  session.Record `json:"record"`
				Display string         `json:"display"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould receive the record on the socket: %s", failed, err)
			}

			if msg.Record.Kind != session.KindDeposit || msg.Record.Amount.Cmp(big.NewInt(5)) != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould receive the deposit record, got %+v.", failed, msg)
			}
			t.Logf("\t%s\tTest 1:\tShould receive the deposit record.", success)
		}

		t.Logf("\tTest 2:\tWhen withdrawing more than the balance.")
		{
			var resp errs.Response
			if status := svc.do(t, http.MethodPost, "/v1/withdraw", `{"amount":100}`, &resp); status != http.StatusBadGateway {
				t.Fatalf("\t%s\tTest 2:\tShould receive a status code of 502 for the response : %v", failed, status)
			}
			t.Logf("\t%s\tTest 2:\tShould receive a status code of 502 for the response.", success)

			if svc.node.Balance().Cmp(big.NewInt(15)) != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould keep the balance of 15, got %v.", failed, svc.node.Balance())
			}
			t.Logf("\t%s\tTest 2:\tShould keep the balance of 15.", success)
		}

		t.Logf("\tTest 3:\tWhen reading the transactions.")
		{
			var recs []struct {
				Record  session.Record `json:"record"`
				Display string         `json:"display"`
			}
			if status := svc.do(t, http.MethodGet, "/v1/transactions", "", &recs); status != http.StatusOK {
				t.Fatalf("\t%s\tTest 3:\tShould receive a status code of 200 for the response : %v", failed, status)
			}

			if len(recs) != 1 || !strings.HasPrefix(recs[0].Display, "Deposit - 5 ETH - ") {
				t.Fatalf("\t%s\tTest 3:\tShould get back the one deposit, got %+v.", failed, recs)
			}
			t.Logf("\t%s\tTest 3:\tShould get back the one deposit.", success)
		}
	}
}

func TestBadRequests(t *testing.T) {
	svc := newService(t, true)

	tt := []struct {
		name   string
		body   string
		fields bool
	}{
		{"zero", `{"amount":0}`, true},
		{"negative", `{"amount":-3}`, true},
		{"unknown", `{"amt":1}`, false},
		{"malformed", `{"amount":`, false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			var resp errs.Response
			if status := svc.do(t, http.MethodPost, "/v1/deposit", tst.body, &resp); status != http.StatusBadRequest {
				t.Fatalf("Should receive a status code of 400, got %d", status)
			}

			if tst.fields != (len(resp.Fields) > 0) {
				t.Fatalf("Should get back field errors %v, got %+v", tst.fields, resp)
			}
		}

		t.Run(tst.name, f)
	}

	if n := svc.node.Count(atm.MethodDeposit); n != 0 {
		t.Fatalf("Should not reach the contract, got %d deposits", n)
	}
}

func TestNoWallet(t *testing.T) {
	svc := newService(t, false)

	var resp errs.Response
	if status := svc.do(t, http.MethodPost, "/v1/connect", "", &resp); status != http.StatusServiceUnavailable {
		t.Fatalf("Should receive a status code of 503, got %d", status)
	}

	if status := svc.do(t, http.MethodPost, "/v1/deposit", `{"amount":1}`, &resp); status != http.StatusConflict {
		t.Fatalf("Should receive a status code of 409, got %d", status)
	}

	w := httptest.NewRecorder()
	handlers.DebugMux("test", zap.NewNop().Sugar(), svc.sess).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/readiness", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Should not be ready without a wallet, got %d", w.Code)
	}
}
