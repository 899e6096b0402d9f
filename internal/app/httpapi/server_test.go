package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/solji-labs/solji-program-sub000/internal/app/events"
	"github.com/solji-labs/solji-program-sub000/internal/app/program"
	donationsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/donation"
	fortunesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/fortune"
	incensesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/incense"
	leaderboardsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/leaderboard"
	stakingsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/staking"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	userssvc "github.com/solji-labs/solji-program-sub000/internal/app/services/users"
	wishsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/wish"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/memory"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

func addr(tag string) pda.Address {
	return pda.Address(sha256.Sum256([]byte(tag)))
}

func newServer(t *testing.T) (*memory.Ledger, *events.Bus, *Server) {
	t.Helper()
	ledger := memory.New()
	params := config.Default()
	bus := events.NewBus()
	svc := program.Services{
		Temple:      templesvc.New(ledger, params, bus, nil),
		Users:       userssvc.New(ledger, params, nil),
		Incense:     incensesvc.New(ledger, params, bus, nil),
		Donation:    donationsvc.New(ledger, params, bus, nil),
		Fortune:     fortunesvc.New(ledger, params, fortunesvc.FixedSource(0.5), bus, nil),
		Wish:        wishsvc.New(ledger, params, bus, nil),
		Staking:     stakingsvc.New(ledger, params, nil),
		Leaderboard: leaderboardsvc.New(ledger, params, nil, nil),
	}
	processor := program.New(svc, nil)

	if err := svc.Temple.Init(context.Background(), addr("admin"), addr("treasury")); err != nil {
		t.Fatalf("init temple: %v", err)
	}
	return ledger, bus, New(processor, svc, bus, Options{}, nil)
}

func TestInstructionEndpoint(t *testing.T) {
	ledger, _, srv := newServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	pilgrim := addr("pilgrim")
	ledger.Fund(pilgrim, 10*config.LamportsPerSol)

	body := fmt.Sprintf(`{"owner":%q,"orders":[{"type_id":1,"quantity":2}]}`, pilgrim)
	resp, err := http.Post(ts.URL+"/v1/instructions/buyIncense", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// The committed state is visible through the query surface.
	userResp, err := http.Get(ts.URL + "/v1/users/" + pilgrim.String())
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	defer userResp.Body.Close()
	if userResp.StatusCode != http.StatusOK {
		t.Fatalf("user status = %d", userResp.StatusCode)
	}
	var payload struct {
		Incense struct {
			Balances map[string]struct {
				Having uint64 `json:"having"`
			} `json:"balances"`
		} `json:"incense"`
	}
	if err := json.NewDecoder(userResp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Incense.Balances["1"].Having != 2 {
		t.Errorf("balances = %+v", payload.Incense.Balances)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	ledger, _, srv := newServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	pilgrim := addr("pilgrim")
	ledger.Fund(pilgrim, 10*config.LamportsPerSol)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown instruction", http.MethodPost, "/v1/instructions/mintMoon", `{}`, http.StatusBadRequest},
		{"bad address", http.MethodGet, "/v1/users/zzz-not-base58", "", http.StatusBadRequest},
		{"missing user", http.MethodGet, "/v1/users/" + addr("ghost").String(), "", http.StatusNotFound},
		{"unknown period", http.MethodGet, "/v1/leaderboard/hourly", "", http.StatusBadRequest},
		{"zero donation", http.MethodPost, "/v1/instructions/donateFund",
			fmt.Sprintf(`{"owner":%q,"lamports":0}`, pilgrim), http.StatusBadRequest},
		{"underfunded buy", http.MethodPost, "/v1/instructions/buyIncense",
			fmt.Sprintf(`{"owner":%q,"orders":[{"type_id":1,"quantity":1}]}`, addr("broke")), http.StatusPaymentRequired},
		{"unauthorized withdraw", http.MethodPost, "/v1/instructions/withdraw",
			fmt.Sprintf(`{"caller":%q,"lamports":1}`, pilgrim), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp *http.Response
			var err error
			if tc.method == http.MethodPost {
				resp, err = http.Post(ts.URL+tc.path, "application/json", strings.NewReader(tc.body))
			} else {
				resp, err = http.Get(ts.URL + tc.path)
			}
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, _, srv := newServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestEventStream(t *testing.T) {
	ledger, _, srv := newServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	pilgrim := addr("pilgrim")
	ledger.Fund(pilgrim, config.LamportsPerSol)
	body := fmt.Sprintf(`{"owner":%q,"orders":[{"type_id":1,"quantity":1}]}`, pilgrim)
	resp, err := http.Post(ts.URL+"/v1/instructions/buyIncense", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Name != events.IncenseBought {
		t.Errorf("event = %q, want incenseBought", ev.Name)
	}
}
