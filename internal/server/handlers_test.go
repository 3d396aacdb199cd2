package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	rand "math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/lox/twentyone/internal/game"
	"github.com/lox/twentyone/internal/gameid"
	"github.com/lox/twentyone/internal/protocol"
	"github.com/lox/twentyone/internal/randutil"
	"github.com/lox/twentyone/internal/session"
)

func newTestServer(t *testing.T, rules game.Rules) *httptest.Server {
	t.Helper()

	logger := log.New(io.Discard)
	manager := session.NewManager(logger, session.ManagerConfig{
		Rules:  rules,
		NewRNG: func() *rand.Rand { return randutil.New(42) },
	})
	t.Cleanup(func() { manager.Close() })

	srv := NewServer(logger, DefaultConfig(), manager)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeState(t *testing.T, resp *http.Response) protocol.StateData {
	t.Helper()
	defer resp.Body.Close()
	var data protocol.StateData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	return data
}

func decodeAPIError(t *testing.T, resp *http.Response) protocol.ErrorData {
	t.Helper()
	defer resp.Body.Close()
	var data protocol.ErrorData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	return data
}

func createGame(t *testing.T, ts *httptest.Server) protocol.StateData {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/games", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeState(t, resp)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestCreateAndGetGame(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())

	created := createGame(t, ts)
	require.NoError(t, gameid.Validate(created.GameID))
	require.Equal(t, "betting", created.Snapshot.Phase)
	require.Equal(t, 1000, created.Snapshot.Bankroll)

	resp, err := http.Get(ts.URL + "/api/games/" + created.GameID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeState(t, resp)
	require.Equal(t, created.GameID, got.GameID)
	require.Equal(t, 1000, got.Snapshot.Bankroll)
}

func TestGetUnknownGame(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())

	resp, err := http.Get(ts.URL + "/api/games/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	apiErr := decodeAPIError(t, resp)
	require.Equal(t, "not_found", apiErr.Code)
}

func TestBetAndDeal(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)
	base := ts.URL + "/api/games/" + created.GameID

	resp := postJSON(t, base+"/bet", map[string]int{"amount": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeState(t, resp)
	require.Equal(t, "dealing", state.Snapshot.Phase)
	require.Equal(t, 990, state.Snapshot.Bankroll)

	resp = postJSON(t, base+"/deal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decodeState(t, resp)
	require.Len(t, state.Snapshot.Hands, 1)
	require.Len(t, state.Snapshot.Hands[0].Cards, 2)
	require.NotEmpty(t, state.Snapshot.Dealer.Cards)
}

func TestBetValidation(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)
	base := ts.URL + "/api/games/" + created.GameID

	resp := postJSON(t, base+"/bet", map[string]int{"amount": 0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decodeAPIError(t, resp)
	require.Equal(t, "invalid_bet", apiErr.Code)

	// Deal before any bet is an illegal action
	resp = postJSON(t, base+"/deal", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr = decodeAPIError(t, resp)
	require.Equal(t, "illegal_action", apiErr.Code)
}

func TestFullRoundViaAPI(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)
	base := ts.URL + "/api/games/" + created.GameID

	resp := postJSON(t, base+"/bet", map[string]int{"amount": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = postJSON(t, base+"/deal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeState(t, resp)

	for i := 0; i < 10 && state.Snapshot.Phase != "round_over"; i++ {
		if state.Snapshot.Offer != "" {
			resp = postJSON(t, base+"/insurance", map[string]bool{"take": false})
		} else {
			resp = postJSON(t, base+"/stand", nil)
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
		state = decodeState(t, resp)
	}

	require.Equal(t, "round_over", state.Snapshot.Phase)
	require.Equal(t, 1, state.Snapshot.Round)
	require.NotEmpty(t, state.Snapshot.Result)
	require.False(t, state.Snapshot.Dealer.HoleHidden)
}

func TestAutoStartInsufficientBankroll(t *testing.T) {
	rules := game.DefaultRules()
	rules.MaxBet = 5000
	ts := newTestServer(t, rules)
	created := createGame(t, ts)

	resp := postJSON(t, ts.URL+"/api/games/"+created.GameID+"/auto/start",
		map[string]any{"bet": 2000, "hands": 5})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	apiErr := decodeAPIError(t, resp)
	require.Equal(t, "insufficient_bankroll", apiErr.Code)
}

func TestAutoRunViaAPI(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)
	base := ts.URL + "/api/games/" + created.GameID

	resp := postJSON(t, base+"/auto/start",
		map[string]any{"bet": 10, "hands": 2, "insurancePolicy": "never"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeState(t, resp)
	require.True(t, state.Snapshot.Auto.Active)
	require.Equal(t, 2, state.Snapshot.Auto.HandsRemaining)

	deadline := time.Now().Add(5 * time.Second)
	for {
		getResp, err := http.Get(base)
		require.NoError(t, err)
		state = decodeState(t, getResp)
		if !state.Snapshot.Auto.Active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto run did not finish, %d hands remaining", state.Snapshot.Auto.HandsRemaining)
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, 2, state.Snapshot.Round)
	require.Equal(t, "completed", state.Snapshot.Auto.Message)
}

func TestStopAutoViaAPI(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)
	base := ts.URL + "/api/games/" + created.GameID

	resp := postJSON(t, base+"/auto/start",
		map[string]any{"bet": 10, "hands": 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, base+"/auto/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decodeState(t, resp)
	require.False(t, state.Snapshot.Auto.Active)
}

func TestDeleteGame(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)
	url := ts.URL + "/api/games/" + created.GameID

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(url)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestBadRequestBody(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)

	resp, err := http.Post(ts.URL+"/api/games/"+created.GameID+"/bet",
		"application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decodeAPIError(t, resp)
	require.Equal(t, "invalid_request", apiErr.Code)
}

func TestActionsOnUnknownGame(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())

	for _, action := range []string{"bet", "deal", "hit", "stand", "double", "split", "surrender", "auto/stop"} {
		resp := postJSON(t, fmt.Sprintf("%s/api/games/%s/%s", ts.URL, "missing", action), nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", action, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
