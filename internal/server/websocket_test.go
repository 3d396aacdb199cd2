package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lox/twentyone/internal/game"
	"github.com/lox/twentyone/internal/protocol"
)

func dialFeed(t *testing.T, ts *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/games/" + gameID
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	return ws
}

func readFeedMessage(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return &msg
}

func decodeStateData(t *testing.T, msg *protocol.Message) protocol.StateData {
	t.Helper()

	if msg.Type != protocol.MessageTypeState {
		t.Fatalf("Expected state message, got %q", msg.Type)
	}
	var data protocol.StateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to decode state data: %v", err)
	}
	return data
}

func TestFeedInitialState(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)

	ws := dialFeed(t, ts, created.GameID)
	defer ws.Close()

	state := decodeStateData(t, readFeedMessage(t, ws))
	if state.GameID != created.GameID {
		t.Errorf("Expected game id %s, got %s", created.GameID, state.GameID)
	}
	if state.Snapshot.Phase != "betting" {
		t.Errorf("Expected phase betting, got %s", state.Snapshot.Phase)
	}
}

func TestFeedReceivesRESTActionEvents(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)

	ws := dialFeed(t, ts, created.GameID)
	defer ws.Close()
	_ = readFeedMessage(t, ws) // initial state

	resp := postJSON(t, ts.URL+"/api/games/"+created.GameID+"/bet", map[string]int{"amount": 10})
	resp.Body.Close()

	state := decodeStateData(t, readFeedMessage(t, ws))
	if state.Snapshot.Phase != "dealing" {
		t.Errorf("Expected phase dealing after bet, got %s", state.Snapshot.Phase)
	}
	if state.Snapshot.Bankroll != 990 {
		t.Errorf("Expected bankroll 990, got %d", state.Snapshot.Bankroll)
	}
}

func TestFeedCarriesActions(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)

	ws := dialFeed(t, ts, created.GameID)
	defer ws.Close()
	_ = readFeedMessage(t, ws) // initial state

	msg, err := protocol.NewMessage(protocol.MessageTypeAction, protocol.ActionData{Action: "bet", Amount: 25})
	if err != nil {
		t.Fatalf("Failed to build action message: %v", err)
	}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send action: %v", err)
	}

	state := decodeStateData(t, readFeedMessage(t, ws))
	if state.Snapshot.Phase != "dealing" {
		t.Errorf("Expected phase dealing after socket bet, got %s", state.Snapshot.Phase)
	}
	if state.Snapshot.Bankroll != 975 {
		t.Errorf("Expected bankroll 975, got %d", state.Snapshot.Bankroll)
	}
}

func TestFeedReportsActionErrors(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)

	ws := dialFeed(t, ts, created.GameID)
	defer ws.Close()
	_ = readFeedMessage(t, ws) // initial state

	msg, err := protocol.NewMessage(protocol.MessageTypeAction, protocol.ActionData{Action: "jump"})
	if err != nil {
		t.Fatalf("Failed to build action message: %v", err)
	}
	msg.RequestID = "req-1"
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send action: %v", err)
	}

	reply := readFeedMessage(t, ws)
	if reply.Type != protocol.MessageTypeError {
		t.Fatalf("Expected error message, got %q", reply.Type)
	}
	if reply.RequestID != "req-1" {
		t.Errorf("Expected request id echoed, got %q", reply.RequestID)
	}
	var errData protocol.ErrorData
	if err := json.Unmarshal(reply.Data, &errData); err != nil {
		t.Fatalf("Failed to decode error data: %v", err)
	}
	if errData.Code != "illegal_action" {
		t.Errorf("Expected code illegal_action, got %q", errData.Code)
	}
}

func TestFeedRejectsUnknownGame(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/games/missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake to fail for unknown game")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 handshake response, got %+v", resp)
	}
}

func TestFeedClosedOnDelete(t *testing.T) {
	ts := newTestServer(t, game.DefaultRules())
	created := createGame(t, ts)

	ws := dialFeed(t, ts, created.GameID)
	defer ws.Close()
	_ = readFeedMessage(t, ws) // initial state

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/games/"+created.GameID, nil)
	if err != nil {
		t.Fatalf("Failed to build delete request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Delete request failed: %v", err)
	}
	resp.Body.Close()

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	if err := ws.ReadJSON(&msg); err == nil {
		t.Error("expected feed to close after session delete")
	}
}
