package main

import (
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// testEvent is a superset of every outbound message shape, so a single
// decode works for all of them.
type testEvent struct {
	Action          string   `json:"action"`
	LobbyID         string   `json:"lobbyId"`
	PlayerID        string   `json:"playerId"`
	PlayersName     []string `json:"playersName"`
	CurrentPlayerID string   `json:"currentPlayerId"`
	AvailableWords  []string `json:"availableWords"`
	Word            string   `json:"word"`
	Words           []string `json:"words"`
	Message         string   `json:"message"`
}

func newTestServer(t *testing.T) (*httptest.Server, *Gateway) {
	t.Helper()

	cfg := &Config{}
	gw := newGateway(cfg, newLobbyRegistry())

	mux := httprouter.New()
	mux.GET("/ws", gw.serveWS())

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, gw
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) testEvent {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))

	var event testEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return event
}

func expectAction(t *testing.T, conn *websocket.Conn, action string) testEvent {
	t.Helper()

	event := readEvent(t, conn)
	if event.Action != action {
		t.Fatalf("expected %q event, got %q (%+v)", action, event.Action, event)
	}
	return event
}

func createLobbyOverWS(t *testing.T, conn *websocket.Conn, name string, words []string) (lobbyID, playerID string) {
	t.Helper()

	if err := conn.WriteJSON(ClientMessage{Action: actionCreateLobby, PlayerName: name, Words: words}); err != nil {
		t.Fatalf("failed to send createLobby: %v", err)
	}
	created := expectAction(t, conn, "lobbyCreated")
	if created.LobbyID == "" || created.PlayerID == "" {
		t.Fatalf("lobbyCreated missing ids: %+v", created)
	}
	return created.LobbyID, created.PlayerID
}

func TestCreateLobbyOverSocket(t *testing.T) {
	srv, gw := newTestServer(t)
	conn := dialWS(t, srv)

	lobbyID, playerID := createLobbyOverWS(t, conn, "alice", []string{"cat", "dog"})

	if len(lobbyID) != 8 {
		t.Errorf("expected 8-char lobby id, got %q", lobbyID)
	}

	lobby, ok := gw.registry.get(lobbyID)
	if !ok {
		t.Fatal("lobby not present in registry")
	}
	lobby.mu.Lock()
	defer lobby.mu.Unlock()
	if _, ok := lobby.players[playerID]; !ok {
		t.Error("creator missing from lobby players")
	}
}

func TestJoinUnknownLobby(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(ClientMessage{Action: actionJoinLobby, LobbyID: "missing1", PlayerName: "bob"}); err != nil {
		t.Fatalf("failed to send joinLobby: %v", err)
	}

	event := expectAction(t, conn, "error")
	if event.Message != "Lobby not found" {
		t.Errorf("unexpected error message: %q", event.Message)
	}
}

func TestFullRoundOverSocket(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	lobbyID, aliceID := createLobbyOverWS(t, alice, "alice", []string{"cat"})

	if err := bob.WriteJSON(ClientMessage{
		Action:     actionJoinLobby,
		LobbyID:    lobbyID,
		PlayerName: "bob",
		Words:      []string{"fish"},
	}); err != nil {
		t.Fatalf("failed to send joinLobby: %v", err)
	}

	for _, conn := range []*websocket.Conn{alice, bob} {
		joined := expectAction(t, conn, "playerJoined")
		if !slices.Equal(joined.PlayersName, []string{"alice", "bob"}) {
			t.Fatalf("unexpected player names: %v", joined.PlayersName)
		}
	}

	if err := alice.WriteJSON(ClientMessage{Action: actionStartGame}); err != nil {
		t.Fatalf("failed to send startGame: %v", err)
	}

	for _, conn := range []*websocket.Conn{alice, bob} {
		expectAction(t, conn, "gameStarted")
		turn := expectAction(t, conn, "turnUpdate")
		if turn.CurrentPlayerID != aliceID {
			t.Fatalf("expected alice's turn, got %q", turn.CurrentPlayerID)
		}
		if !slices.Equal(turn.AvailableWords, []string{"cat"}) {
			t.Fatalf("unexpected available words: %v", turn.AvailableWords)
		}
	}

	// Acting out of turn only reaches the offender.
	if err := bob.WriteJSON(ClientMessage{Action: actionSelectWord, Word: "fish"}); err != nil {
		t.Fatalf("failed to send selectWord: %v", err)
	}
	event := expectAction(t, bob, "error")
	if event.Message != "Not your turn" {
		t.Errorf("unexpected error message: %q", event.Message)
	}

	if err := alice.WriteJSON(ClientMessage{Action: actionSelectWord, Word: "cat"}); err != nil {
		t.Fatalf("failed to send selectWord: %v", err)
	}

	for _, conn := range []*websocket.Conn{alice, bob} {
		chosen := expectAction(t, conn, "wordChosen")
		if chosen.PlayerID != aliceID || chosen.Word != "cat" {
			t.Fatalf("unexpected wordChosen: %+v", chosen)
		}
		turn := expectAction(t, conn, "turnUpdate")
		if !slices.Equal(turn.AvailableWords, []string{"fish"}) {
			t.Fatalf("unexpected available words: %v", turn.AvailableWords)
		}
	}

	if err := bob.WriteJSON(ClientMessage{Action: actionSelectWord, Word: "fish"}); err != nil {
		t.Fatalf("failed to send selectWord: %v", err)
	}

	for _, conn := range []*websocket.Conn{alice, bob} {
		expectAction(t, conn, "wordChosen")
		over := expectAction(t, conn, "gameOver")
		if over.Message == "" {
			t.Error("gameOver missing message")
		}
	}
}

func TestSubmitWordsAfterStartOverSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	createLobbyOverWS(t, conn, "alice", []string{"cat"})

	if err := conn.WriteJSON(ClientMessage{Action: actionStartGame}); err != nil {
		t.Fatalf("failed to send startGame: %v", err)
	}
	expectAction(t, conn, "gameStarted")
	expectAction(t, conn, "turnUpdate")

	if err := conn.WriteJSON(ClientMessage{Action: actionSubmitWords, Words: []string{"late"}}); err != nil {
		t.Fatalf("failed to send submitWords: %v", err)
	}
	event := expectAction(t, conn, "error")
	if event.Message != "Cannot submit words after the game has started" {
		t.Errorf("unexpected error message: %q", event.Message)
	}
}

func TestDisconnectRunsLeave(t *testing.T) {
	srv, gw := newTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	lobbyID, _ := createLobbyOverWS(t, alice, "alice", []string{"cat"})

	if err := bob.WriteJSON(ClientMessage{Action: actionJoinLobby, LobbyID: lobbyID, PlayerName: "bob"}); err != nil {
		t.Fatalf("failed to send joinLobby: %v", err)
	}
	expectAction(t, alice, "playerJoined")
	expectAction(t, bob, "playerJoined")

	// bob drops without sending leaveLobby; alice still sees playerLeft.
	_ = bob.Close()
	expectAction(t, alice, "playerLeft")

	// Last player dropping deletes the lobby.
	_ = alice.Close()
	deadline := time.Now().Add(time.Second)
	for gw.registry.count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("lobby not deleted after last disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLeaveLobbyAction(t *testing.T) {
	srv, gw := newTestServer(t)
	conn := dialWS(t, srv)

	createLobbyOverWS(t, conn, "alice", []string{"cat"})

	if err := conn.WriteJSON(ClientMessage{Action: actionLeaveLobby}); err != nil {
		t.Fatalf("failed to send leaveLobby: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for gw.registry.count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("lobby not deleted after explicit leave")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateWhileBoundRejected(t *testing.T) {
	srv, gw := newTestServer(t)
	conn := dialWS(t, srv)

	createLobbyOverWS(t, conn, "alice", []string{"cat"})

	if err := conn.WriteJSON(ClientMessage{Action: actionCreateLobby, PlayerName: "alice"}); err != nil {
		t.Fatalf("failed to send createLobby: %v", err)
	}
	event := expectAction(t, conn, "error")
	if event.Message != "Already in a lobby" {
		t.Errorf("unexpected error message: %q", event.Message)
	}
	if gw.registry.count() != 1 {
		t.Errorf("expected 1 lobby, got %d", gw.registry.count())
	}
}

func TestUnicastAfterSlowClientDrop(t *testing.T) {
	gw := newGateway(&Config{}, newLobbyRegistry())

	slow := &Client{send: make(chan any, 1)}
	gw.bind(slow, "lobby1", "p1")

	// Fill the send buffer, then broadcast; the client cannot keep up and
	// gets dropped, closing its channel.
	slow.send <- GameStartedMessage{Action: "gameStarted"}
	gw.broadcast("lobby1", GameStartedMessage{Action: "gameStarted"})

	if !slow.dropped {
		t.Fatal("slow client not dropped by broadcast")
	}
	if _, ok := gw.conns["lobby1"][slow]; ok {
		t.Fatal("dropped client still registered for delivery")
	}

	// Error delivery to the dropped client must be a silent no-op, not a
	// send on its closed channel.
	gw.sendError(slow, errOutOfTurn)

	// Subsequent broadcasts skip it entirely.
	gw.broadcast("lobby1", GameStartedMessage{Action: "gameStarted"})

	// And it can never be re-registered for delivery.
	if gw.bind(slow, "lobby2", "p2") {
		t.Fatal("dropped client re-registered by bind")
	}
	if len(gw.conns["lobby2"]) != 0 {
		t.Fatal("dropped client present in conns after refused bind")
	}

	// A create arriving from a dropped, unbound client rolls the lobby back
	// rather than orphaning it with a player no connection can act for.
	ghost := &Client{send: make(chan any, 1), dropped: true}
	gw.createLobby(ghost, "ghost", []string{"w"})
	if gw.registry.count() != 0 {
		t.Fatalf("expected 0 lobbies after rolled-back create, got %d", gw.registry.count())
	}
}

func TestMalformedMessageDropped(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("failed to send garbage: %v", err)
	}

	// The connection survives and a valid action still works.
	createLobbyOverWS(t, conn, "alice", []string{"cat"})
}

func TestUnknownActionIgnored(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(ClientMessage{Action: "teleport"}); err != nil {
		t.Fatalf("failed to send unknown action: %v", err)
	}

	createLobbyOverWS(t, conn, "alice", []string{"cat"})
}
