package main

import (
	_ "embed"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live WebSocket connection. lobbyID/playerID form the session
// binding and are only touched under the gateway mutex; a client with an
// empty binding has taken no lobby action yet.
type Client struct {
	conn *websocket.Conn
	send chan any

	lobbyID  string
	playerID string
	dropped  bool
}

// Gateway decodes inbound actions, routes them to the right lobby, and
// fans resulting events back out to every connection bound to that lobby.
type Gateway struct {
	cfg      *Config
	registry *LobbyRegistry

	mu    sync.Mutex
	conns map[string]map[*Client]bool // lobbyID -> bound clients
}

func newGateway(cfg *Config, registry *LobbyRegistry) *Gateway {
	return &Gateway{
		cfg:      cfg,
		registry: registry,
		conns:    make(map[string]map[*Client]bool),
	}
}

// bind associates the connection with a (lobby, player) pair and registers
// it with the dispatcher. It reports false for a dropped client, whose send
// channel is already closed and must never be re-registered.
func (gw *Gateway) bind(c *Client, lobbyID, playerID string) bool {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if c.dropped {
		return false
	}

	c.lobbyID = lobbyID
	c.playerID = playerID

	if gw.conns[lobbyID] == nil {
		gw.conns[lobbyID] = make(map[*Client]bool)
	}
	gw.conns[lobbyID][c] = true

	return true
}

// unbind clears the connection's binding, returning the pair it held.
func (gw *Gateway) unbind(c *Client) (lobbyID, playerID string, ok bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if c.lobbyID == "" {
		return "", "", false
	}

	lobbyID, playerID = c.lobbyID, c.playerID
	c.lobbyID, c.playerID = "", ""

	if clients, exists := gw.conns[lobbyID]; exists {
		delete(clients, c)
		if len(clients) == 0 {
			delete(gw.conns, lobbyID)
		}
	}

	return lobbyID, playerID, true
}

func (gw *Gateway) binding(c *Client) (lobbyID, playerID string, ok bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if c.lobbyID == "" {
		return "", "", false
	}
	return c.lobbyID, c.playerID, true
}

// broadcast delivers events to every connection bound to the lobby.
// Delivery is fire-and-forget: a client that cannot keep up is dropped
// rather than blocking the rest of the lobby.
func (gw *Gateway) broadcast(lobbyID string, events ...any) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	for _, event := range events {
		for client := range gw.conns[lobbyID] {
			select {
			case client.send <- event:
			default:
				gw.dropLocked(lobbyID, client)
			}
		}
	}
}

// dropLocked disconnects a client that cannot keep up. Assumes gw.mu is held.
func (gw *Gateway) dropLocked(lobbyID string, c *Client) {
	if c.dropped {
		return
	}
	c.dropped = true
	delete(gw.conns[lobbyID], c)
	close(c.send)
}

// unicast delivers a single event to one connection, used for error and
// lobbyCreated responses. Sends are serialized under the gateway mutex so
// a client dropped by a concurrent broadcast is skipped, never sent to.
func (gw *Gateway) unicast(c *Client, event any) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if c.dropped {
		return
	}

	select {
	case c.send <- event:
	default:
	}
}

func (gw *Gateway) sendError(c *Client, err error) {
	gw.unicast(c, ErrorMessage{
		Action:  "error",
		Message: err.Error(),
	})
}

// dispatch routes one decoded client message to the matching lobby
// operation. The switch is exhaustive over the inbound action set.
func (gw *Gateway) dispatch(c *Client, msg ClientMessage) {
	switch msg.Action {
	case actionCreateLobby:
		gw.createLobby(c, msg.PlayerName, msg.Words)
	case actionJoinLobby:
		gw.joinLobby(c, msg.LobbyID, msg.PlayerName, msg.Words)
	case actionLeaveLobby:
		gw.leaveLobby(c)
	case actionStartGame:
		gw.startGame(c)
	case actionSelectWord:
		gw.selectWord(c, msg.Word)
	case actionSubmitWords:
		gw.submitWords(c, msg.Words)
	default:
		logf(gw.cfg, "GAMES: Unknown action %q", msg.Action)
	}
}

func (gw *Gateway) createLobby(c *Client, playerName string, words []string) {
	if _, _, bound := gw.binding(c); bound {
		gw.sendError(c, errAlreadyInLobby)
		return
	}

	lobby, playerID := gw.registry.create(playerName, words)
	if !gw.bind(c, lobby.id, playerID) {
		// Connection died between decode and bind; undo the create.
		gw.registry.remove(lobby.id)
		return
	}

	gw.unicast(c, LobbyCreatedMessage{
		Action:   "lobbyCreated",
		LobbyID:  lobby.id,
		PlayerID: playerID,
	})

	logf(gw.cfg, "GAMES: Lobby %s created by player %q", lobby.id, playerName)
}

func (gw *Gateway) joinLobby(c *Client, lobbyID, playerName string, words []string) {
	if _, _, bound := gw.binding(c); bound {
		gw.sendError(c, errAlreadyInLobby)
		return
	}

	lobby, ok := gw.registry.get(lobbyID)
	if !ok {
		gw.sendError(c, errLobbyNotFound)
		return
	}

	playerID := uuid.NewString()

	lobby.mu.Lock()
	events, err := lobby.join(playerID, playerName, words)
	lobby.mu.Unlock()

	if err != nil {
		gw.sendError(c, err)
		return
	}

	if !gw.bind(c, lobbyID, playerID) {
		// Connection died between decode and bind; undo the join. The
		// joiner was never announced, so the leave events are discarded.
		lobby.mu.Lock()
		_, empty := lobby.leave(playerID)
		lobby.mu.Unlock()
		if empty {
			gw.registry.remove(lobbyID)
		}
		return
	}
	gw.broadcast(lobbyID, events...)

	logf(gw.cfg, "GAMES: Player %q joined lobby %s", playerName, lobbyID)
}

// leaveLobby handles an explicit leave action and transport disconnects;
// both are the same transition. A connection with no binding is a no-op.
func (gw *Gateway) leaveLobby(c *Client) {
	lobbyID, playerID, ok := gw.unbind(c)
	if !ok {
		return
	}

	lobby, exists := gw.registry.get(lobbyID)
	if !exists {
		return
	}

	lobby.mu.Lock()
	events, empty := lobby.leave(playerID)
	lobby.mu.Unlock()

	if empty {
		gw.registry.remove(lobbyID)
		logf(gw.cfg, "GAMES: Lobby %s deleted", lobbyID)
	}

	gw.broadcast(lobbyID, events...)
}

func (gw *Gateway) startGame(c *Client) {
	lobbyID, _, ok := gw.binding(c)
	if !ok {
		gw.sendError(c, errPlayerNotFound)
		return
	}

	lobby, exists := gw.registry.get(lobbyID)
	if !exists {
		return
	}

	lobby.mu.Lock()
	events := lobby.start()
	lobby.mu.Unlock()

	if len(events) > 0 {
		gw.broadcast(lobbyID, events...)
		logf(gw.cfg, "GAMES: Game started in lobby %s", lobbyID)
	}
}

func (gw *Gateway) selectWord(c *Client, word string) {
	lobbyID, playerID, ok := gw.binding(c)
	if !ok {
		gw.sendError(c, errPlayerNotFound)
		return
	}

	lobby, exists := gw.registry.get(lobbyID)
	if !exists {
		return
	}

	lobby.mu.Lock()
	events, err := lobby.selectWord(playerID, word)
	lobby.mu.Unlock()

	if err != nil {
		gw.sendError(c, err)
		return
	}

	gw.broadcast(lobbyID, events...)
}

func (gw *Gateway) submitWords(c *Client, words []string) {
	lobbyID, playerID, ok := gw.binding(c)
	if !ok {
		gw.sendError(c, errPlayerNotFound)
		return
	}

	lobby, exists := gw.registry.get(lobbyID)
	if !exists {
		return
	}

	lobby.mu.Lock()
	events, err := lobby.submitWords(playerID, words)
	lobby.mu.Unlock()

	if err != nil {
		gw.sendError(c, err)
		return
	}

	gw.broadcast(lobbyID, events...)
}

// serveWS upgrades the connection and runs its pumps.
func (gw *Gateway) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		logf(gw.cfg, "GAMES: Player connected from %s", realIP(r))

		go client.writePump()
		client.readPump(gw)
	}
}

// readPump decodes inbound messages until the connection drops, at which
// point the binding's leave transition runs exactly as for an explicit
// leave. Undecodable payloads are logged and dropped, never fatal.
func (c *Client) readPump(gw *Gateway) {
	defer func() {
		gw.leaveLobby(c)
		_ = c.conn.Close()
		logf(gw.cfg, "GAMES: Player disconnected")
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logf(gw.cfg, "GAMES: Dropping malformed message: %v", err)
			continue
		}

		gw.dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for a lobby join URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lobbyID := ps.ByName("lobbyid")
	if lobbyID == "" {
		http.Error(w, "missing lobby id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:lobbyid/qr; strip trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed wordgame/index.html
var indexHTML []byte

//go:embed wordgame/app.css
var wordgameCSS []byte

//go:embed wordgame/app.js
var wordgameJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(wordgameCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(wordgameJS)
	}
}

// registerWordGame sets up routes so that:
//   - $path                  → HTML client (create a lobby)
//   - $path/:lobbyid         → HTML client prefilled with the lobby id
//   - $path/:lobbyid/qr      → PNG QR code for that lobby's join URL
//   - /ws                    → WebSocket carrying all game actions
func registerWordGame(cfg *Config, path string, mux *httprouter.Router) {
	registry := newLobbyRegistry()
	gw := newGateway(cfg, registry)

	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:lobbyid", getIndexHandler(cfg))

	// Shared assets (no lobbyid in route)
	mux.GET(cfg.prefix+"/assets/wordgame/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/wordgame/app.js", getJsHandler(cfg))

	// Per-lobby QR code
	mux.GET(cfg.prefix+path+"/:lobbyid/qr", qrHandler)

	// All game traffic flows over a single socket endpoint; lobby routing
	// happens via the session binding, not the URL.
	mux.GET(cfg.prefix+"/ws", gw.serveWS())
}
