package main

import (
	"crypto/rand"
	"sync"

	"github.com/google/uuid"
)

// LobbyRegistry holds every live lobby, keyed by lobby id. It owns the
// create/destroy lifecycle; a lobby whose last player leaves is removed
// immediately rather than lingering empty.
type LobbyRegistry struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
}

func newLobbyRegistry() *LobbyRegistry {
	return &LobbyRegistry{
		lobbies: make(map[string]*Lobby),
	}
}

// create allocates a fresh lobby containing a single player and returns the
// lobby along with the new player's id.
func (reg *LobbyRegistry) create(playerName string, words []string) (*Lobby, string) {
	playerID := uuid.NewString()

	reg.mu.Lock()
	defer reg.mu.Unlock()

	lobby := newLobby(reg.newLobbyIDLocked())
	lobby.addPlayer(playerID, playerName, words)
	reg.lobbies[lobby.id] = lobby

	return lobby, playerID
}

func (reg *LobbyRegistry) get(lobbyID string) (*Lobby, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	lobby, ok := reg.lobbies[lobbyID]
	return lobby, ok
}

func (reg *LobbyRegistry) remove(lobbyID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.lobbies, lobbyID)
}

func (reg *LobbyRegistry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.lobbies)
}

// newLobbyIDLocked generates a crypto-random lobby id and ensures it doesn't
// collide with an id currently live in the registry. Assumes reg.mu is held.
func (reg *LobbyRegistry) newLobbyIDLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := reg.lobbies[id]; !exists {
			return id
		}
	}
}
