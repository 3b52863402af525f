// Slurrish Word Game
//
// Each player brings a private list of words to the table. Players take
// turns revealing one of their own unused words to the group under a strict
// rotation; the server is the single source of truth for lobby membership,
// turn order, and which words have already been spent.
//
// Features:
// - Lobbies created on demand with random 8-char ids, deleted when the last
//   player leaves
// - Strict turn rotation; acting out of turn is rejected server-side
// - Word pools are private; only the current player's remaining words are
//   ever broadcast
// - A word can be revealed at most once per player
// - Game ends when every player has exhausted their pool, returning the
//   lobby to the not-started state for another round

package main

import (
	"errors"
	"slices"
	"sync"
)

// Recoverable protocol errors, reported only to the offending client.
var (
	errLobbyNotFound      = errors.New("Lobby not found")
	errGameAlreadyStarted = errors.New("Cannot submit words after the game has started")
	errJoinAfterStart     = errors.New("Cannot join after the game has started")
	errGameNotStarted     = errors.New("The game has not started")
	errOutOfTurn          = errors.New("Not your turn")
	errInvalidWord        = errors.New("Word not available or already used")
	errPlayerNotFound     = errors.New("Player not found in the lobby")
	errAlreadyInLobby     = errors.New("Already in a lobby")
)

// dedupWords collapses duplicate entries, order preserved. A duplicate can
// only be marked used once, which would leave the pool impossible to
// exhaust and the game unable to end.
func dedupWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, word := range words {
		if !slices.Contains(out, word) {
			out = append(out, word)
		}
	}
	return out
}

// Player holds one player's server-side state within a single lobby.
type Player struct {
	ID        string
	Name      string
	Words     []string
	UsedWords []string
}

// availableWords returns the player's not-yet-used words, pool order preserved.
func (p *Player) availableWords() []string {
	available := make([]string, 0, len(p.Words)-len(p.UsedWords))
	for _, word := range p.Words {
		if !slices.Contains(p.UsedWords, word) {
			available = append(available, word)
		}
	}
	return available
}

// exhausted reports whether the player has used their entire pool.
func (p *Player) exhausted() bool {
	return len(p.UsedWords) == len(p.Words)
}

// Lobby is one game room. All operations on a lobby are serialized through
// its mutex; lobbies never share state, so distinct lobbies proceed in
// parallel.
type Lobby struct {
	mu sync.Mutex

	id               string
	players          map[string]*Player
	playerOrder      []string
	gameStarted      bool
	currentTurnIndex int
}

func newLobby(id string) *Lobby {
	return &Lobby{
		id:      id,
		players: make(map[string]*Player),
	}
}

// addPlayer creates the Player entry and appends it to the turn rotation.
// The creator path uses it too, so playerOrder always matches players.
func (l *Lobby) addPlayer(playerID, playerName string, words []string) {
	l.players[playerID] = &Player{
		ID:        playerID,
		Name:      playerName,
		Words:     dedupWords(words),
		UsedWords: []string{},
	}
	l.playerOrder = append(l.playerOrder, playerID)
}

// playerNames returns display names in turn order.
func (l *Lobby) playerNames() []string {
	names := make([]string, 0, len(l.playerOrder))
	for _, id := range l.playerOrder {
		names = append(names, l.players[id].Name)
	}
	return names
}

// join admits a new player. Joining mid-game is rejected so the rotation
// cannot grow under an active round.
func (l *Lobby) join(playerID, playerName string, words []string) ([]any, error) {
	// A lobby empties the moment its last player leaves and is then removed
	// from the registry; a caller racing that removal must not revive it.
	if len(l.players) == 0 {
		return nil, errLobbyNotFound
	}
	if l.gameStarted {
		return nil, errJoinAfterStart
	}

	l.addPlayer(playerID, playerName, words)

	return []any{PlayerJoinedMessage{
		Action:      "playerJoined",
		PlayerID:    playerID,
		PlayersName: l.playerNames(),
	}}, nil
}

// leave removes the player from the lobby and the rotation. The second
// return value reports whether the lobby is now empty and must be deleted
// by the registry. The turn index is clamped back to 0 when the removal
// leaves it past the end of the rotation.
func (l *Lobby) leave(playerID string) ([]any, bool) {
	if _, ok := l.players[playerID]; !ok {
		return nil, false
	}

	delete(l.players, playerID)
	l.playerOrder = slices.DeleteFunc(l.playerOrder, func(id string) bool {
		return id == playerID
	})

	events := []any{PlayerLeftMessage{
		Action:   "playerLeft",
		PlayerID: playerID,
	}}

	if len(l.players) == 0 {
		return events, true
	}

	if l.currentTurnIndex >= len(l.playerOrder) {
		l.currentTurnIndex = 0
	}
	if turn := l.turnUpdate(); turn != nil {
		events = append(events, *turn)
	}

	return events, false
}

// start begins a round. Starting an already-running game is a no-op rather
// than an error; nothing besides the started flag is reset, so the creator
// (index 0) goes first on the first round.
func (l *Lobby) start() []any {
	if l.gameStarted {
		return nil
	}

	l.gameStarted = true

	events := []any{GameStartedMessage{Action: "gameStarted"}}
	if turn := l.turnUpdate(); turn != nil {
		events = append(events, *turn)
	}
	return events
}

// selectWord reveals one of the acting player's unused words. On success
// the turn advances by exactly one position; when every pool is exhausted
// the round ends and the lobby returns to the not-started state.
func (l *Lobby) selectWord(playerID, word string) ([]any, error) {
	if !l.gameStarted {
		return nil, errGameNotStarted
	}

	if l.playerOrder[l.currentTurnIndex] != playerID {
		return nil, errOutOfTurn
	}

	player := l.players[playerID]
	if !slices.Contains(player.Words, word) || slices.Contains(player.UsedWords, word) {
		return nil, errInvalidWord
	}

	player.UsedWords = append(player.UsedWords, word)

	events := []any{WordChosenMessage{
		Action:   "wordChosen",
		PlayerID: playerID,
		Word:     word,
	}}

	l.currentTurnIndex = (l.currentTurnIndex + 1) % len(l.playerOrder)

	allWordsUsed := true
	for _, p := range l.players {
		if !p.exhausted() {
			allWordsUsed = false
			break
		}
	}

	if allWordsUsed {
		l.gameStarted = false
		events = append(events, GameOverMessage{
			Action:  "gameOver",
			Message: "All players have used all their words",
		})
	} else if turn := l.turnUpdate(); turn != nil {
		events = append(events, *turn)
	}

	return events, nil
}

// submitWords replaces the player's pool before a round begins, clearing
// any previously used words.
func (l *Lobby) submitWords(playerID string, words []string) ([]any, error) {
	if l.gameStarted {
		return nil, errGameAlreadyStarted
	}

	player, ok := l.players[playerID]
	if !ok {
		return nil, errPlayerNotFound
	}

	player.Words = dedupWords(words)
	player.UsedWords = []string{}

	return []any{WordsUpdatedMessage{
		Action:   "wordsUpdated",
		PlayerID: playerID,
		Words:    player.Words,
	}}, nil
}

// turnUpdate builds the whose-turn-is-it broadcast, or nil when no game is
// running. Only the current player's own remaining words are revealed.
func (l *Lobby) turnUpdate() *TurnUpdateMessage {
	if !l.gameStarted || len(l.playerOrder) == 0 {
		return nil
	}

	current := l.players[l.playerOrder[l.currentTurnIndex]]

	return &TurnUpdateMessage{
		Action:          "turnUpdate",
		CurrentPlayerID: current.ID,
		AvailableWords:  current.availableWords(),
	}
}
