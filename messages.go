package main

// Inbound action names. The decoder switches exhaustively over this set;
// anything else is logged and dropped.
const (
	actionCreateLobby = "createLobby"
	actionJoinLobby   = "joinLobby"
	actionLeaveLobby  = "leaveLobby"
	actionStartGame   = "startGame"
	actionSelectWord  = "selectWord"
	actionSubmitWords = "submitWords"
)

// Messages coming from clients
type ClientMessage struct {
	Action     string   `json:"action"`               // one of the action* constants
	LobbyID    string   `json:"lobbyId,omitempty"`    // joinLobby
	PlayerName string   `json:"playerName,omitempty"` // createLobby / joinLobby
	Word       string   `json:"word,omitempty"`       // selectWord
	Words      []string `json:"words,omitempty"`      // createLobby / joinLobby / submitWords
}

// Sent to the creating client only, with its freshly allocated ids.
type LobbyCreatedMessage struct {
	Action   string `json:"action"` // "lobbyCreated"
	LobbyID  string `json:"lobbyId"`
	PlayerID string `json:"playerId"`
}

// PlayerJoinedMessage lists the display names of everyone currently in
// the lobby, newest joiner last.
type PlayerJoinedMessage struct {
	Action      string   `json:"action"` // "playerJoined"
	PlayerID    string   `json:"playerId"`
	PlayersName []string `json:"playersName"`
}

type PlayerLeftMessage struct {
	Action   string `json:"action"` // "playerLeft"
	PlayerID string `json:"playerId"`
}

type GameStartedMessage struct {
	Action string `json:"action"` // "gameStarted"
}

// TurnUpdateMessage tells the whole lobby whose turn it is, along with that
// player's remaining words so the group can prompt them. Other players'
// pools are never included.
type TurnUpdateMessage struct {
	Action          string   `json:"action"` // "turnUpdate"
	CurrentPlayerID string   `json:"currentPlayerId"`
	AvailableWords  []string `json:"availableWords"`
}

type WordChosenMessage struct {
	Action   string `json:"action"` // "wordChosen"
	PlayerID string `json:"playerId"`
	Word     string `json:"word"`
}

type GameOverMessage struct {
	Action  string `json:"action"` // "gameOver"
	Message string `json:"message"`
}

type WordsUpdatedMessage struct {
	Action   string   `json:"action"` // "wordsUpdated"
	PlayerID string   `json:"playerId"`
	Words    []string `json:"words"`
}

// ErrorMessage is only ever unicast to the offending client.
type ErrorMessage struct {
	Action  string `json:"action"` // "error"
	Message string `json:"message"`
}
