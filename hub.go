package main

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Messages coming from clients
type inboundMessage struct {
	Type     string         `json:"type"` // "join", "start_round", "next_round", "submit_answer", "update_settings", "reset_game"
	Name     string         `json:"name,omitempty"`
	Text     string         `json:"text,omitempty"`
	ChoiceID string         `json:"choiceId,omitempty"`
	Value    *bool          `json:"value,omitempty"`
	Number   *float64       `json:"number,omitempty"`
	Order    []string       `json:"order,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Messages sent to clients

type PlayerView struct {
	PlayerID string      `json:"playerId"`
	Name     string      `json:"name"`
	Score    int         `json:"score"`
	Status   GuessStatus `json:"status"`
}

type rosterUpdateMessage struct {
	Type    string       `json:"type"` // "roster"
	Players []PlayerView `json:"players"`
	HostID  string       `json:"hostPlayerId"`
}

func rosterMessage(l *Lobby) rosterUpdateMessage {
	players := make([]PlayerView, 0, len(l.Players))
	for _, p := range l.Players {
		players = append(players, PlayerView{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Score:    p.Score,
			Status:   p.Status,
		})
	}
	return rosterUpdateMessage{Type: "roster", Players: players, HostID: l.HostPlayerID}
}

// sessionInfoMessage is sent to a single connection right after it joins,
// so a reconnecting client can render mid-round state immediately.
type sessionInfoMessage struct {
	Type     string         `json:"type"` // "session_info"
	LobbyID  string         `json:"lobbyId"`
	PlayerID string         `json:"playerId"`
	IsHost   bool           `json:"isHost"`
	Phase    Phase          `json:"phase"`
	Settings LobbySettings  `json:"settings"`
	Players  []PlayerView   `json:"players"`
	HostID   string         `json:"hostPlayerId"`
	Question map[string]any `json:"question,omitempty"`
	Deadline int64          `json:"deadline,omitempty"`
	Summary  *RoundSummary  `json:"summary,omitempty"`
}

type roundStartedMessage struct {
	Type       string         `json:"type"` // "round_started"
	Question   map[string]any `json:"question"`
	DurationMs int64          `json:"durationMs"`
	Deadline   int64          `json:"deadline"`
}

type guessStatusMessage struct {
	Type       string      `json:"type"` // "guess_status"
	PlayerID   string      `json:"playerId"`
	Status     GuessStatus `json:"status"`
	GuessCount int         `json:"guessCount,omitempty"`
	FoundCount int         `json:"foundCount,omitempty"`
}

type roundSummaryMessage struct {
	Type    string       `json:"type"` // "round_summary"
	Summary RoundSummary `json:"summary"`
	Roster  []PlayerView `json:"players"`
}

type winMessage struct {
	Type     string `json:"type"` // "win"
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

type gameResetMessage struct {
	Type string `json:"type"` // "game_reset"
}

type settingsMessage struct {
	Type     string        `json:"type"` // "settings"
	Settings LobbySettings `json:"settings"`
}

type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type client struct {
	id       string
	conn     *websocket.Conn
	send     chan any
	playerID string
	lobbyID  string
	joined   bool
}

// Hub is the websocket delivery layer: per-lobby client sets and room
// broadcast. It implements the broadcaster capability the Registry
// consumes, and owns no game state of its own.
type Hub struct {
	cfg       *Config
	directory *Directory
	registry  *Registry

	mu    sync.Mutex
	rooms map[string]map[*client]bool
}

func newHub(cfg *Config, directory *Directory) *Hub {
	return &Hub{
		cfg:       cfg,
		directory: directory,
		rooms:     make(map[string]map[*client]bool),
	}
}

// Broadcast sends msg to every client subscribed to the lobby. Clients
// whose send buffer is full are dropped; their read pump notices the
// closed channel's connection teardown.
func (h *Hub) Broadcast(lobbyID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[lobbyID] {
		select {
		case c.send <- msg:
		default:
			delete(h.rooms[lobbyID], c)
			close(c.send)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[c.lobbyID] == nil {
		h.rooms[c.lobbyID] = make(map[*client]bool)
	}
	h.rooms[c.lobbyID][c] = true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[c.lobbyID]; ok {
		if room[c] {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.lobbyID)
		}
	}
}

// sendTo delivers to a single client without blocking the caller.
func (h *Hub) sendTo(c *client, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[c.lobbyID]; !ok || !room[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// handleConnection runs the lifetime of one websocket connection. The
// durable playerID comes from the visitor cookie; the player enters the
// lobby roster only once a "join" message names them.
func (h *Hub) handleConnection(conn *websocket.Conn, lobbyID, playerID string) {
	c := &client{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan any, 16),
		playerID: playerID,
		lobbyID:  lobbyID,
	}

	h.add(c)
	go c.writePump()
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.dropConnection(c)
	}()

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		h.dispatch(c, msg)
	}
}

func (h *Hub) dispatch(c *client, msg inboundMessage) {
	switch msg.Type {
	case "join":
		name := msg.Name
		if name == "" {
			name = "Player"
		}
		h.directory.Connect(c.id, name, c.lobbyID, c.playerID)
		h.registry.Join(name, c.lobbyID, c.playerID)
		c.joined = true
		if snap := h.registry.Snapshot(c.lobbyID, c.playerID); snap != nil {
			h.sendTo(c, snap)
		}
		return

	case "":
		return
	}

	if !c.joined {
		h.sendTo(c, errorMessage{Type: "error", Message: errNotJoined.Error()})
		return
	}

	var err error
	switch msg.Type {
	case "start_round", "next_round":
		err = h.registry.StartRound(c.lobbyID, c.playerID)
	case "submit_answer":
		err = h.registry.SubmitAnswer(c.lobbyID, c.playerID, Submission{
			Text:     msg.Text,
			ChoiceID: msg.ChoiceID,
			Bool:     msg.Value,
			Number:   msg.Number,
			Order:    msg.Order,
		})
	case "update_settings":
		err = h.registry.UpdateSettings(c.lobbyID, c.playerID, msg.Settings)
	case "reset_game":
		err = h.registry.ResetGame(c.lobbyID, c.playerID)
	default:
		logf(h.cfg, "WS: Ignoring unknown message type %q from %s", msg.Type, c.playerID)
		return
	}

	h.registry.MarkActive(c.lobbyID)

	if err != nil {
		h.sendTo(c, errorMessage{Type: "error", Message: err.Error()})
	}
}

// dropConnection tells the directory a connection is gone; only when the
// identity is fully disconnected does the player leave the roster.
func (h *Hub) dropConnection(c *client) {
	playerID, lobbyID, fully := h.directory.Disconnect(c.id)
	if playerID == "" || !fully {
		return
	}
	if lobbyID == "" {
		lobbyID = c.lobbyID
	}
	h.registry.RemovePlayer(lobbyID, playerID)
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
