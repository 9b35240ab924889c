package main

import (
	"sync"
)

// Directory maps live connections to durable player identities. A player
// may hold several connections at once (multiple tabs, reconnect overlap);
// the identity record is dropped only when its last connection goes away.
// It knows nothing about lobbies beyond the id a player last claimed.
type Directory struct {
	mu      sync.RWMutex
	players map[string]*directoryEntry
	conns   map[string]string // connection id -> player id
}

type directoryEntry struct {
	playerID string
	name     string
	lobbyID  string
	conns    map[string]bool
}

func newDirectory() *Directory {
	return &Directory{
		players: make(map[string]*directoryEntry),
		conns:   make(map[string]string),
	}
}

// Connect binds a connection to a durable identity, creating the identity
// on first sight of playerID and otherwise merging into it. A later
// connect may update the player's name and lobby.
func (d *Directory) Connect(connID, name, lobbyID, playerID string) {
	if connID == "" || playerID == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.players[playerID]
	if !ok {
		entry = &directoryEntry{
			playerID: playerID,
			conns:    make(map[string]bool),
		}
		d.players[playerID] = entry
	}

	if name != "" {
		entry.name = name
	}
	if lobbyID != "" {
		entry.lobbyID = lobbyID
	}

	entry.conns[connID] = true
	d.conns[connID] = playerID
}

// Disconnect drops a connection and reports which identity it belonged to
// and whether that identity now has no connections left. The identity is
// deleted only in the fully-disconnected case, so a reconnect racing a
// disconnect merges instead of forging a new identity.
func (d *Directory) Disconnect(connID string) (playerID, lobbyID string, fullyDisconnected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	playerID, ok := d.conns[connID]
	if !ok {
		return "", "", false
	}
	delete(d.conns, connID)

	entry := d.players[playerID]
	if entry == nil {
		return playerID, "", true
	}

	delete(entry.conns, connID)
	lobbyID = entry.lobbyID

	if len(entry.conns) == 0 {
		delete(d.players, playerID)
		return playerID, lobbyID, true
	}

	return playerID, lobbyID, false
}

// Lookup returns the identity's current name and lobby, if known.
func (d *Directory) Lookup(playerID string) (name, lobbyID string, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.players[playerID]
	if !ok {
		return "", "", false
	}
	return entry.name, entry.lobbyID, true
}

// ConnectionCount reports how many live connections an identity holds.
func (d *Directory) ConnectionCount(playerID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.players[playerID]
	if !ok {
		return 0
	}
	return len(entry.conns)
}
