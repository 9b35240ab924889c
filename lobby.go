package main

import (
	"sort"
	"sync"
	"time"
)

type Phase string

const (
	PhaseSeating Phase = "seating"
	PhaseRound   Phase = "round"
	PhaseSummary Phase = "summary"
	PhaseWin     Phase = "win"
)

type GuessStatus string

const (
	GuessIdle      GuessStatus = "idle"
	GuessSubmitted GuessStatus = "submitted"
	GuessIncorrect GuessStatus = "incorrect"
	GuessCorrect   GuessStatus = "correct"
)

const (
	minRoundDurationMs = 1000
	maxRoundDurationMs = 120000
	minPointsToWin     = 5
	maxPointsToWin     = 500
)

type LobbySettings struct {
	RoundDurationMs int    `json:"roundDurationMs"`
	PointsToWin     int    `json:"pointsToWin"`
	QuestionFilter  string `json:"questionFilter"`
}

func clampRoundDuration(ms int64) int {
	rounded := (ms + 500) / 1000 * 1000
	if rounded < minRoundDurationMs {
		return minRoundDurationMs
	}
	if rounded > maxRoundDurationMs {
		return maxRoundDurationMs
	}
	return int(rounded)
}

func clampPointsToWin(points int) int {
	if points < minPointsToWin {
		return minPointsToWin
	}
	if points > maxPointsToWin {
		return maxPointsToWin
	}
	return points
}

// LobbyPlayer is a player currently seated in a lobby.
type LobbyPlayer struct {
	PlayerID         string
	Name             string
	Score            int
	Status           GuessStatus
	LastGuess        string
	CorrectElapsedMs int64

	// multi-entry progress for the current round
	found      map[string]bool
	guessCount int
}

// RoundState is the phase payload while a question is live.
type RoundState struct {
	Question  Question
	StartedAt time.Time
	Deadline  time.Time
}

type RoundResult struct {
	PlayerID      string      `json:"playerId"`
	Name          string      `json:"name"`
	Status        GuessStatus `json:"status"`
	ElapsedMs     int64       `json:"elapsedMs,omitempty"`
	PointsAwarded int         `json:"pointsAwarded"`
	Score         int         `json:"score"`
}

type RoundSummary struct {
	Question map[string]any `json:"question"`
	Results  []RoundResult  `json:"results"`
}

// Lobby is a single game room. All fields are guarded by the owning
// Registry's mutex; nothing outside the Registry mutates them.
type Lobby struct {
	ID           string
	Players      []*LobbyPlayer
	HostPlayerID string
	Phase        Phase
	Settings     LobbySettings
	Round        *RoundState
	LastSummary  *RoundSummary

	used   map[string]bool
	banked map[string]int

	lastActiveAt     time.Time
	pendingDestroyAt time.Time

	lastHostPlayerID string
	hostReleaseAt    time.Time

	roundSeq   int
	roundTimer *time.Timer
}

func (l *Lobby) player(playerID string) *LobbyPlayer {
	for _, p := range l.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Submission is a single answer attempt; which field is meaningful
// depends on the active question's type.
type Submission struct {
	Text     string
	ChoiceID string
	Bool     *bool
	Number   *float64
	Order    []string
}

// broadcaster is the room-scoped delivery capability the Registry
// consumes. The websocket hub implements it.
type broadcaster interface {
	Broadcast(lobbyID string, msg any)
}

// Registry is the single source of truth for lobby existence, membership,
// host authority, round phase, and scoring. It is an injectable store:
// tests construct isolated instances.
type Registry struct {
	mu        sync.Mutex
	lobbies   map[string]*Lobby
	questions *QuestionSet
	cfg       *Config
	bcast     broadcaster
}

func newRegistry(cfg *Config, questions *QuestionSet, bcast broadcaster) *Registry {
	return &Registry{
		lobbies:   make(map[string]*Lobby),
		questions: questions,
		cfg:       cfg,
		bcast:     bcast,
	}
}

func (r *Registry) broadcast(lobbyID string, msg any) {
	if r.bcast != nil {
		r.bcast.Broadcast(lobbyID, msg)
	}
}

// CreateIfMissing returns the lobby with the given id, initializing it
// with default settings on first sight. Idempotent, never errors.
func (r *Registry) CreateIfMissing(id string) *Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createIfMissingLocked(id)
}

func (r *Registry) createIfMissingLocked(id string) *Lobby {
	if l, ok := r.lobbies[id]; ok {
		return l
	}

	l := &Lobby{
		ID:           id,
		Phase:        PhaseSeating,
		Settings:     r.cfg.defaultSettings(),
		used:         make(map[string]bool),
		banked:       make(map[string]int),
		lastActiveAt: time.Now(),
	}
	r.lobbies[id] = l
	logf(r.cfg, "LOBBY: Created %s", id)

	return l
}

// Join admits a player into a lobby, creating the lobby if needed,
// restoring any banked score for that playerID, and settling host
// assignment. Returns whether the player is now host.
func (r *Registry) Join(name, lobbyID, playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.createIfMissingLocked(lobbyID)
	now := time.Now()
	l.lastActiveAt = now
	l.pendingDestroyAt = time.Time{}

	p := l.player(playerID)
	if p == nil {
		p = &LobbyPlayer{
			PlayerID: playerID,
			Status:   GuessIdle,
		}
		if banked, ok := l.banked[playerID]; ok {
			p.Score = banked
			delete(l.banked, playerID)
		}
		l.Players = append(l.Players, p)
	}
	if name != "" {
		p.Name = name
	}

	// A departed host gets their seat back if they return inside the
	// grace window.
	if l.HostPlayerID == "" && playerID == l.lastHostPlayerID && now.Before(l.hostReleaseAt) {
		l.HostPlayerID = playerID
		l.lastHostPlayerID = ""
		l.hostReleaseAt = time.Time{}
	}
	r.ensureHostLocked(l, now)

	r.broadcast(lobbyID, rosterMessage(l))
	logf(r.cfg, "LOBBY: %s joined %s (host: %t)", playerID, lobbyID, l.HostPlayerID == playerID)

	return l.HostPlayerID == playerID
}

// ensureHostLocked promotes the first roster member when the lobby has no
// host and no unexpired grace window blocks reassignment.
func (r *Registry) ensureHostLocked(l *Lobby, now time.Time) {
	if l.HostPlayerID != "" || len(l.Players) == 0 {
		return
	}
	if !l.hostReleaseAt.IsZero() && now.Before(l.hostReleaseAt) {
		return
	}
	l.HostPlayerID = l.Players[0].PlayerID
	l.lastHostPlayerID = ""
	l.hostReleaseAt = time.Time{}
}

// RemovePlayer takes a player out of the roster, banking their score for
// the lobby's lifetime. A departing host starts the host-release grace
// window rather than being replaced immediately. Unknown ids are no-ops.
func (r *Registry) RemovePlayer(lobbyID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return
	}

	p := l.player(playerID)
	if p == nil {
		return
	}

	dst := l.Players[:0]
	for _, other := range l.Players {
		if other.PlayerID != playerID {
			dst = append(dst, other)
		}
	}
	l.Players = dst
	l.banked[playerID] = p.Score

	now := time.Now()
	if l.HostPlayerID == playerID {
		l.HostPlayerID = ""
		l.lastHostPlayerID = playerID
		l.hostReleaseAt = now.Add(r.cfg.hostGrace)
	}

	if len(l.Players) == 0 {
		l.pendingDestroyAt = now.Add(r.cfg.lobbyGrace)
	}

	r.broadcast(lobbyID, rosterMessage(l))
	logf(r.cfg, "LOBBY: %s left %s", playerID, lobbyID)

	// With one player gone the rest may all be settled already.
	if l.Phase == PhaseRound && len(l.Players) > 0 && allSettled(l) {
		r.finishRoundLocked(l)
	}
}

// MarkActive refreshes the lobby's idle clock and settles any expired
// host-release grace window. Unknown ids are no-ops.
func (r *Registry) MarkActive(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return
	}
	now := time.Now()
	l.lastActiveAt = now

	had := l.HostPlayerID
	r.ensureHostLocked(l, now)
	if l.HostPlayerID != had {
		r.broadcast(lobbyID, rosterMessage(l))
	}
}

// UpdateSettings applies a settings patch. Values are clamped, unknown or
// malformed fields silently dropped, so bad client input can never
// corrupt settings. Host-only.
func (r *Registry) UpdateSettings(lobbyID, playerID string, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return nil
	}
	if playerID != l.HostPlayerID {
		return errNotHost
	}

	for key, raw := range patch {
		switch key {
		case "roundDurationMs":
			if ms, ok := asInt64(raw); ok {
				l.Settings.RoundDurationMs = clampRoundDuration(ms)
			}
		case "pointsToWin":
			if n, ok := asInt64(raw); ok {
				l.Settings.PointsToWin = clampPointsToWin(int(n))
			}
		case "questionFilter":
			if s, ok := raw.(string); ok {
				l.Settings.QuestionFilter = s
			}
		}
	}

	l.lastActiveAt = time.Now()
	r.broadcast(lobbyID, settingsMessage{Type: "settings", Settings: l.Settings})

	return nil
}

// asInt64 accepts the numeric shapes a JSON patch or a direct caller can
// produce.
func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// StartRound advances the state machine out of SEATING or SUMMARY. From
// SUMMARY it first checks for a winner; otherwise it deals an unused
// question, broadcasts the client-safe projection, and arms the deadline
// timer. Host-only.
func (r *Registry) StartRound(lobbyID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return nil
	}
	if playerID != l.HostPlayerID {
		return errNotHost
	}
	if l.Phase == PhaseRound || l.Phase == PhaseWin {
		return errWrongPhase
	}

	if l.Phase == PhaseSummary {
		if winner := winnerLocked(l); winner != nil {
			l.Phase = PhaseWin
			r.stopRoundTimerLocked(l)
			r.broadcast(lobbyID, winMessage{
				Type:     "win",
				PlayerID: winner.PlayerID,
				Name:     winner.Name,
				Score:    winner.Score,
			})
			logf(r.cfg, "GAME: %s won lobby %s with %d points", winner.PlayerID, lobbyID, winner.Score)
			return nil
		}
	}

	q := r.questions.PickUnused(l.Settings.QuestionFilter, l.used)
	if q == nil {
		// Corpus exhausted for this filter; recycle so a long game can
		// keep dealing.
		l.used = make(map[string]bool)
		q = r.questions.PickUnused(l.Settings.QuestionFilter, l.used)
	}
	if q == nil {
		return errNoQuestions
	}
	l.used[q.ID()] = true

	resetRoundGuesses(l)

	now := time.Now()
	duration := time.Duration(l.Settings.RoundDurationMs) * time.Millisecond
	l.Round = &RoundState{
		Question:  q,
		StartedAt: now,
		Deadline:  now.Add(duration),
	}
	l.Phase = PhaseRound
	l.lastActiveAt = now

	r.stopRoundTimerLocked(l)
	seq := l.roundSeq
	l.roundTimer = time.AfterFunc(duration, func() {
		r.roundDeadline(lobbyID, seq)
	})

	r.broadcast(lobbyID, roundStartedMessage{
		Type:       "round_started",
		Question:   q.ClientView(),
		DurationMs: duration.Milliseconds(),
		Deadline:   l.Round.Deadline.UnixMilli(),
	})
	logf(r.cfg, "ROUND: Dealt %s (%s) in lobby %s", q.ID(), q.Type(), lobbyID)

	return nil
}

// stopRoundTimerLocked invalidates any armed deadline callback. Bumping
// the sequence makes a timer that already fired a silent no-op.
func (r *Registry) stopRoundTimerLocked(l *Lobby) {
	l.roundSeq++
	if l.roundTimer != nil {
		l.roundTimer.Stop()
		l.roundTimer = nil
	}
}

// roundDeadline is the timer callback for an elapsed round.
func (r *Registry) roundDeadline(lobbyID string, seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil || l.Phase != PhaseRound || l.roundSeq != seq {
		return
	}
	logf(r.cfg, "ROUND: Deadline elapsed in lobby %s", lobbyID)
	r.finishRoundLocked(l)
}

// SubmitAnswer evaluates one answer attempt against the live question.
// Settled players and malformed submissions are dropped; submitting
// outside ROUND is a state conflict surfaced to the caller.
func (r *Registry) SubmitAnswer(lobbyID, playerID string, sub Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return nil
	}
	if l.Phase != PhaseRound || l.Round == nil {
		return errWrongPhase
	}
	p := l.player(playerID)
	if p == nil {
		return errNotJoined
	}
	if p.Status == GuessCorrect || p.Status == GuessIncorrect {
		return nil
	}

	elapsed := time.Since(l.Round.StartedAt).Milliseconds()

	switch q := l.Round.Question.(type) {
	case *FreeTextQuestion:
		p.LastGuess = sub.Text
		settle(p, q.Evaluate(sub.Text), elapsed)

	case *MultipleChoiceQuestion:
		if sub.ChoiceID == "" {
			return nil
		}
		p.LastGuess = sub.ChoiceID
		settle(p, q.Evaluate(sub.ChoiceID), elapsed)

	case *TrueFalseQuestion:
		if sub.Bool == nil {
			return nil
		}
		v := q.Evaluate(*sub.Bool)
		p.LastGuess = v.Matched
		settle(p, v, elapsed)

	case *NumericQuestion:
		if sub.Number == nil {
			return nil
		}
		v := q.Evaluate(*sub.Number)
		p.LastGuess = v.Matched
		settle(p, v, elapsed)

	case *OrderedListQuestion:
		if len(sub.Order) == 0 {
			return nil
		}
		settle(p, q.Evaluate(sub.Order), elapsed)

	case *MultiEntryQuestion:
		if p.found == nil {
			p.found = make(map[string]bool)
		}
		v := q.Evaluate(sub.Text, p.found)
		p.guessCount++
		p.LastGuess = sub.Text
		if v.Correct {
			p.found[v.Matched] = true
		}
		switch {
		case len(p.found) == q.TotalAnswers():
			p.Status = GuessCorrect
			p.CorrectElapsedMs = elapsed
		case p.guessCount >= q.MaxGuesses:
			p.Status = GuessIncorrect
		default:
			p.Status = GuessSubmitted
		}
	}

	l.lastActiveAt = time.Now()
	r.broadcast(lobbyID, guessStatusMessage{
		Type:       "guess_status",
		PlayerID:   p.PlayerID,
		Status:     p.Status,
		GuessCount: p.guessCount,
		FoundCount: len(p.found),
	})

	if allSettled(l) {
		r.finishRoundLocked(l)
	}

	return nil
}

// settle applies a single-shot verdict: one guess decides the player.
func settle(p *LobbyPlayer, v Verdict, elapsed int64) {
	if v.Correct {
		p.Status = GuessCorrect
		p.CorrectElapsedMs = elapsed
	} else {
		p.Status = GuessIncorrect
	}
}

func allSettled(l *Lobby) bool {
	for _, p := range l.Players {
		if p.Status != GuessCorrect && p.Status != GuessIncorrect {
			return false
		}
	}
	return len(l.Players) > 0
}

// finishRoundLocked ends the live round: scores are applied (1 point per
// correct answer, 2 for the round's fastest), the reveal projection and
// ranking are broadcast, and the lobby enters SUMMARY.
func (r *Registry) finishRoundLocked(l *Lobby) {
	if l.Round == nil {
		return
	}
	r.stopRoundTimerLocked(l)

	var fastest *LobbyPlayer
	for _, p := range l.Players {
		if p.Status != GuessCorrect {
			continue
		}
		if fastest == nil || p.CorrectElapsedMs < fastest.CorrectElapsedMs {
			fastest = p
		}
	}

	results := make([]RoundResult, 0, len(l.Players))
	for _, p := range l.Players {
		points := 0
		if p.Status == GuessCorrect {
			points = 1
			if p == fastest {
				points = 2
			}
		}
		p.Score += points
		results = append(results, RoundResult{
			PlayerID:      p.PlayerID,
			Name:          p.Name,
			Status:        p.Status,
			ElapsedMs:     p.CorrectElapsedMs,
			PointsAwarded: points,
			Score:         p.Score,
		})
	}

	// Correct answers first, fastest on top; everyone else keeps roster
	// order.
	sort.SliceStable(results, func(i, j int) bool {
		ci, cj := results[i].Status == GuessCorrect, results[j].Status == GuessCorrect
		if ci != cj {
			return ci
		}
		if ci && cj {
			return results[i].ElapsedMs < results[j].ElapsedMs
		}
		return false
	})

	l.LastSummary = &RoundSummary{
		Question: l.Round.Question.RevealView(),
		Results:  results,
	}
	l.Round = nil
	l.Phase = PhaseSummary

	r.broadcast(l.ID, roundSummaryMessage{
		Type:    "round_summary",
		Summary: *l.LastSummary,
		Roster:  rosterMessage(l).Players,
	})
}

func winnerLocked(l *Lobby) *LobbyPlayer {
	var best *LobbyPlayer
	for _, p := range l.Players {
		if p.Score >= l.Settings.PointsToWin {
			if best == nil || p.Score > best.Score {
				best = p
			}
		}
	}
	return best
}

// ResetRoundGuesses clears every roster member's per-round guess state.
// Idempotent.
func (r *Registry) ResetRoundGuesses(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return
	}
	resetRoundGuesses(l)
}

func resetRoundGuesses(l *Lobby) {
	for _, p := range l.Players {
		p.Status = GuessIdle
		p.LastGuess = ""
		p.CorrectElapsedMs = 0
		p.found = nil
		p.guessCount = 0
	}
}

// ResetGame returns the lobby to SEATING, clearing scores, banked scores,
// guesses, and used-question tracking. Host-only, idempotent.
func (r *Registry) ResetGame(lobbyID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return nil
	}
	if playerID != l.HostPlayerID {
		return errNotHost
	}

	r.stopRoundTimerLocked(l)
	resetRoundGuesses(l)
	for _, p := range l.Players {
		p.Score = 0
	}
	l.banked = make(map[string]int)
	l.used = make(map[string]bool)
	l.Round = nil
	l.LastSummary = nil
	l.Phase = PhaseSeating
	l.lastActiveAt = time.Now()

	r.broadcast(lobbyID, gameResetMessage{Type: "game_reset"})
	r.broadcast(lobbyID, rosterMessage(l))
	logf(r.cfg, "GAME: Reset lobby %s", lobbyID)

	return nil
}

// ListLobbies returns the ids of every tracked lobby.
func (r *Registry) ListLobbies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.lobbies))
	for id := range r.lobbies {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Sweep destroys lobbies whose empty-grace window has expired. Any join
// before the sweep clears pendingDestroyAt and cancels destruction.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	destroyed := 0
	for id, l := range r.lobbies {
		if l.pendingDestroyAt.IsZero() || now.Before(l.pendingDestroyAt) {
			continue
		}
		r.stopRoundTimerLocked(l)
		delete(r.lobbies, id)
		destroyed++
		logf(r.cfg, "LOBBY: Destroyed idle %s", id)
	}
	return destroyed
}

// Snapshot builds the joined-state view sent to a single connection:
// phase, settings, roster, the live question's client projection, and the
// last round summary. Returns nil for unknown lobbies.
func (r *Registry) Snapshot(lobbyID, playerID string) *sessionInfoMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lobbies[lobbyID]
	if l == nil {
		return nil
	}

	msg := &sessionInfoMessage{
		Type:     "session_info",
		LobbyID:  l.ID,
		PlayerID: playerID,
		IsHost:   playerID != "" && playerID == l.HostPlayerID,
		Phase:    l.Phase,
		Settings: l.Settings,
		Players:  rosterMessage(l).Players,
		HostID:   l.HostPlayerID,
		Summary:  l.LastSummary,
	}
	if l.Phase == PhaseRound && l.Round != nil {
		msg.Question = l.Round.Question.ClientView()
		msg.Deadline = l.Round.Deadline.UnixMilli()
	}
	return msg
}
