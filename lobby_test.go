package main

import (
	"testing"
	"time"
)

const testCorpus = `{"questions":[
	{"id":"ft1","type":"free_text","title":"Finish the lyric","category":"lyric_fill_in",
	 "answers":[{"answer":"stronger"}]},
	{"id":"me1","type":"multi_entry","title":"Name three","category":"tracks","maxGuesses":5,
	 "answers":[{"answer":"A"},{"answer":"B"},{"answer":"C"}]}
]}`

func testConfig() *Config {
	return &Config{
		roundDuration: 30 * time.Second,
		pointsToWin:   10,
		hostGrace:     time.Minute,
		lobbyGrace:    5 * time.Minute,
		sweepInterval: time.Minute,
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	set, err := loadQuestionSet([]byte(testCorpus))
	if err != nil {
		t.Fatalf("loading test corpus: %v", err)
	}
	return newRegistry(testConfig(), set, nil)
}

func TestJoinAssignsHostAndDefaults(t *testing.T) {
	r := testRegistry(t)

	if !r.Join("Alice", "l1", "p1") {
		t.Error("first joiner should become host")
	}
	if r.Join("Bob", "l1", "p2") {
		t.Error("second joiner should not be host")
	}

	l := r.CreateIfMissing("l1")
	if l.Settings.RoundDurationMs != 30000 || l.Settings.PointsToWin != 10 {
		t.Errorf("default settings = %+v", l.Settings)
	}
	if len(l.Players) != 2 || l.HostPlayerID != "p1" {
		t.Errorf("roster = %d players, host %q", len(l.Players), l.HostPlayerID)
	}
}

func TestCreateIfMissingIdempotent(t *testing.T) {
	r := testRegistry(t)

	a := r.CreateIfMissing("l1")
	b := r.CreateIfMissing("l1")
	if a != b {
		t.Error("CreateIfMissing returned a different lobby for the same id")
	}
}

func TestUpdateSettingsClampsAndDrops(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	l := r.CreateIfMissing("l1")

	if err := r.UpdateSettings("l1", "p1", map[string]any{"roundDurationMs": 999999.0}); err != nil {
		t.Fatal(err)
	}
	if l.Settings.RoundDurationMs != maxRoundDurationMs {
		t.Errorf("roundDurationMs = %d, want clamped %d", l.Settings.RoundDurationMs, maxRoundDurationMs)
	}

	if err := r.UpdateSettings("l1", "p1", map[string]any{"pointsToWin": -5.0}); err != nil {
		t.Fatal(err)
	}
	if l.Settings.PointsToWin != minPointsToWin {
		t.Errorf("pointsToWin = %d, want clamped %d", l.Settings.PointsToWin, minPointsToWin)
	}

	// 2.4s rounds to the nearest second.
	_ = r.UpdateSettings("l1", "p1", map[string]any{"roundDurationMs": 2400.0})
	if l.Settings.RoundDurationMs != 2000 {
		t.Errorf("roundDurationMs = %d, want rounded 2000", l.Settings.RoundDurationMs)
	}

	// Malformed fields are dropped without rejecting the patch.
	before := l.Settings
	if err := r.UpdateSettings("l1", "p1", map[string]any{
		"bogus":          1.0,
		"questionFilter": 42.0,
	}); err != nil {
		t.Fatal(err)
	}
	if l.Settings != before {
		t.Errorf("settings changed by malformed patch: %+v", l.Settings)
	}

	if err := r.UpdateSettings("l1", "p2", map[string]any{"pointsToWin": 5.0}); err != errNotHost {
		t.Errorf("non-host update = %v, want errNotHost", err)
	}
	if err := r.UpdateSettings("ghost", "p1", nil); err != nil {
		t.Errorf("unknown lobby = %v, want nil no-op", err)
	}
}

func TestRoundLifecycle(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	r.Join("Bob", "l1", "p2")
	l := r.CreateIfMissing("l1")
	l.Settings.QuestionFilter = "free_text"

	if err := r.StartRound("l1", "p2"); err != errNotHost {
		t.Fatalf("non-host start = %v, want errNotHost", err)
	}
	if err := r.SubmitAnswer("l1", "p1", Submission{Text: "stronger"}); err != errWrongPhase {
		t.Fatalf("submit during seating = %v, want errWrongPhase", err)
	}

	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	if l.Phase != PhaseRound || l.Round == nil {
		t.Fatalf("phase = %q after start", l.Phase)
	}
	if !l.used["ft1"] {
		t.Error("dealt question not tracked as used")
	}
	if err := r.StartRound("l1", "p1"); err != errWrongPhase {
		t.Errorf("start during round = %v, want errWrongPhase", err)
	}

	// Lyric category defaults to loose matching.
	if err := r.SubmitAnswer("l1", "p1", Submission{Text: "STRONGER!!"}); err != nil {
		t.Fatal(err)
	}
	if got := l.player("p1").Status; got != GuessCorrect {
		t.Fatalf("p1 status = %q", got)
	}

	if err := r.SubmitAnswer("l1", "p2", Submission{Text: "weaker"}); err != nil {
		t.Fatal(err)
	}

	// Everyone settled, so the round finished without waiting for the timer.
	if l.Phase != PhaseSummary {
		t.Fatalf("phase = %q, want summary", l.Phase)
	}
	if l.LastSummary == nil {
		t.Fatal("no round summary")
	}
	if _, ok := l.LastSummary.Question["answers"]; !ok {
		t.Error("summary question is not the reveal projection")
	}

	results := l.LastSummary.Results
	if results[0].PlayerID != "p1" || results[0].PointsAwarded != 2 {
		t.Errorf("fastest correct result = %+v", results[0])
	}
	if results[1].PlayerID != "p2" || results[1].PointsAwarded != 0 {
		t.Errorf("incorrect result = %+v", results[1])
	}
	if l.player("p1").Score != 2 || l.player("p2").Score != 0 {
		t.Errorf("scores = %d/%d", l.player("p1").Score, l.player("p2").Score)
	}

	if err := r.SubmitAnswer("l1", "p1", Submission{Text: "late"}); err != errWrongPhase {
		t.Errorf("submit during summary = %v, want errWrongPhase", err)
	}

	// No winner yet: advancing deals the next round.
	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	if l.Phase != PhaseRound {
		t.Errorf("phase = %q after advance, want round", l.Phase)
	}
	if got := l.player("p1").Status; got != GuessIdle {
		t.Errorf("guess state not reset between rounds: %q", got)
	}
}

func TestWinAndGameReset(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	r.Join("Bob", "l1", "p2")
	l := r.CreateIfMissing("l1")
	l.Settings.QuestionFilter = "free_text"

	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	_ = r.SubmitAnswer("l1", "p1", Submission{Text: "stronger"})
	_ = r.SubmitAnswer("l1", "p2", Submission{Text: "nope"})
	if l.Phase != PhaseSummary {
		t.Fatalf("phase = %q", l.Phase)
	}

	l.player("p1").Score = l.Settings.PointsToWin
	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	if l.Phase != PhaseWin {
		t.Fatalf("phase = %q, want win", l.Phase)
	}
	if err := r.StartRound("l1", "p1"); err != errWrongPhase {
		t.Errorf("start after win = %v, want errWrongPhase", err)
	}

	if err := r.ResetGame("l1", "p2"); err != errNotHost {
		t.Errorf("non-host reset = %v, want errNotHost", err)
	}
	if err := r.ResetGame("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	if l.Phase != PhaseSeating {
		t.Errorf("phase = %q after reset, want seating", l.Phase)
	}
	for _, p := range l.Players {
		if p.Score != 0 || p.Status != GuessIdle {
			t.Errorf("player %s not reset: score %d, status %q", p.PlayerID, p.Score, p.Status)
		}
	}
	if len(l.used) != 0 || len(l.banked) != 0 || l.LastSummary != nil {
		t.Error("game reset left used questions, banked scores, or a summary behind")
	}
}

func TestBankedScoreSurvivesReconnect(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	r.Join("Bob", "l1", "p2")
	l := r.CreateIfMissing("l1")

	l.player("p2").Score = 7
	r.RemovePlayer("l1", "p2")

	if l.player("p2") != nil {
		t.Fatal("removed player still in roster")
	}
	if l.banked["p2"] != 7 {
		t.Fatalf("banked score = %d, want 7", l.banked["p2"])
	}

	r.Join("Bob", "l1", "p2")
	if got := l.player("p2").Score; got != 7 {
		t.Errorf("restored score = %d, want 7", got)
	}
	if _, still := l.banked["p2"]; still {
		t.Error("banked score not consumed on rejoin")
	}
}

func TestHostReleaseGrace(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	r.Join("Bob", "l1", "p2")
	l := r.CreateIfMissing("l1")

	r.RemovePlayer("l1", "p1")
	if l.HostPlayerID != "" {
		t.Fatalf("host = %q immediately after departure, want grace window", l.HostPlayerID)
	}

	// Activity inside the grace window must not promote anyone.
	r.MarkActive("l1")
	if l.HostPlayerID != "" {
		t.Fatalf("host = %q during grace window", l.HostPlayerID)
	}

	// The departed host returns in time and gets the seat back.
	if !r.Join("Alice", "l1", "p1") {
		t.Fatal("returning host not reinstated inside grace window")
	}

	// This time the window expires before they return.
	r.RemovePlayer("l1", "p1")
	l.hostReleaseAt = time.Now().Add(-time.Second)
	r.MarkActive("l1")
	if l.HostPlayerID != "p2" {
		t.Errorf("host = %q after grace expiry, want first roster member p2", l.HostPlayerID)
	}

	// The old host rejoining now is just a regular player.
	if r.Join("Alice", "l1", "p1") {
		t.Error("stale host reinstated after grace expiry")
	}
}

func TestRoundDeadlineAndStaleTimer(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	l := r.CreateIfMissing("l1")
	l.Settings.QuestionFilter = "free_text"

	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	seq := l.roundSeq

	// A stale sequence number is a silent no-op.
	r.roundDeadline("l1", seq-1)
	if l.Phase != PhaseRound {
		t.Fatalf("stale deadline ended the round: phase %q", l.Phase)
	}

	r.roundDeadline("l1", seq)
	if l.Phase != PhaseSummary {
		t.Fatalf("phase = %q after deadline, want summary", l.Phase)
	}
	if got := l.player("p1").Status; got != GuessIdle {
		t.Errorf("idle player's status changed at deadline: %q", got)
	}

	// The same callback firing again does nothing.
	r.roundDeadline("l1", seq)
	if l.Phase != PhaseSummary {
		t.Errorf("repeated deadline changed phase to %q", l.Phase)
	}

	r.roundDeadline("ghost", 0)
}

func TestMultiEntryRound(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	l := r.CreateIfMissing("l1")
	l.Settings.QuestionFilter = "multi_entry"

	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	p := l.player("p1")

	// Three correct guesses in any order complete the question, with
	// guesses to spare.
	_ = r.SubmitAnswer("l1", "p1", Submission{Text: "b"})
	if p.Status != GuessSubmitted {
		t.Fatalf("status after first find = %q", p.Status)
	}
	_ = r.SubmitAnswer("l1", "p1", Submission{Text: "not an answer"})
	_ = r.SubmitAnswer("l1", "p1", Submission{Text: "c"})
	_ = r.SubmitAnswer("l1", "p1", Submission{Text: "a"})

	if p.Status != GuessCorrect {
		t.Fatalf("status = %q after finding all answers", p.Status)
	}
	if p.guessCount != 4 {
		t.Errorf("guessCount = %d, want 4 of 5", p.guessCount)
	}
	if l.Phase != PhaseSummary {
		t.Fatalf("phase = %q", l.Phase)
	}

	// Next round: five misses before completion fail the question.
	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	for _, guess := range []string{"w1", "w2", "w3", "w4", "w5"} {
		_ = r.SubmitAnswer("l1", "p1", Submission{Text: guess})
	}
	if p.Status != GuessIncorrect {
		t.Errorf("status = %q after exhausting guesses, want incorrect", p.Status)
	}
}

func TestIdleReap(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	l := r.CreateIfMissing("l1")

	r.RemovePlayer("l1", "p1")
	if l.pendingDestroyAt.IsZero() {
		t.Fatal("empty lobby not marked for destruction")
	}

	if destroyed := r.Sweep(time.Now()); destroyed != 0 {
		t.Fatalf("swept %d lobbies before the grace elapsed", destroyed)
	}

	// Rejoining cancels destruction.
	r.Join("Alice", "l1", "p1")
	if !l.pendingDestroyAt.IsZero() {
		t.Error("join did not clear pendingDestroyAt")
	}

	r.RemovePlayer("l1", "p1")
	if destroyed := r.Sweep(time.Now().Add(r.cfg.lobbyGrace + time.Second)); destroyed != 1 {
		t.Fatalf("swept %d lobbies after grace elapsed, want 1", destroyed)
	}
	if _, exists := r.lobbies["l1"]; exists {
		t.Error("lobby survived the sweep")
	}
}

func TestUnknownLobbyLookupsAreNoops(t *testing.T) {
	r := testRegistry(t)

	r.RemovePlayer("ghost", "p1")
	r.MarkActive("ghost")
	r.ResetRoundGuesses("ghost")
	if err := r.SubmitAnswer("ghost", "p1", Submission{Text: "x"}); err != nil {
		t.Errorf("SubmitAnswer on unknown lobby = %v", err)
	}
	if err := r.StartRound("ghost", "p1"); err != nil {
		t.Errorf("StartRound on unknown lobby = %v", err)
	}
	if snap := r.Snapshot("ghost", "p1"); snap != nil {
		t.Errorf("Snapshot on unknown lobby = %+v", snap)
	}
}

func TestSnapshotDuringRound(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	l := r.CreateIfMissing("l1")
	l.Settings.QuestionFilter = "free_text"

	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}

	snap := r.Snapshot("l1", "p1")
	if snap == nil {
		t.Fatal("no snapshot")
	}
	if !snap.IsHost || snap.Phase != PhaseRound {
		t.Errorf("snapshot = host %t, phase %q", snap.IsHost, snap.Phase)
	}
	if snap.Question == nil {
		t.Fatal("snapshot missing live question")
	}
	if _, leaked := snap.Question["answers"]; leaked {
		t.Error("snapshot question leaks secret answers")
	}
	if snap.Deadline == 0 {
		t.Error("snapshot missing round deadline")
	}
}

func TestDepartureSettlesRound(t *testing.T) {
	r := testRegistry(t)
	r.Join("Alice", "l1", "p1")
	r.Join("Bob", "l1", "p2")
	l := r.CreateIfMissing("l1")
	l.Settings.QuestionFilter = "free_text"

	if err := r.StartRound("l1", "p1"); err != nil {
		t.Fatal(err)
	}
	_ = r.SubmitAnswer("l1", "p1", Submission{Text: "stronger"})
	if l.Phase != PhaseRound {
		t.Fatalf("round ended with a player still guessing")
	}

	// The only unsettled player leaves; the round should finish.
	r.RemovePlayer("l1", "p2")
	if l.Phase != PhaseSummary {
		t.Errorf("phase = %q after last unsettled player left, want summary", l.Phase)
	}
}
