package room

import (
	"sort"
	"time"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseChoosing Phase = "choosing"
	PhaseDrawing  Phase = "drawing"
	PhaseRoundEnd Phase = "roundEnd"
	PhaseGameEnd  Phase = "gameEnd"
)

// InRound reports whether a drawer is currently assigned.
func (p Phase) InRound() bool {
	return p == PhaseChoosing || p == PhaseDrawing
}

// Active reports whether the phase is driven by the tick loop.
func (p Phase) Active() bool {
	return p == PhaseChoosing || p == PhaseDrawing || p == PhaseRoundEnd
}

// HiddenMarker fills an unrevealed hint slot.
const HiddenMarker = "_"

type MessageKind string

const (
	MessageRegular MessageKind = "regular"
	MessageSystem  MessageKind = "system"
)

type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	IsHost     bool   `json:"isHost"`
	HasGuessed bool   `json:"hasGuessed"`
	JoinedAt   int64  `json:"joinedAt"`
}

type Message struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	AuthorID   string      `json:"authorId"`
	AuthorName string      `json:"authorName"`
	Timestamp  int64       `json:"timestamp"`
	Kind       MessageKind `json:"kind"`
}

type Winner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	StrokeDraw  = "draw"
	StrokeClear = "clear"
)

// Stroke is an opaque drawing op relayed to viewers; the latest one wins.
type Stroke struct {
	Action    string  `json:"action"`
	From      *Point  `json:"from,omitempty"`
	To        *Point  `json:"to,omitempty"`
	Color     string  `json:"color,omitempty"`
	Size      float64 `json:"size,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

func ClearStroke(now time.Time) Stroke {
	return Stroke{Action: StrokeClear, Timestamp: now.UnixMilli()}
}

// Leadership is the lease record of the process driving the room clock.
type Leadership struct {
	Holder      string `json:"holder"`
	HeartbeatMs int64  `json:"heartbeatAt"`
	ExpiresAtMs int64  `json:"expiresAt"`
}

func (l Leadership) Expired(now time.Time) bool {
	return now.UnixMilli() >= l.ExpiresAtMs
}

func (l Leadership) HeldBy(holder string, now time.Time) bool {
	return l.Holder == holder && !l.Expired(now)
}

// Room is the decoded room document. GuessClaims holds every guess credited
// this round, including claims of players who left since, and is never sent
// to clients.
type Room struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	HostID              string            `json:"hostId"`
	Phase               Phase             `json:"phase"`
	MaxPlayers          int               `json:"maxPlayers"`
	TotalRounds         int               `json:"totalRounds"`
	DrawDurationSeconds int               `json:"drawDurationSeconds"`
	CurrentDrawerID     string            `json:"currentDrawerId"`
	CurrentWord         string            `json:"currentWord"`
	WordOptions         []string          `json:"wordOptions"`
	Hints               []string          `json:"hints"`
	TimerSeconds        int               `json:"timerSeconds"`
	RoundNumber         int               `json:"roundNumber"`
	GuessedPlayerIDs    map[string]bool   `json:"guessedPlayerIds"`
	GuessClaims         map[string]bool   `json:"-"`
	Winners             []Winner          `json:"winners"`
	LastStroke          *Stroke           `json:"lastStroke,omitempty"`
	Rotation            []string          `json:"rotation"`
	Leader              *Leadership       `json:"leader,omitempty"`
	CreatedAt           int64             `json:"createdAt"`
	Players             map[string]Player `json:"players"`
	Messages            []Message         `json:"messages,omitempty"`
}

func (r Room) HasPlayer(id string) bool {
	_, ok := r.Players[id]
	return ok
}

// PlayerList returns players ordered by join time, then id.
func (r Room) PlayerList() []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt != out[j].JoinedAt {
			return out[i].JoinedAt < out[j].JoinedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Guessers are the players other than the current drawer.
func (r Room) Guessers() []Player {
	var out []Player
	for _, p := range r.PlayerList() {
		if p.ID != r.CurrentDrawerID {
			out = append(out, p)
		}
	}
	return out
}

// AllGuessed is true when every guesser is in guessedPlayerIds.
// A room with no guessers counts as done.
func (r Room) AllGuessed() bool {
	for _, p := range r.Guessers() {
		if !r.GuessedPlayerIDs[p.ID] {
			return false
		}
	}
	return true
}

func (r Room) Host() (Player, bool) {
	p, ok := r.Players[r.HostID]
	return p, ok
}

// VisibleTo is the room as playerID may see it: the lease is internal, and
// the word and its options belong to the drawer until the round is over.
func (r Room) VisibleTo(playerID string) Room {
	r.Leader = nil
	if playerID != r.CurrentDrawerID && r.Phase.InRound() {
		r.CurrentWord = ""
		r.WordOptions = nil
	}
	return r
}
