package room

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Top-level field paths of the room document.
const (
	FieldID                  = "id"
	FieldName                = "name"
	FieldHostID              = "hostId"
	FieldPhase               = "phase"
	FieldMaxPlayers          = "maxPlayers"
	FieldTotalRounds         = "totalRounds"
	FieldDrawDurationSeconds = "drawDurationSeconds"
	FieldCurrentDrawerID     = "currentDrawerId"
	FieldCurrentWord         = "currentWord"
	FieldWordOptions         = "wordOptions"
	FieldHints               = "hints"
	FieldTimerSeconds        = "timerSeconds"
	FieldRoundNumber         = "roundNumber"
	FieldWinners             = "winners"
	FieldLastStroke          = "lastStroke"
	FieldRotation            = "rotation"
	FieldLeader              = "leader"
	FieldCreatedAt           = "createdAt"
)

const (
	AttrID         = "id"
	AttrName       = "name"
	AttrScore      = "score"
	AttrIsHost     = "isHost"
	AttrHasGuessed = "hasGuessed"
	AttrJoinedAt   = "joinedAt"
)

var playerAttrs = []string{AttrID, AttrName, AttrScore, AttrIsHost, AttrHasGuessed, AttrJoinedAt}

const (
	playersPrefix  = "players/"
	guessedPrefix  = "guessedPlayerIds/"
	messagesPrefix = "messages/"
)

// Fields is a partial write: field path -> new value. A nil value deletes the field.
type Fields map[string]any

func PlayerField(playerID, attr string) string {
	return playersPrefix + playerID + "/" + attr
}

func GuessedField(playerID string) string {
	return guessedPrefix + playerID
}

func MessageField(messageID string) string {
	return messagesPrefix + messageID
}

// SplitPlayerField parses "players/<id>/<attr>".
func SplitPlayerField(field string) (playerID, attr string, ok bool) {
	rest, found := strings.CutPrefix(field, playersPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

func IsMessageField(field string) bool {
	return strings.HasPrefix(field, messagesPrefix)
}

func PlayerFields(p Player) Fields {
	return Fields{
		PlayerField(p.ID, AttrID):         p.ID,
		PlayerField(p.ID, AttrName):       p.Name,
		PlayerField(p.ID, AttrScore):      p.Score,
		PlayerField(p.ID, AttrIsHost):     p.IsHost,
		PlayerField(p.ID, AttrHasGuessed): p.HasGuessed,
		PlayerField(p.ID, AttrJoinedAt):   p.JoinedAt,
	}
}

// RemovePlayerFields deletes the player's attributes. The guess claim stays
// until the round is reset.
func RemovePlayerFields(playerID string) Fields {
	f := Fields{}
	for _, a := range playerAttrs {
		f[PlayerField(playerID, a)] = nil
	}
	return f
}

// Merge copies other into f and returns f.
func (f Fields) Merge(other Fields) Fields {
	for k, v := range other {
		f[k] = v
	}
	return f
}

// Keys returns the field paths in lexical order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DocumentFields flattens a whole room (without messages) for creation.
func DocumentFields(r Room) Fields {
	f := Fields{
		FieldID:                  r.ID,
		FieldName:                r.Name,
		FieldHostID:              r.HostID,
		FieldPhase:               r.Phase,
		FieldMaxPlayers:          r.MaxPlayers,
		FieldTotalRounds:         r.TotalRounds,
		FieldDrawDurationSeconds: r.DrawDurationSeconds,
		FieldTimerSeconds:        r.TimerSeconds,
		FieldRoundNumber:         r.RoundNumber,
		FieldCreatedAt:           r.CreatedAt,
	}
	if r.CurrentDrawerID != "" {
		f[FieldCurrentDrawerID] = r.CurrentDrawerID
	}
	if r.CurrentWord != "" {
		f[FieldCurrentWord] = r.CurrentWord
	}
	if len(r.WordOptions) > 0 {
		f[FieldWordOptions] = r.WordOptions
	}
	if len(r.Hints) > 0 {
		f[FieldHints] = r.Hints
	}
	if len(r.Winners) > 0 {
		f[FieldWinners] = r.Winners
	}
	if len(r.Rotation) > 0 {
		f[FieldRotation] = r.Rotation
	}
	if r.LastStroke != nil {
		f[FieldLastStroke] = r.LastStroke
	}
	if r.Leader != nil {
		f[FieldLeader] = r.Leader
	}
	for id := range r.GuessedPlayerIDs {
		f[GuessedField(id)] = true
	}
	for _, p := range r.Players {
		f.Merge(PlayerFields(p))
	}
	return f
}

// encodeFields splits a write into JSON-encoded sets and deletions.
func encodeFields(f Fields) (map[string]string, []string, error) {
	set := make(map[string]string, len(f))
	var del []string
	for _, k := range f.Keys() {
		v := f[k]
		if v == nil {
			del = append(del, k)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s: %w", k, err)
		}
		set[k] = string(b)
	}
	return set, del, nil
}

// decodeRoom rebuilds a room from its stored field map.
func decodeRoom(raw map[string]string) (Room, error) {
	r := Room{
		GuessedPlayerIDs: map[string]bool{},
		GuessClaims:      map[string]bool{},
		Players:          map[string]Player{},
	}
	players := map[string]map[string]string{}

	for k, v := range raw {
		if id, attr, ok := SplitPlayerField(k); ok {
			if players[id] == nil {
				players[id] = map[string]string{}
			}
			players[id][attr] = v
			continue
		}
		if id, ok := strings.CutPrefix(k, guessedPrefix); ok {
			var b bool
			if err := json.Unmarshal([]byte(v), &b); err != nil {
				return Room{}, fmt.Errorf("decode %s: %w", k, err)
			}
			if b {
				r.GuessedPlayerIDs[id] = true
				r.GuessClaims[id] = true
			}
			continue
		}

		var dst any
		switch k {
		case FieldID:
			dst = &r.ID
		case FieldName:
			dst = &r.Name
		case FieldHostID:
			dst = &r.HostID
		case FieldPhase:
			dst = &r.Phase
		case FieldMaxPlayers:
			dst = &r.MaxPlayers
		case FieldTotalRounds:
			dst = &r.TotalRounds
		case FieldDrawDurationSeconds:
			dst = &r.DrawDurationSeconds
		case FieldCurrentDrawerID:
			dst = &r.CurrentDrawerID
		case FieldCurrentWord:
			dst = &r.CurrentWord
		case FieldWordOptions:
			dst = &r.WordOptions
		case FieldHints:
			dst = &r.Hints
		case FieldTimerSeconds:
			dst = &r.TimerSeconds
		case FieldRoundNumber:
			dst = &r.RoundNumber
		case FieldWinners:
			dst = &r.Winners
		case FieldLastStroke:
			dst = &r.LastStroke
		case FieldRotation:
			dst = &r.Rotation
		case FieldLeader:
			dst = &r.Leader
		case FieldCreatedAt:
			dst = &r.CreatedAt
		default:
			continue
		}
		if err := json.Unmarshal([]byte(v), dst); err != nil {
			return Room{}, fmt.Errorf("decode %s: %w", k, err)
		}
	}

	for id, attrs := range players {
		// a stray increment on a removed player leaves a score without an id
		if _, ok := attrs[AttrID]; !ok {
			continue
		}
		var p Player
		for attr, v := range attrs {
			var dst any
			switch attr {
			case AttrID:
				dst = &p.ID
			case AttrName:
				dst = &p.Name
			case AttrScore:
				dst = &p.Score
			case AttrIsHost:
				dst = &p.IsHost
			case AttrHasGuessed:
				dst = &p.HasGuessed
			case AttrJoinedAt:
				dst = &p.JoinedAt
			default:
				continue
			}
			if err := json.Unmarshal([]byte(v), dst); err != nil {
				return Room{}, fmt.Errorf("decode player %s/%s: %w", id, attr, err)
			}
		}
		r.Players[id] = p
	}

	for id := range r.GuessedPlayerIDs {
		if _, ok := r.Players[id]; !ok {
			delete(r.GuessedPlayerIDs, id)
		}
	}
	return r, nil
}
