package game

import (
	"strings"
	"unicode/utf8"
)

const (
	MinPlayers = 2

	DefaultMaxPlayers          = 8
	DefaultTotalRounds         = 3
	DefaultDrawDurationSeconds = 90

	MaxPlayersLimit   = 12
	MaxRoomNameLength = 40
	MinTotalRounds    = 1
	MaxTotalRounds    = 5
	MinDrawSeconds    = 30
	MaxDrawSeconds    = 180

	ChoosingSeconds = 30
	RoundEndSeconds = 10
)

type Settings struct {
	Name                string `json:"name"`
	MaxPlayers          int    `json:"maxPlayers"`
	TotalRounds         int    `json:"totalRounds"`
	DrawDurationSeconds int    `json:"drawDurationSeconds"`
}

// SettingsPatch carries only the settings a host wants to change.
type SettingsPatch struct {
	Name                *string `json:"name,omitempty"`
	MaxPlayers          *int    `json:"maxPlayers,omitempty"`
	TotalRounds         *int    `json:"totalRounds,omitempty"`
	DrawDurationSeconds *int    `json:"drawDurationSeconds,omitempty"`
}

func (p SettingsPatch) Empty() bool {
	return p.Name == nil && p.MaxPlayers == nil && p.TotalRounds == nil && p.DrawDurationSeconds == nil
}

func (p SettingsPatch) apply(s Settings) Settings {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.MaxPlayers != nil {
		s.MaxPlayers = *p.MaxPlayers
	}
	if p.TotalRounds != nil {
		s.TotalRounds = *p.TotalRounds
	}
	if p.DrawDurationSeconds != nil {
		s.DrawDurationSeconds = *p.DrawDurationSeconds
	}
	return s
}

// withDefaults fills zero values for a new room hosted by hostName.
func (s Settings) withDefaults(hostName string) Settings {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = hostName + "'s Room"
	}
	if s.MaxPlayers == 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	if s.TotalRounds == 0 {
		s.TotalRounds = DefaultTotalRounds
	}
	if s.DrawDurationSeconds == 0 {
		s.DrawDurationSeconds = DefaultDrawDurationSeconds
	}
	return s
}

func (s Settings) validate(playerCount int) error {
	switch {
	case s.Name == "":
		return validationf("room name is empty")
	case utf8.RuneCountInString(s.Name) > MaxRoomNameLength:
		return validationf("room name longer than %d characters", MaxRoomNameLength)
	case s.MaxPlayers < MinPlayers || s.MaxPlayers > MaxPlayersLimit:
		return validationf("maxPlayers must be between %d and %d", MinPlayers, MaxPlayersLimit)
	case s.MaxPlayers < playerCount:
		return validationf("maxPlayers below current player count %d", playerCount)
	case s.TotalRounds < MinTotalRounds || s.TotalRounds > MaxTotalRounds:
		return validationf("totalRounds must be between %d and %d", MinTotalRounds, MaxTotalRounds)
	case s.DrawDurationSeconds < MinDrawSeconds || s.DrawDurationSeconds > MaxDrawSeconds:
		return validationf("drawDurationSeconds must be between %d and %d", MinDrawSeconds, MaxDrawSeconds)
	}
	return nil
}
