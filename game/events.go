package game

import (
	"fmt"
	"time"
)

// Outbound event payloads. Kind discriminates game-state-update deltas on
// the client side.

type DrawUpdate struct {
	Kind     string       `json:"kind"`
	Commands []DrawAction `json:"commands"`
}

type ChatUpdate struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name,omitempty"`
	Text     string `json:"text"`
	System   bool   `json:"system,omitempty"`
}

type ScoreUpdate struct {
	Kind     string         `json:"kind"`
	PlayerID string         `json:"playerId"`
	Points   int            `json:"points"`
	Scores   map[string]int `json:"scores"`
}

type RoundUpdate struct {
	Kind        string         `json:"kind"`
	Phase       string         `json:"phase"`
	Round       int            `json:"round,omitempty"`
	Drawer      string         `json:"drawer,omitempty"`
	DrawerName  string         `json:"drawerName,omitempty"`
	WordHint    string         `json:"wordHint,omitempty"`
	Word        string         `json:"word,omitempty"` // revealed only in results
	RoundEndsAt time.Time      `json:"roundEndsAt,omitempty"`
	Scores      map[string]int `json:"scores,omitempty"`
}

type WordReveal struct {
	Kind string `json:"kind"`
	Word string `json:"word"`
}

// SettingsError marks settings rejected by an engine's bounds check.
type SettingsError struct {
	Message string
}

func (e *SettingsError) Error() string { return e.Message }

func errInvalidSettings(format string, args ...interface{}) error {
	return &SettingsError{Message: fmt.Sprintf(format, args...)}
}
