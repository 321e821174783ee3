package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/stream"
)

// Timings of the dashboard's timers.
const (
	ToastDuration  = 3 * time.Second
	SearchDebounce = 150 * time.Millisecond
)

// StateMsg reports a connection state change.
type StateMsg struct {
	State stream.State
}

// SnapshotMsg delivers a decoded snapshot. First is set for the first snapshot of a
// connection.
type SnapshotMsg struct {
	Snapshot *sensor.Snapshot
	First    bool
}

// NoticeMsg is a user-facing message shown as a toast.
type NoticeMsg struct {
	Text string
}

type toastExpiredMsg struct {
	seq int
}

type searchDebounceMsg struct {
	seq   int
	query string
}

type scrollRestoreMsg struct{}

// Bridge forwards stream client callbacks into a bubbletea program.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge creates a bridge delivering through send, usually (*tea.Program).Send.
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

func (b *Bridge) HandleState(s stream.State) {
	b.send(StateMsg{State: s})
}

func (b *Bridge) HandleSnapshot(snap *sensor.Snapshot, first bool) {
	b.send(SnapshotMsg{Snapshot: snap, First: first})
}

func (b *Bridge) HandleNotice(msg string) {
	b.send(NoticeMsg{Text: msg})
}
