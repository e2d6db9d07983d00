// This file is part of Tapedeck.
//
// Tapedeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapedeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapedeck.  If not, see <https://www.gnu.org/licenses/>.

// Package emulation defines the minimal abstractions of the playback engine's
// collaborators. The engine never advances the simulation itself; it pauses
// and resumes the machine, saves and restores machine state through the
// Snapshotter, and narrows the replay source's playback window. The concrete
// implementations live with the machine, not with the engine.
//
// Implementations must not call back into the playback engine synchronously
// from these functions. The engine may hold its own critical section when
// calling them.
package emulation

import (
	"tapedeck/govern"
)

// Machine is a minimal abstraction of the simulation machine. The engine uses
// it to read and control the run state of the simulation. There is no frame
// accessor: frame numbers reach the engine by push, through the per-frame
// foreground hook, so a pull accessor would only be a second source of truth.
type Machine interface {
	// State returns the current run state of the machine.
	State() govern.State

	// SetState requests the run state be changed. SetState(govern.Running)
	// must cause the foreground loop to resume calling OnFrameAdvanced().
	SetState(state govern.State)
}

// Snapshotter is a minimal abstraction of the byte-level state mechanism.
// Snapshot payloads are opaque to the engine.
type Snapshotter interface {
	SaveState() ([]byte, error)
	LoadState(state []byte) error
}

// Mode describes how the replay source is being fed.
type Mode int

// List of replay source modes. ModeQueue indicates the source is scanning a
// queue of recordings, in which case the playback window is narrowed around a
// seek target.
const (
	ModeDirect Mode = iota
	ModeQueue
)

// ReplaySource is a minimal abstraction of the recorded-stream source. The
// engine only ever reads the current playback window and, for queue-mode
// sources, narrows it around a seek target.
type ReplaySource interface {
	// CurrentWindow returns the start and end frame of the playback window.
	CurrentWindow() (start int, end int)

	// NarrowWindow replaces the playback window.
	NarrowWindow(start int, end int)

	// Mode returns how the source is being fed.
	Mode() Mode
}

// Settings is a minimal abstraction of the global settings surface. Only two
// toggles are consumed: cursor visibility and the simulation speed override.
type Settings interface {
	// HideCursor toggles visibility of the playback cursor.
	HideCursor(hide bool)

	// SetSpeedOverride engages or disengages the simulation speed override.
	// The multiplier is relative to normal speed.
	SetSpeedOverride(multiplier float32, enabled bool)
}
