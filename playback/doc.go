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

// Package playback coordinates frame-accurate seeking over a recorded
// simulation stream. A session maintains one full snapshot of machine state,
// taken at the first eligible frame, and delta-compressed snapshots at a
// fixed interval after that. Seek requests are translated into "load the
// nearest snapshot at or before the target, then fast-forward" plans.
//
// Two background workers run for the lifetime of a session. The savestate
// worker produces snapshots opportunistically as the simulation advances.
// The seek worker services jump and seek requests, pausing the simulation
// and restoring state as needed. The foreground simulation step participates
// through the OnFrameAdvanced() function, which must be called once per
// simulated frame.
//
// The engine never advances the simulation itself and never looks inside a
// snapshot payload. See the emulation package for the collaborator contract.
package playback
