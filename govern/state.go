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

package govern

// State indicates the machine's run state.
type State int

// List of possible run states.
//
// MachineStart is the default state and should never be entered once the
// machine has begun.
//
// Values are ordered so that order comparisons are meaningful. For example,
// Running is "greater than" Paused.
const (
	MachineStart State = iota
	Initialising
	Paused
	Seeking
	Running
	Ending
)

func (s State) String() string {
	switch s {
	case MachineStart:
		return "MachineStart"
	case Initialising:
		return "Initialising"
	case Paused:
		return "Paused"
	case Seeking:
		return "Seeking"
	case Running:
		return "Running"
	case Ending:
		return "Ending"
	}

	return ""
}
