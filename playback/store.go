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

package playback

import (
	"sort"

	"tapedeck/diff"
)

// store maps a snapshot grid frame to the future-valued diff for that frame.
// Entries are created by the savestate worker and read by the seek worker.
// An entry is never replaced or removed individually; the store is only ever
// cleared wholesale on session reset.
//
// Not safe for concurrent use. Status.crit must be held.
type store struct {
	entries map[int]*diff.Job
}

func newStore() *store {
	return &store{
		entries: make(map[int]*diff.Job),
	}
}

func (st *store) has(frame int) bool {
	_, ok := st.entries[frame]
	return ok
}

func (st *store) add(frame int, job *diff.Job) {
	st.entries[frame] = job
}

func (st *store) get(frame int) (*diff.Job, bool) {
	job, ok := st.entries[frame]
	return job, ok
}

func (st *store) clear() {
	st.entries = make(map[int]*diff.Job)
}

func (st *store) frames() []int {
	frames := make([]int, 0, len(st.entries))
	for frame := range st.entries {
		frames = append(frames, frame)
	}
	sort.Ints(frames)
	return frames
}
