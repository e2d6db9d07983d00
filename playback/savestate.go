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
	"time"

	"tapedeck/curated"
	"tapedeck/logger"
)

// savestateLoop is the body of the savestate worker. It runs opportunistically
// while the simulation advances, producing the baseline snapshot at the first
// save frame and a diff against the baseline at every later grid point.
func (s *Status) savestateLoop(gen int) {
	logger.Log("playback", "entering savestate goroutine")

	s.crit.Lock()
	for s.live(gen) {
		// wait to hit one of the save intervals. possible while rewinding
		// that we hit this wait again
		for s.live(gen) && (s.current == unsetFrame ||
			emod(s.current-s.conf.FirstSaveFrame, s.conf.SaveInterval) != 0) {
			s.intervalReached.Wait()
		}

		if !s.live(gen) {
			break
		}

		s.checkpoint(s.current, gen)

		// bounded poll between checkpoints. checkpoint() is idempotent so
		// waking again on a revisited grid point is harmless
		s.crit.Unlock()
		time.Sleep(s.conf.PollInterval)
		s.crit.Lock()
	}
	s.crit.Unlock()

	logger.Log("playback", "exiting savestate goroutine")
}

// checkpoint records a snapshot for the specified frame: the baseline if this
// is the first save frame, a diff against the baseline otherwise. A frame
// already recorded is never resubmitted, and a wakeup carrying a stale
// session generation does nothing. crit must be held; it is released around
// the slow snapshot call.
func (s *Status) checkpoint(frame int, gen int) {
	if !s.live(gen) {
		return
	}

	if frame == s.conf.FirstSaveFrame {
		if s.active {
			return
		}

		s.crit.Unlock()
		state, err := s.snapshot.SaveState()
		s.crit.Lock()

		if !s.live(gen) {
			return
		}
		if err != nil {
			s.abort(curated.Errorf("playback: baseline snapshot: %v", err))
			return
		}

		// the baseline must be in place before active is observable. both
		// writes happen under crit
		s.baseline = state
		s.active = true
		s.settings.HideCursor(false)

		logger.Logf("playback", "baseline snapshot at frame %d", frame)
		return
	}

	// a diff is never submitted before the baseline exists
	if !s.active || s.store.has(frame) {
		return
	}

	s.crit.Unlock()
	state, err := s.snapshot.SaveState()
	s.crit.Lock()

	// re-check after reacquiring crit. the session may have ended or another
	// wakeup may have recorded this frame while the snapshot was being taken
	if !s.live(gen) || s.store.has(frame) {
		return
	}
	if err != nil {
		s.abort(curated.Errorf("playback: snapshot at frame %d: %v", frame, err))
		return
	}

	s.candidate = state
	s.store.add(frame, s.sched.Submit(s.baseline, s.candidate))

	logger.Logf("playback", "diff submitted for frame %d", frame)
}
