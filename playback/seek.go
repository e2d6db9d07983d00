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
	"tapedeck/diff"
	"tapedeck/emulation"
	"tapedeck/govern"
	"tapedeck/logger"
)

// seekLoop is the body of the seek worker. Idle until a seek is requested by
// the jump flags or an externally set target frame.
func (s *Status) seekLoop(gen int) {
	logger.Log("playback", "entering seek goroutine")

	s.crit.Lock()
	for s.live(gen) {
		if s.active && (s.jumpBack || s.jumpForward || s.target != NoTarget) {
			s.seek(gen)
		}

		s.crit.Unlock()
		time.Sleep(s.conf.PollInterval)
		s.crit.Lock()
	}
	s.crit.Unlock()

	logger.Log("playback", "exiting seek goroutine")
}

// seek performs one seek cycle: pause the simulation, restore the nearest
// usable snapshot at or before the target, fast-forward across any remaining
// gap and return the simulation to its pre-seek run state. crit must be held;
// it is released around collaborator calls and the fast-forward wait.
func (s *Status) seek(gen int) {
	// a queue-scanning source narrows its playback window around the target
	if s.source.Mode() == emulation.ModeQueue {
		s.narrowWindow()
	}

	// remember whether the simulation was already paused before forcing the
	// pause for the duration of the seek
	s.crit.Unlock()
	wasPaused := s.machine.State() == govern.Paused
	s.machine.SetState(govern.Paused)
	s.crit.Lock()

	if !s.live(gen) {
		return
	}

	// resolve relative jumps into a concrete target
	if s.jumpForward {
		s.target = s.current + s.conf.JumpInterval
	}
	if s.jumpBack {
		s.target = s.current - s.conf.JumpInterval
	}

	s.target = clampFrame(s.target, s.conf.FirstSaveFrame, s.latest)
	closest := closestGridFrame(s.target, s.conf.FirstSaveFrame, s.conf.SaveInterval)

	logger.Logf("playback", "seeking to frame %d (nearest snapshot %d)", s.target, closest)

	// a state load is required on a true rewind, or when the nearest grid
	// point is ahead of the current frame. otherwise the simulation is
	// already at or past the nearest usable snapshot and can fast-forward
	// in place
	if s.target < s.current || closest > s.current {
		if closest <= s.conf.FirstSaveFrame {
			s.restore(s.baseline, s.conf.FirstSaveFrame, gen)
		} else if job, ok := s.store.get(closest); ok {
			baseline := s.baseline

			s.crit.Unlock()
			state, err := diff.Decode(baseline, job.Wait())
			s.crit.Lock()

			if !s.live(gen) {
				return
			}
			if err != nil {
				// a corrupt diff means there is no safe continuation
				s.abort(curated.Errorf("playback: %v", err))
				return
			}
			s.restore(state, closest, gen)
		}
		// no entry at the grid point yet: proceed without loading. the gap
		// is closed by fast-forward instead
	}

	if s.live(gen) && s.sessionErr == nil && s.target != closest && s.target != s.latest {
		s.hardFastForward(gen)
	}

	// a later session owns the flags and the machine now. an ended session
	// still gets its run state and flags put back
	if s.gen != gen {
		return
	}

	// return the simulation to its pre-seek run state
	if !wasPaused {
		s.crit.Unlock()
		s.machine.SetState(govern.Running)
		s.crit.Lock()
	}

	s.jumpBack = false
	s.jumpForward = false
	s.target = NoTarget
}

// restore loads a full machine state and moves the displayed cursor to the
// frame the state was snapshotted at. crit must be held; it is released
// around the load.
func (s *Status) restore(state []byte, frame int, gen int) {
	s.crit.Unlock()
	err := s.snapshot.LoadState(state)
	s.crit.Lock()

	if !s.live(gen) {
		return
	}
	if err != nil {
		s.abort(curated.Errorf("playback: restore: %v", err))
		return
	}

	s.current = frame
}

// hardFastForward resumes the simulation at the forced-speed multiplier and
// blocks until the foreground step reports the target frame reached. crit
// must be held.
func (s *Status) hardFastForward(gen int) {
	s.hardFFW = true

	s.crit.Unlock()
	s.settings.SetSpeedOverride(s.conf.FastForwardSpeed, true)
	s.machine.SetState(govern.Running)
	s.crit.Lock()

	// woken by the foreground step when the target frame is reached, or by
	// session teardown. never trust a single wake
	for s.live(gen) && s.current < s.target {
		s.targetReached.Wait()
	}

	// the override this worker engaged is always disengaged but a stale
	// worker must not pause a machine that a newer session now owns
	owned := s.gen == gen

	s.crit.Unlock()
	if owned {
		s.machine.SetState(govern.Paused)
	}
	s.settings.SetSpeedOverride(1.0, false)
	s.crit.Lock()

	if s.gen == gen {
		s.hardFFW = false
	}
}

// narrowWindow narrows the replay source's playback window around the seek
// target. Only meaningful for queue-scanning sources and only when the
// window has already been narrowed from the whole stream. crit must be held.
func (s *Status) narrowWindow() {
	start, end := s.source.CurrentWindow()
	if start == s.conf.FirstFrame && end == NoTarget {
		return
	}

	newStart := start
	newEnd := end
	if s.target < start {
		newStart = s.target
	}
	if s.target > end {
		newEnd = NoTarget
	}

	s.source.NarrowWindow(newStart, newEnd)
}
