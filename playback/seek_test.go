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
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"tapedeck/emulation"
	"tapedeck/govern"
	"tapedeck/test"
)

// simulator implements emulation.Machine and emulation.Snapshotter. The
// machine state is nothing more than the current frame number, padded out so
// that diffs have something to chew on.
type simulator struct {
	crit     sync.Mutex
	state    govern.State
	frame    int
	saves    int
	loads    []int
	pauses   int
	failSave bool
}

func newSimulator() *simulator {
	return &simulator{
		state: govern.Running,
		frame: 0,
	}
}

func (sim *simulator) CurrentFrame() int {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	return sim.frame
}

func (sim *simulator) State() govern.State {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	return sim.state
}

func (sim *simulator) SetState(state govern.State) {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	if state == govern.Paused && sim.state != govern.Paused {
		sim.pauses++
	}
	sim.state = state
}

func (sim *simulator) SaveState() ([]byte, error) {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	if sim.failSave {
		return nil, errors.New("save mechanism failure")
	}
	sim.saves++
	state := make([]byte, 64)
	binary.BigEndian.PutUint64(state, uint64(int64(sim.frame)))
	return state, nil
}

func (sim *simulator) LoadState(state []byte) error {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	frame := int(int64(binary.BigEndian.Uint64(state)))
	sim.frame = frame
	sim.loads = append(sim.loads, frame)
	return nil
}

func (sim *simulator) setFrame(frame int) {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	sim.frame = frame
}

// step advances the simulated machine by one frame and returns the frame
// reached.
func (sim *simulator) step() int {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	sim.frame++
	return sim.frame
}

func (sim *simulator) saveCount() int {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	return sim.saves
}

func (sim *simulator) loadedFrames() []int {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	return append([]int(nil), sim.loads...)
}

func (sim *simulator) pauseCount() int {
	sim.crit.Lock()
	defer sim.crit.Unlock()
	return sim.pauses
}

// source implements emulation.ReplaySource.
type source struct {
	crit     sync.Mutex
	mode     emulation.Mode
	start    int
	end      int
	narrowed [][2]int
}

func newSource() *source {
	return &source{
		mode:  emulation.ModeDirect,
		start: FirstFrame,
		end:   NoTarget,
	}
}

func (src *source) CurrentWindow() (int, int) {
	src.crit.Lock()
	defer src.crit.Unlock()
	return src.start, src.end
}

func (src *source) NarrowWindow(start int, end int) {
	src.crit.Lock()
	defer src.crit.Unlock()
	src.start = start
	src.end = end
	src.narrowed = append(src.narrowed, [2]int{start, end})
}

func (src *source) Mode() emulation.Mode {
	src.crit.Lock()
	defer src.crit.Unlock()
	return src.mode
}

// settings implements emulation.Settings.
type settings struct {
	crit        sync.Mutex
	hidden      bool
	speed       float32
	override    bool
	sawOverride bool
}

func newSettings() *settings {
	return &settings{
		hidden: true,
		speed:  1.0,
	}
}

func (set *settings) HideCursor(hide bool) {
	set.crit.Lock()
	defer set.crit.Unlock()
	set.hidden = hide
}

func (set *settings) SetSpeedOverride(multiplier float32, enabled bool) {
	set.crit.Lock()
	defer set.crit.Unlock()
	set.speed = multiplier
	set.override = enabled
	if enabled {
		set.sawOverride = true
	}
}

func (set *settings) cursorHidden() bool {
	set.crit.Lock()
	defer set.crit.Unlock()
	return set.hidden
}

func (set *settings) overrideEngaged() bool {
	set.crit.Lock()
	defer set.crit.Unlock()
	return set.override
}

func (set *settings) overrideSeen() bool {
	set.crit.Lock()
	defer set.crit.Unlock()
	return set.sawOverride
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

// testConfig matches the scenario constants used throughout these tests: the
// first save frame is 100 and the snapshot grid sits at 1000, 1900, ...
func testConfig() Config {
	conf := DefaultConfig()
	conf.FirstSaveFrame = 100
	conf.PollInterval = time.Millisecond
	return conf
}

// startActiveSession drives the foreground hook to the first save frame and
// waits for the savestate worker to produce the baseline.
func startActiveSession(t *testing.T, s *Status, sim *simulator) {
	t.Helper()

	s.StartSession()
	sim.setFrame(100)
	s.OnFrameAdvanced(100)
	waitFor(t, s.IsActive)
}

// driveSeek plays the part of the foreground simulation loop during a seek:
// whenever the seek worker lets the machine run, frames advance one at a
// time. Driving stops once the target frame has been delivered.
func driveSeek(t *testing.T, s *Status, sim *simulator, target int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for s.IsSeeking() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out driving seek to frame %d", target)
		}
		if sim.State() == govern.Running {
			frame := sim.step()
			s.OnFrameAdvanced(frame)
			if frame == target {
				return
			}
		} else {
			time.Sleep(100 * time.Microsecond)
		}
	}
}

func TestSeekBaselineRestore(t *testing.T) {
	sim := newSimulator()
	set := newSettings()

	s, err := NewStatus(sim, sim, newSource(), set, testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	startActiveSession(t, s, sim)

	// play through to frame 1500
	for frame := 101; frame <= 1500; frame++ {
		sim.setFrame(frame)
		s.OnFrameAdvanced(frame)
	}
	test.ExpectEquality(t, s.CurrentFrame(), 1500)
	test.ExpectEquality(t, s.LatestFrame(), 1500)

	// seek to frame 400. the nearest snapshot grid point is the first save
	// frame itself so the baseline is restored, then the remaining 300
	// frames are crossed by hard fast-forward
	s.RequestSeekTo(400)
	waitFor(t, func() bool { return sim.pauseCount() >= 1 })

	driveSeek(t, s, sim, 400)
	waitFor(t, func() bool { return !s.IsSeeking() })

	test.ExpectEquality(t, s.CurrentFrame(), 400)
	test.ExpectEquality(t, sim.CurrentFrame(), 400)

	// the baseline state was restored
	loads := sim.loadedFrames()
	test.ExpectEquality(t, len(loads), 1)
	test.ExpectEquality(t, loads[0], 100)

	// the speed override was engaged for the fast-forward and has been
	// disengaged again
	test.ExpectSuccess(t, set.overrideSeen())
	test.ExpectFailure(t, set.overrideEngaged())
	test.ExpectFailure(t, s.IsFastForwarding())

	// the machine was returned to its pre-seek run state
	waitFor(t, func() bool { return sim.State() == govern.Running })
	test.ExpectSuccess(t, sim.pauseCount() >= 1)
	test.ExpectSuccess(t, s.Err())
}

func TestSeekDiffRestore(t *testing.T) {
	sim := newSimulator()

	s, err := NewStatus(sim, sim, newSource(), newSettings(), testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	startActiveSession(t, s, sim)

	// hold at the grid point until the savestate worker has recorded it so
	// the stored diff is an exact snapshot of frame 1000
	for frame := 101; frame <= 1000; frame++ {
		sim.setFrame(frame)
		s.OnFrameAdvanced(frame)
	}
	waitFor(t, func() bool { return s.HasSnapshot(1000) })

	for frame := 1001; frame <= 1500; frame++ {
		sim.setFrame(frame)
		s.OnFrameAdvanced(frame)
	}

	// seek to frame 1100: rewind to the decoded diff at 1000, then
	// fast-forward the remaining 100 frames
	s.RequestSeekTo(1100)
	waitFor(t, func() bool { return sim.pauseCount() >= 1 })

	driveSeek(t, s, sim, 1100)
	waitFor(t, func() bool { return !s.IsSeeking() })

	test.ExpectEquality(t, s.CurrentFrame(), 1100)
	test.ExpectEquality(t, sim.CurrentFrame(), 1100)

	// the state restored was the diff-reconstructed snapshot of frame 1000
	loads := sim.loadedFrames()
	test.ExpectEquality(t, len(loads), 1)
	test.ExpectEquality(t, loads[0], 1000)

	test.ExpectSuccess(t, s.Err())
}

func TestJumpBack(t *testing.T) {
	sim := newSimulator()

	s, err := NewStatus(sim, sim, newSource(), newSettings(), testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	startActiveSession(t, s, sim)

	// hold at the grid point until its snapshot is recorded, as in the
	// diff-restore test
	for frame := 101; frame <= 1000; frame++ {
		sim.setFrame(frame)
		s.OnFrameAdvanced(frame)
	}
	waitFor(t, func() bool { return s.HasSnapshot(1000) })

	for frame := 1001; frame <= 1500; frame++ {
		sim.setFrame(frame)
		s.OnFrameAdvanced(frame)
	}

	// a jump back from frame 1500 resolves to a target of 1200, restored
	// through the snapshot at grid point 1000 and fast-forwarded from there
	s.RequestJumpBack()
	waitFor(t, func() bool { return sim.pauseCount() >= 1 })

	driveSeek(t, s, sim, 1200)
	waitFor(t, func() bool { return !s.IsSeeking() })

	test.ExpectEquality(t, s.CurrentFrame(), 1200)
	test.ExpectEquality(t, sim.CurrentFrame(), 1200)

	loads := sim.loadedFrames()
	test.ExpectEquality(t, len(loads), 1)
	test.ExpectEquality(t, loads[0], 1000)
	test.ExpectSuccess(t, s.Err())
}

func TestJumpBackClamped(t *testing.T) {
	sim := newSimulator()

	s, err := NewStatus(sim, sim, newSource(), newSettings(), testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	startActiveSession(t, s, sim)

	for frame := 101; frame <= 150; frame++ {
		sim.setFrame(frame)
		s.OnFrameAdvanced(frame)
	}

	// a jump back from frame 150 would land before the first save frame.
	// the target is clamped to the first save frame, the baseline restored,
	// and no gap is left for fast-forward to cross
	s.RequestJumpBack()
	waitFor(t, func() bool { return !s.IsSeeking() })

	test.ExpectEquality(t, s.CurrentFrame(), 100)
	test.ExpectEquality(t, sim.CurrentFrame(), 100)

	loads := sim.loadedFrames()
	test.ExpectEquality(t, len(loads), 1)
	test.ExpectEquality(t, loads[0], 100)
	test.ExpectSuccess(t, s.Err())
}

func TestSeekMissingSnapshot(t *testing.T) {
	sim := newSimulator()

	s, err := NewStatus(sim, sim, newSource(), newSettings(), testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	startActiveSession(t, s, sim)

	// the stream has arrived well past the current frame but no snapshot
	// exists at grid point 1000 yet
	s.NotifyLatestFrame(2000)

	s.RequestSeekTo(1100)
	waitFor(t, func() bool { return sim.pauseCount() >= 1 })

	driveSeek(t, s, sim, 1100)
	waitFor(t, func() bool { return !s.IsSeeking() })

	// no state was loaded. the whole gap was crossed by fast-forward from
	// the current frame
	test.ExpectEquality(t, len(sim.loadedFrames()), 0)
	test.ExpectEquality(t, s.CurrentFrame(), 1100)
	test.ExpectSuccess(t, s.Err())
}

func TestSeekNarrowsQueueWindow(t *testing.T) {
	sim := newSimulator()
	src := newSource()
	src.mode = emulation.ModeQueue
	src.start = 50
	src.end = 900

	s, err := NewStatus(sim, sim, src, newSettings(), testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	startActiveSession(t, s, sim)
	s.NotifyLatestFrame(900)

	// the requested target is below the window start. the window is
	// narrowed before the target is clamped
	s.RequestSeekTo(10)
	waitFor(t, func() bool { return !s.IsSeeking() })

	src.crit.Lock()
	narrowed := append([][2]int(nil), src.narrowed...)
	src.crit.Unlock()

	test.ExpectEquality(t, len(narrowed), 1)
	test.ExpectEquality(t, narrowed[0], [2]int{10, 900})
	test.ExpectSuccess(t, s.Err())
}

func TestTeardownDuringFastForward(t *testing.T) {
	sim := newSimulator()
	set := newSettings()

	s, err := NewStatus(sim, sim, newSource(), set, testConfig())
	test.ExpectSuccess(t, err)

	startActiveSession(t, s, sim)
	s.NotifyLatestFrame(2000)

	// nothing ever advances the simulation so the seek worker blocks in its
	// fast-forward wait
	s.RequestSeekTo(500)
	waitFor(t, s.IsFastForwarding)

	// ending the session must wake the worker rather than deadlock
	s.EndSession()
	waitFor(t, func() bool { return !s.IsFastForwarding() })
	waitFor(t, func() bool { return !set.overrideEngaged() })

	test.ExpectFailure(t, s.IsSeeking())
	test.ExpectSuccess(t, s.Err())
}

func TestSessionAbortOnSaveFailure(t *testing.T) {
	sim := newSimulator()
	sim.failSave = true

	s, err := NewStatus(sim, sim, newSource(), newSettings(), testConfig())
	test.ExpectSuccess(t, err)
	defer s.EndSession()

	s.StartSession()
	sim.setFrame(100)
	s.OnFrameAdvanced(100)

	// the baseline snapshot fails and the session is aborted. the error is
	// reported through the status query, never thrown across the goroutine
	// boundary
	waitFor(t, func() bool { return s.Err() != nil })
	test.ExpectFailure(t, s.IsActive())
}
