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
	"math"
	"sync"
	"time"

	"tapedeck/curated"
	"tapedeck/diff"
	"tapedeck/emulation"
	"tapedeck/logger"
)

// NoTarget is the sentinel value of the target frame when no seek is pending.
const NoTarget = math.MaxInt32

// the current frame before the simulation has reported reaching any frame.
const unsetFrame = math.MinInt32

// default frame constants of the recorded stream. the stream's first frame
// differs from the first frame eligible for snapshotting.
const (
	FirstFrame     = -123
	FirstSaveFrame = -122
)

// Config collects the policy values of a playback session. DefaultConfig()
// is a good starting point.
type Config struct {
	// the first frame of the recorded stream and the first frame eligible
	// for a snapshot. FirstSaveFrame is always a member of the snapshot
	// grid: eligible frames satisfy (frame-FirstSaveFrame) % SaveInterval == 0
	FirstFrame     int
	FirstSaveFrame int

	// number of frames between snapshot grid points
	SaveInterval int

	// number of frames a relative jump moves the playback cursor by
	JumpInterval int

	// number of in-flight diff encodes above which the foreground path blocks
	MaxConcurrentDiffs int

	// speed multiplier engaged during a hard fast-forward
	FastForwardSpeed float32

	// how often the workers re-examine their wake conditions. bounded
	// polling tolerates spurious wakeups from backward jumps in the current
	// frame
	PollInterval time.Duration
}

// DefaultConfig returns the playback policy values used unless the caller
// says otherwise.
func DefaultConfig() Config {
	return Config{
		FirstFrame:         FirstFrame,
		FirstSaveFrame:     FirstSaveFrame,
		SaveInterval:       900,
		JumpInterval:       300,
		MaxConcurrentDiffs: 3,
		FastForwardSpeed:   4.0,
		PollInterval:       8 * time.Millisecond,
	}
}

func (conf Config) validate() error {
	if conf.SaveInterval <= 0 {
		return curated.Errorf("playback: configuration: save interval must be positive (%d)", conf.SaveInterval)
	}
	if conf.JumpInterval <= 0 {
		return curated.Errorf("playback: configuration: jump interval must be positive (%d)", conf.JumpInterval)
	}
	if conf.MaxConcurrentDiffs <= 0 {
		return curated.Errorf("playback: configuration: max concurrent diffs must be positive (%d)", conf.MaxConcurrentDiffs)
	}
	if conf.FastForwardSpeed <= 1.0 {
		return curated.Errorf("playback: configuration: fast-forward speed must be greater than normal speed")
	}
	if conf.PollInterval <= 0 {
		return curated.Errorf("playback: configuration: poll interval must be positive")
	}
	if conf.FirstSaveFrame < conf.FirstFrame {
		return curated.Errorf("playback: configuration: first save frame is before the first frame of the stream")
	}
	return nil
}

// Status is the shared coordination point between the foreground simulation
// step and the two background workers. One instance exists per playback
// session.
type Status struct {
	machine  emulation.Machine
	snapshot emulation.Snapshotter
	source   emulation.ReplaySource
	settings emulation.Settings

	conf  Config
	sched *diff.Scheduler

	// crit guards every field below it. the condition variables belong to
	// crit and wake signals always accompany the flag change they report, so
	// waiters re-check their predicate in a loop after waking
	crit            sync.Mutex
	intervalReached *sync.Cond
	targetReached   *sync.Cond

	// the last frame the simulation reported reaching. moved backward only
	// by the seek worker when correcting the cursor after an overshoot
	current int

	// the highest frame observed in the stream so far. the stream may still
	// be arriving
	latest int

	// the destination of an in-progress seek, or NoTarget
	target int

	// one-shot relative seek requests
	jumpBack    bool
	jumpForward bool

	// the two fast-forwarding sub-flags. hard is a forced-speed seek, soft
	// is a catch-up to the live end of the stream
	hardFFW bool
	softFFW bool

	// a baseline snapshot exists and seeking is meaningful. set after the
	// baseline is written, under crit, so the seek worker can never observe
	// active without a baseline
	active bool

	// lifecycle flag gating both worker loops
	running bool

	// incremented on every session start. workers carry the generation they
	// were started with and stand down as soon as it no longer matches, so a
	// rapid end/start restart cannot leave the previous session's workers
	// running alongside the new ones
	gen int

	// first error that invalidated the session, if any
	sessionErr error

	// the full-state snapshot taken at the first save frame. written once
	// per session by the savestate worker
	baseline []byte

	// transient buffer reused each save interval by the savestate worker
	candidate []byte

	store *store
}

// NewStatus is the preferred method of initialisation for the Status type.
// All four collaborators are required.
func NewStatus(machine emulation.Machine, snapshot emulation.Snapshotter,
	source emulation.ReplaySource, settings emulation.Settings, conf Config) (*Status, error) {

	if err := conf.validate(); err != nil {
		return nil, err
	}

	s := &Status{
		machine:  machine,
		snapshot: snapshot,
		source:   source,
		settings: settings,
		conf:     conf,
		sched:    diff.NewScheduler(conf.MaxConcurrentDiffs),
		current:  unsetFrame,
		latest:   conf.FirstFrame,
		target:   NoTarget,
		store:    newStore(),
	}
	s.intervalReached = sync.NewCond(&s.crit)
	s.targetReached = sync.NewCond(&s.crit)

	return s, nil
}

// StartSession launches the savestate and seek workers. Starting an already
// started session does nothing.
func (s *Status) StartSession() {
	s.crit.Lock()
	defer s.crit.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.sessionErr = nil
	s.sched = diff.NewScheduler(s.conf.MaxConcurrentDiffs)
	s.gen++

	go s.savestateLoop(s.gen)
	go s.seekLoop(s.gen)
}

// EndSession detaches both workers and clears the snapshot store and every
// counter and request flag. Workers are woken and abandoned rather than
// joined; in-flight diff encodes resolve into the discarded store. Safe to
// call at any time, including while a seek is blocked mid fast-forward.
func (s *Status) EndSession() {
	s.crit.Lock()

	if s.running {
		s.running = false

		// final wake on every condition a worker might be parked on
		s.intervalReached.Broadcast()
		s.targetReached.Broadcast()
	}

	s.jumpBack = false
	s.jumpForward = false
	s.hardFFW = false
	s.softFFW = false
	s.target = NoTarget
	s.active = false
	s.current = unsetFrame
	s.latest = s.conf.FirstFrame
	s.baseline = nil
	s.candidate = nil
	s.store.clear()

	sched := s.sched
	s.crit.Unlock()

	// wakes any foreground caller blocked on the backpressure gate
	sched.Close()
}

// OnFrameAdvanced must be called by the foreground simulation step exactly
// once per simulated frame, in increasing-or-equal order of frame except
// during seek-induced rewinds.
func (s *Status) OnFrameAdvanced(frame int) {
	// backpressure on snapshot production. blocks while too many diffs are
	// in flight. the scheduler is replaced on session restart so the pointer
	// must be read under crit, but the gate itself is waited on outside it
	s.crit.Lock()
	sched := s.sched
	s.crit.Unlock()
	sched.Throttle()

	s.crit.Lock()
	defer s.crit.Unlock()

	s.current = frame
	if frame > s.latest {
		s.latest = frame
	}

	// wake the savestate worker on save boundaries
	if s.running && emod(frame-s.conf.FirstSaveFrame, s.conf.SaveInterval) == 0 {
		s.intervalReached.Signal()
	}

	if s.active && s.target != NoTarget && frame >= s.target {
		// rollback reprocessing can re-advance past the target
		// non-monotonically. clamp the cursor back down so it shows up in
		// the correct place
		if s.target < s.current {
			logger.Logf("playback", "reached frame %d. target was %d", s.current, s.target)
			s.current = s.target
		}
		s.targetReached.Signal()
	}
}

// NotifyLatestFrame tells the session about the highest frame number observed
// in the stream so far. Called by the stream-ingestion collaborator; the
// latest frame only ever moves forward.
func (s *Status) NotifyLatestFrame(frame int) {
	s.crit.Lock()
	defer s.crit.Unlock()
	if frame > s.latest {
		s.latest = frame
	}
}

// RequestJumpBack requests a seek backward by the configured jump interval.
func (s *Status) RequestJumpBack() {
	s.crit.Lock()
	defer s.crit.Unlock()
	s.jumpBack = true
}

// RequestJumpForward requests a seek forward by the configured jump interval.
func (s *Status) RequestJumpForward() {
	s.crit.Lock()
	defer s.crit.Unlock()
	s.jumpForward = true
}

// RequestSeekTo requests a seek to the specified frame. The frame is clamped
// to the seekable range when the seek worker accepts the request.
func (s *Status) RequestSeekTo(frame int) {
	s.crit.Lock()
	defer s.crit.Unlock()
	s.target = frame
}

// SetCatchUp engages or disengages the soft fast-forward used to catch up
// with the live end of a stream that is still arriving.
func (s *Status) SetCatchUp(enabled bool) {
	s.crit.Lock()
	changed := s.softFFW != enabled
	s.softFFW = enabled
	speed := s.conf.FastForwardSpeed
	s.crit.Unlock()

	if changed {
		if enabled {
			s.settings.SetSpeedOverride(speed, true)
		} else {
			s.settings.SetSpeedOverride(1.0, false)
		}
	}
}

// IsSeeking returns true while a seek request is pending or in progress.
func (s *Status) IsSeeking() bool {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.target != NoTarget || s.jumpBack || s.jumpForward
}

// IsFastForwarding returns true while either fast-forwarding sub-flag is
// raised. Observable by the simulation speed override.
func (s *Status) IsFastForwarding() bool {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.hardFFW || s.softFFW
}

// IsActive returns true once the baseline snapshot has been taken and
// seeking is meaningful.
func (s *Status) IsActive() bool {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.active
}

// CurrentFrame returns the last frame the simulation reported reaching.
func (s *Status) CurrentFrame() int {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.current
}

// LatestFrame returns the highest frame observed in the stream so far.
func (s *Status) LatestFrame() int {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.latest
}

// HasSnapshot returns true if a snapshot (baseline or diff) has been recorded
// at the specified frame.
func (s *Status) HasSnapshot(frame int) bool {
	s.crit.Lock()
	defer s.crit.Unlock()
	if frame == s.conf.FirstSaveFrame {
		return s.active
	}
	return s.store.has(frame)
}

// Recorded returns the sorted list of frames with a recorded diff snapshot.
func (s *Status) Recorded() []int {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.store.frames()
}

// Err returns the error that invalidated the session, or nil. Worker errors
// are never propagated across goroutine boundaries; they end the session and
// are reported here.
func (s *Status) Err() error {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.sessionErr
}

// live indicates whether a worker started at the specified generation should
// still be doing anything. crit must be held.
func (s *Status) live(gen int) bool {
	return s.running && s.gen == gen
}

// abort invalidates the session. crit must be held.
func (s *Status) abort(err error) {
	logger.Logf("playback", "session aborted: %v", err)

	if s.sessionErr == nil {
		s.sessionErr = err
	}

	if s.running {
		s.running = false
		s.intervalReached.Broadcast()
		s.targetReached.Broadcast()
	}
	s.sched.Close()
}

// emod implements floor modulo: the result is always non-negative for a
// positive divisor, even for a negative dividend. The grid arithmetic relies
// on this for frames below the first save frame.
func emod(a int, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

// clampFrame bounds a requested target frame to the seekable range.
func clampFrame(frame int, first int, latest int) int {
	if frame < first {
		return first
	}
	if frame > latest {
		return latest
	}
	return frame
}

// closestGridFrame returns the nearest snapshot grid point at or before the
// target frame.
func closestGridFrame(target int, first int, interval int) int {
	return target - emod(target-first, interval)
}
