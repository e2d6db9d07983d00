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

package diff

import (
	"sync"
)

// Job is the future-valued handle to a submitted encode. It is resolved
// exactly once.
type Job struct {
	done  chan struct{}
	delta []byte
}

// Wait blocks until the job has resolved and returns the encoded delta.
func (j *Job) Wait() []byte {
	<-j.done
	return j.delta
}

// Resolved indicates whether a call to Wait() would return without blocking.
func (j *Job) Resolved() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Scheduler submits encode jobs asynchronously and bounds the number of jobs
// encoding at any one time through the Throttle() gate.
type Scheduler struct {
	crit sync.Mutex
	gate *sync.Cond

	inFlight    int
	maxInFlight int
	closed      bool

	// replaceable for testing. Encode by default
	encode func(baseline []byte, candidate []byte) []byte
}

// NewScheduler is the preferred method of initialisation for the Scheduler
// type. maxInFlight is the number of in-flight jobs above which Throttle()
// blocks.
func NewScheduler(maxInFlight int) *Scheduler {
	s := &Scheduler{
		maxInFlight: maxInFlight,
		encode:      Encode,
	}
	s.gate = sync.NewCond(&s.crit)
	return s
}

// Submit starts asynchronous encoding of the candidate against the baseline
// and returns immediately. The candidate buffer is copied so the caller can
// reuse it; the baseline must not be written to while any job is in flight.
func (s *Scheduler) Submit(baseline []byte, candidate []byte) *Job {
	c := make([]byte, len(candidate))
	copy(c, candidate)

	j := &Job{done: make(chan struct{})}

	s.crit.Lock()
	s.inFlight++
	s.crit.Unlock()

	go func() {
		j.delta = s.encode(baseline, c)

		// the in-flight count must drop before the job reads as resolved
		s.crit.Lock()
		s.inFlight--
		s.gate.Signal()
		s.crit.Unlock()

		close(j.done)
	}()

	return j
}

// InFlight returns the number of jobs currently encoding.
func (s *Scheduler) InFlight() int {
	s.crit.Lock()
	defer s.crit.Unlock()
	return s.inFlight
}

// Throttle blocks the caller while the in-flight count is above the
// scheduler's maximum. It returns immediately on a closed scheduler.
func (s *Scheduler) Throttle() {
	s.crit.Lock()
	defer s.crit.Unlock()
	for !s.closed && s.inFlight > s.maxInFlight {
		s.gate.Wait()
	}
}

// Close wakes every Throttle() waiter and turns future calls into no-ops.
// In-flight jobs still resolve but no new work should be submitted.
func (s *Scheduler) Close() {
	s.crit.Lock()
	defer s.crit.Unlock()
	s.closed = true
	s.gate.Broadcast()
}
