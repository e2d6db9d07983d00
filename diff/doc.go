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

// Package diff produces compact deltas between a baseline machine-state
// buffer and a later candidate buffer. Encode() and Decode() are stateless
// and safe to run concurrently for independent buffer pairs; the baseline is
// only ever read.
//
// The Scheduler type runs encoding off the foreground path. Submitted jobs
// return a future-valued handle immediately and the number of jobs encoding
// at any one time is observable through the Throttle() gate, which bounds the
// memory held by outstanding buffer copies.
package diff
