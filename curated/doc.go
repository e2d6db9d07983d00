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

// Package curated is a helper package for the plain Go language error type.
//
// Errors are created with the Errorf() function. Like Errorf() in the fmt
// package it takes a formatting pattern and placeholder values, but the
// pattern is kept alongside the formatted message. The Is() function checks
// whether an error was created with a specific pattern and the Has() function
// checks whether the pattern occurs anywhere in the error chain.
//
//	err := curated.Errorf("playback: %v", underlying)
//
//	if curated.Is(err, "playback: %v") {
//		...
//	}
package curated
