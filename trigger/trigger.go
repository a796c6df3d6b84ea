// still-capture - trigger driven still image capture for embedded cameras
//  Copyright (C) 2020, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package trigger provides the non-blocking signal sources which
// request a switch to still capture: elapsed time, a keypress, a GPIO
// shutter button and a manual request over d-bus.
package trigger

// Trigger is a single capture request source. Fired must not block;
// it is polled once per received preview frame.
type Trigger interface {
	Fired() bool
}

type closer interface {
	Close() error
}

// NewSet combines triggers. Any one firing is sufficient and the
// specific cause is not recorded.
func NewSet(triggers ...Trigger) *Set {
	return &Set{triggers: triggers}
}

type Set struct {
	triggers []Trigger
}

func (s *Set) Add(t Trigger) {
	s.triggers = append(s.triggers, t)
}

// Fired polls every trigger, even after one has fired, so that
// consuming triggers (keyboard, manual requests) are drained each
// iteration.
func (s *Set) Fired() bool {
	fired := false
	for _, t := range s.triggers {
		if t.Fired() {
			fired = true
		}
	}
	return fired
}

// Close releases any triggers holding process-wide resources. It is
// safe to call once regardless of how many captures occurred.
func (s *Set) Close() {
	for _, t := range s.triggers {
		if c, ok := t.(closer); ok {
			c.Close()
		}
	}
}
