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

package trigger

import (
	"time"

	"github.com/TheCacophonyProject/window"
)

// NewTimeTrigger returns a trigger which fires once the given duration
// has passed since creation. A zero timeout disables it permanently.
// If w is non-nil the trigger only fires while the window is active.
func NewTimeTrigger(timeout time.Duration, w *window.Window) *TimeTrigger {
	return &TimeTrigger{
		timeout: timeout,
		window:  w,
		now:     time.Now,
		start:   time.Now(),
	}
}

// TimeTrigger fires when the configured duration has elapsed. It is a
// pure function of the clock; it has no state to consume so it keeps
// firing once elapsed.
type TimeTrigger struct {
	timeout time.Duration
	window  *window.Window
	now     func() time.Time
	start   time.Time
}

func (t *TimeTrigger) Fired() bool {
	if t.timeout == 0 {
		return false
	}
	if t.window != nil && !t.window.Active() {
		return false
	}
	return t.now().Sub(t.start) >= t.timeout
}
