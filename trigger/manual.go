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

import "sync/atomic"

// ManualTrigger fires once for each Request call. Request may be made
// from another goroutine (the d-bus service); the request is consumed
// by the poll that observes it.
type ManualTrigger struct {
	requested int32
}

func (t *ManualTrigger) Request() {
	atomic.StoreInt32(&t.requested, 1)
}

func (t *ManualTrigger) Fired() bool {
	return atomic.SwapInt32(&t.requested, 0) == 1
}
