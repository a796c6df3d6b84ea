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
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// NewButtonTrigger acquires the named GPIO pin as an input with a
// pull-down, so the trigger fires while the shutter button holds the
// line high. The pin is held for the life of the trigger and released
// by Close. An error here is expected on hardware without the line;
// callers should degrade to running without a button.
func NewButtonTrigger(pinName string) (*ButtonTrigger, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("GPIO pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configuring GPIO pin %q: %v", pinName, err)
	}
	return &ButtonTrigger{pin: pin}, nil
}

type ButtonTrigger struct {
	pin gpio.PinIO
}

func (t *ButtonTrigger) Fired() bool {
	return t.pin.Read() == gpio.High
}

func (t *ButtonTrigger) Close() error {
	return t.pin.Halt()
}
