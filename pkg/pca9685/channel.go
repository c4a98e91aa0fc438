// Copyright 2020 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package pca9685

import (
	"github.com/binkynet/ServoDriver/pkg/bridge"
)

// SetChannelPWM sets the tick at which the output of the given channel (0..15)
// goes high (on) and low (off).
// The registers are written in order ON_L, ON_H, OFF_L, OFF_H.
func (c *Controller) SetChannelPWM(channel int, on, off uint16) error {
	base, err := channelBase(channel)
	if err != nil {
		return err
	}
	if err := checkCounts(on, off); err != nil {
		return err
	}
	return c.writeTiming(base, on, off, c.config.BlockWrites)
}

// SetAllChannelsPWM sets the on/off ticks of all channels at once,
// using the ALL_LED registers.
func (c *Controller) SetAllChannelsPWM(on, off uint16) error {
	if err := checkCounts(on, off); err != nil {
		return err
	}
	// Always byte by byte, auto-increment may not be enabled yet.
	return c.writeTiming(RegAllLEDOnL, on, off, false)
}

// GetChannelPWM reads back the on/off ticks of the given channel.
// fullOn is set when the channel is forced high, fullOff when it is forced low.
// The chip gives fullOff precedence when both are set.
func (c *Controller) GetChannelPWM(channel int) (on, off uint16, fullOn, fullOff bool, err error) {
	base, err := channelBase(channel)
	if err != nil {
		return 0, 0, false, false, err
	}
	var data [4]uint8
	for i := range data {
		if data[i], err = c.readReg(base + uint8(i)); err != nil {
			return 0, 0, false, false, err
		}
	}
	on = uint16(data[onLowRegOfs]) | uint16(data[onHighRegOfs]&0x0F)<<8
	off = uint16(data[offLowRegOfs]) | uint16(data[offHighRegOfs]&0x0F)<<8
	fullOn = data[onHighRegOfs]&LEDFull != 0
	fullOff = data[offHighRegOfs]&LEDFull != 0
	return on, off, fullOn, fullOff, nil
}

// SetChannelOff forces the output of the given channel low,
// regardless of its on/off ticks.
func (c *Controller) SetChannelOff(channel int) error {
	base, err := channelBase(channel)
	if err != nil {
		return err
	}
	return c.writeReg(base+offHighRegOfs, LEDFull)
}

// writeTiming writes the 4 timing registers starting at the given base register.
// A block transfer requires the MODE1 auto-increment bit, which SetFrequency sets.
func (c *Controller) writeTiming(base uint8, on, off uint16, allowBlock bool) error {
	data := []uint8{
		uint8(on & 0xFF),
		uint8(on >> 8),
		uint8(off & 0xFF),
		uint8(off >> 8),
	}
	if allowBlock {
		if bw, ok := c.dev.(bridge.BlockWriter); ok {
			if err := bw.WriteBlockReg(base, data); err != nil {
				return &TransportError{Op: OpWrite, Address: Address, Register: base, Err: err}
			}
			return nil
		}
	}
	for i, val := range data {
		if err := c.writeReg(base+uint8(i), val); err != nil {
			return err
		}
	}
	return nil
}

// checkCounts returns an error if on or off is outside the 0..MaxCount range.
func checkCounts(on, off uint16) error {
	if on > MaxCount {
		return invalidArgument("on must be in 0..%d range, got %d", MaxCount, on)
	}
	if off > MaxCount {
		return invalidArgument("off must be in 0..%d range, got %d", MaxCount, off)
	}
	return nil
}
