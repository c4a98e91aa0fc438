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
	"sync"

	"github.com/binkynet/ServoDriver/pkg/bridge"
)

// VirtualDevice emulates the register bank of a PCA9685 in memory.
// It is used when no hardware is available.
type VirtualDevice struct {
	mutex  sync.Mutex
	regs   [256]uint8
	closed bool
}

var (
	_ bridge.I2CDevice   = &VirtualDevice{}
	_ bridge.BlockWriter = &VirtualDevice{}
)

// NewVirtualDevice returns an emulated chip in its power-on state.
func NewVirtualDevice() *VirtualDevice {
	d := &VirtualDevice{}
	d.reset()
	return d
}

// OpenVirtualDevice implements bridge.OpenFunc for an emulated chip.
func OpenVirtualDevice(location string, address uint8) (bridge.I2CDevice, error) {
	if address != Address {
		return nil, maskAny(invalidArgument("no device at address 0x%02X", address))
	}
	return NewVirtualDevice(), nil
}

// reset the registers to their power-on values.
func (d *VirtualDevice) reset() {
	d.regs = [256]uint8{}
	d.regs[RegMode1] = Mode1Sleep | Mode1AllCall
	d.regs[RegMode2] = Mode2OutDrv
	d.regs[RegSubAdr1] = 0xE2
	d.regs[RegSubAdr2] = 0xE4
	d.regs[RegSubAdr3] = 0xE8
	d.regs[RegAllCallAdr] = 0xE0
	d.regs[RegPrescale] = 0x1E
	for ch := 0; ch < ChannelCount; ch++ {
		d.regs[RegLED0OnL+ch*regIncrement+offHighRegOfs] = LEDFull
	}
}

// Register returns the current value of the given register,
// without read side effects.
func (d *VirtualDevice) Register(reg uint8) uint8 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.regs[reg]
}

// ReadByteReg reads a byte from given register
func (d *VirtualDevice) ReadByteReg(reg uint8) (uint8, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return 0, maskAny(ClosedError)
	}
	if reg >= RegAllLEDOnL && reg <= RegAllLEDOffH {
		// ALL_LED registers always read as zero
		return 0, nil
	}
	return d.regs[reg], nil
}

// WriteByteReg writes a byte to given register
func (d *VirtualDevice) WriteByteReg(reg uint8, val uint8) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return maskAny(ClosedError)
	}
	d.write(reg, val)
	return nil
}

// WriteBlockReg writes consecutive registers when auto-increment is enabled.
// Without auto-increment all bytes land in the first register.
func (d *VirtualDevice) WriteBlockReg(reg uint8, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return maskAny(ClosedError)
	}
	autoIncrement := d.regs[RegMode1]&Mode1AI != 0
	for _, val := range data {
		d.write(reg, val)
		if autoIncrement {
			reg++
		}
	}
	return nil
}

// Close the device.
func (d *VirtualDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.closed = true
	return nil
}

// write a register, applying the side effects of the chip.
func (d *VirtualDevice) write(reg, val uint8) {
	switch {
	case reg == RegPrescale:
		// Prescale can only be changed while the oscillator is stopped
		if d.regs[RegMode1]&Mode1Sleep == 0 {
			return
		}
	case reg == RegMode1:
		// Writing a 1 to RESTART clears it
		val &^= Mode1Restart
	case reg >= RegAllLEDOnL && reg <= RegAllLEDOffH:
		ofs := int(reg - RegAllLEDOnL)
		for ch := 0; ch < ChannelCount; ch++ {
			d.regs[RegLED0OnL+ch*regIncrement+ofs] = val
		}
		return
	}
	d.regs[reg] = val
}
