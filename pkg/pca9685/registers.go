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

const (
	// Address is the fixed 7-bit bus address of the chip.
	Address = 0x40

	// ChannelCount is the number of independent PWM outputs.
	ChannelCount = 16
	// MaxCount is the largest on/off tick value within a period.
	MaxCount = 4095
	// TicksPerPeriod is the number of ticks in one PWM period.
	TicksPerPeriod = 4096
	// OscillatorFrequency of the internal clock in Hz.
	OscillatorFrequency = 25000000.0
	// MinPrescale is the lowest prescale value the hardware accepts.
	MinPrescale = 0x03
	// MaxPrescale is the highest value of the 8-bit prescale register.
	MaxPrescale = 0xFF
)

// Registers
const (
	RegMode1      = 0x00
	RegMode2      = 0x01
	RegSubAdr1    = 0x02
	RegSubAdr2    = 0x03
	RegSubAdr3    = 0x04
	RegAllCallAdr = 0x05
	RegLED0OnL    = 0x06
	RegLED0OnH    = 0x07
	RegLED0OffL   = 0x08
	RegLED0OffH   = 0x09
	RegAllLEDOnL  = 0xFA
	RegAllLEDOnH  = 0xFB
	RegAllLEDOffL = 0xFC
	RegAllLEDOffH = 0xFD
	RegPrescale   = 0xFE

	// Distance between the register blocks of 2 consecutive channels
	regIncrement = 4
	// Offsets within a channel register block
	onLowRegOfs   = 0
	onHighRegOfs  = 1
	offLowRegOfs  = 2
	offHighRegOfs = 3
)

// MODE1 bits
const (
	Mode1Restart = 0x80
	Mode1AI      = 0x20 // register auto-increment
	Mode1Sleep   = 0x10
	Mode1AllCall = 0x01
)

// MODE2 bits
const (
	Mode2Invrt  = 0x10
	Mode2OutDrv = 0x04
)

const (
	// LEDFull is the full on (ON_H) / full off (OFF_H) bit.
	LEDFull = 0x10
	// SoftwareReset is the command byte for a software reset
	// through the general call address.
	SoftwareReset = 0x06
)

// channelBase returns the first (ON_L) register of the given channel.
func channelBase(channel int) (uint8, error) {
	if channel < 0 || channel >= ChannelCount {
		return 0, invalidArgument("channel must be in 0..%d range, got %d", ChannelCount-1, channel)
	}
	return uint8(RegLED0OnL + channel*regIncrement), nil
}
