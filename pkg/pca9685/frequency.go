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
	"math"
)

// Prescale returns the prescale register value for the given PWM frequency.
func Prescale(freqHz float64) (uint8, error) {
	if math.IsNaN(freqHz) || math.IsInf(freqHz, 0) || freqHz <= 0 {
		return 0, invalidArgument("frequency must be a positive number, got %v", freqHz)
	}
	prescale := math.Round(OscillatorFrequency/TicksPerPeriod/freqHz - 1)
	if prescale < MinPrescale {
		prescale = MinPrescale
	} else if prescale > MaxPrescale {
		prescale = MaxPrescale
	}
	return uint8(prescale), nil
}

// FrequencyForPrescale returns the PWM frequency that results from
// the given prescale value.
func FrequencyForPrescale(prescale uint8) float64 {
	return OscillatorFrequency / TicksPerPeriod / (float64(prescale) + 1)
}

// SetFrequency sets the PWM frequency of all channels.
// The oscillator is stopped while the prescaler is changed and restarted
// afterwards, preserving the other MODE1 settings.
func (c *Controller) SetFrequency(freqHz float64) error {
	prescale, err := Prescale(freqHz)
	if err != nil {
		return err
	}

	oldMode, err := c.readReg(RegMode1)
	if err != nil {
		return err
	}
	sleepMode := (oldMode & 0x7F) | Mode1Sleep
	if err := c.writeReg(RegMode1, sleepMode); err != nil {
		return err
	}
	if err := c.writeReg(RegPrescale, prescale); err != nil {
		return err
	}
	if err := c.writeReg(RegMode1, oldMode); err != nil {
		return err
	}
	sleep(c.config.OscillatorRestartSettle)
	if err := c.writeReg(RegMode1, oldMode|Mode1Restart|Mode1AI|Mode1AllCall); err != nil {
		return err
	}

	c.log.Debug().
		Float64("frequency", freqHz).
		Uint8("prescale", prescale).
		Uint8("mode1", oldMode).
		Msg("Frequency set")
	return nil
}

// Frequency reads back the prescale register and returns the resulting
// PWM frequency.
func (c *Controller) Frequency() (float64, error) {
	prescale, err := c.readReg(RegPrescale)
	if err != nil {
		return 0, err
	}
	return FrequencyForPrescale(prescale), nil
}
