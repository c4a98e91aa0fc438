// Copyright 2024 Ewout Prangsma
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPulseToTicks(t *testing.T) {
	ticks, err := PulseToTicks(1500)
	require.NoError(t, err)
	assert.Equal(t, uint16(307), ticks)

	ticks, err = PulseToTicks(0)
	require.NoError(t, err)
	assert.Zero(t, ticks)

	for _, pulse := range []float64{-1, math.NaN(), 20000} {
		_, err := PulseToTicks(pulse)
		assert.True(t, IsInvalidArgument(err), "pulse=%v", pulse)
	}
}

func TestSetPulseMicroseconds(t *testing.T) {
	dev := newFakeDevice()
	c := newTestController(t, dev)

	require.NoError(t, c.SetPulseMicroseconds(0, 1500))
	assert.Equal(t, []regOp{
		{write: true, reg: RegLED0OnL, val: 0},
		{write: true, reg: RegLED0OnH, val: 0},
		{write: true, reg: RegLED0OffL, val: 307 & 0xFF},
		{write: true, reg: RegLED0OffH, val: 307 >> 8},
	}, dev.ops)
}

func TestAngleToPulse(t *testing.T) {
	r := DefaultServoRange()
	assert.Equal(t, 390.0, r.AngleToPulse(-90))
	assert.Equal(t, 2710.0, r.AngleToPulse(90))
	assert.InDelta(t, 1550.0, r.AngleToPulse(0), 1)
	// Fractional resolution is kept
	assert.InDelta(t, 402.89, r.AngleToPulse(-89), 0.01)
	assert.InDelta(t, 1562.89, r.AngleToPulse(1), 0.01)
	// Clamped
	assert.Equal(t, r.AngleToPulse(-90), r.AngleToPulse(-120))
	assert.Equal(t, r.AngleToPulse(90), r.AngleToPulse(120))
	assert.Equal(t, r.AngleToPulse(90), r.AngleToPulse(math.Inf(1)))
}

func TestAngleToPulseMonotonic(t *testing.T) {
	r := DefaultServoRange()
	last := r.AngleToPulse(-90)
	for angle := -89.5; angle <= 90; angle += 0.5 {
		pulse := r.AngleToPulse(angle)
		assert.Greater(t, pulse, last, "angle=%v", angle)
		last = pulse
	}
}

func TestClampAngle(t *testing.T) {
	assert.Equal(t, -90.0, ClampAngle(-120))
	assert.Equal(t, 90.0, ClampAngle(120))
	assert.Equal(t, 12.5, ClampAngle(12.5))
}

func TestSetAngleDegreesClamps(t *testing.T) {
	for _, tc := range []struct{ outside, limit float64 }{{-120, -90}, {120, 90}} {
		devOutside := newFakeDevice()
		require.NoError(t, newTestController(t, devOutside).SetAngleDegrees(4, tc.outside))
		devLimit := newFakeDevice()
		require.NoError(t, newTestController(t, devLimit).SetAngleDegrees(4, tc.limit))
		assert.Equal(t, devLimit.ops, devOutside.ops, "angle=%v", tc.outside)
	}
}

func TestSetAngleDegrees(t *testing.T) {
	dev := newFakeDevice()
	c := newTestController(t, dev)

	require.NoError(t, c.SetAngleDegrees(0, 0))
	on, off, _, _, err := c.GetChannelPWM(0)
	require.NoError(t, err)
	assert.Zero(t, on)
	// 1550us at 50Hz
	assert.Equal(t, uint16(317), off)

	assert.True(t, IsInvalidArgument(c.SetAngleDegrees(0, math.NaN())))
	assert.True(t, IsInvalidArgument(c.SetAngleDegrees(16, 0)))
}

func TestSetServoCenter(t *testing.T) {
	dev := newFakeDevice()
	c := newTestController(t, dev)
	require.NoError(t, c.SetServoCenter(9))
	assert.Equal(t, []regOp{
		{write: true, reg: RegLED0OnL + 36, val: 0},
		{write: true, reg: RegLED0OnL + 37, val: 0},
		{write: true, reg: RegLED0OnL + 38, val: ServoCenterTicks & 0xFF},
		{write: true, reg: RegLED0OnL + 39, val: ServoCenterTicks >> 8},
	}, dev.writesOnly())

	on, off, _, _, err := c.GetChannelPWM(9)
	require.NoError(t, err)
	assert.Zero(t, on)
	assert.Equal(t, uint16(1550), off)

	// Independent of the configured servo range
	dev = newFakeDevice()
	c = newTestController(t, dev)
	c.config.Servo = ServoRange{MinPulse: 1000, MaxPulse: 2000, CenterPulse: 1500}
	require.NoError(t, c.SetServoCenter(9))
	_, off, _, _, err = c.GetChannelPWM(9)
	require.NoError(t, err)
	assert.Equal(t, uint16(ServoCenterTicks), off)

	assert.True(t, IsInvalidArgument(c.SetServoCenter(16)))
}

func TestServoRangeValidate(t *testing.T) {
	assert.NoError(t, DefaultServoRange().Validate())
	assert.Error(t, ServoRange{MinPulse: 1000, MaxPulse: 1000, CenterPulse: 1000}.Validate())
	assert.Error(t, ServoRange{MinPulse: -1, MaxPulse: 1000, CenterPulse: 500}.Validate())
	assert.Error(t, ServoRange{MinPulse: 1000, MaxPulse: 25000, CenterPulse: 1500}.Validate())
	assert.Error(t, ServoRange{MinPulse: 1000, MaxPulse: 2000, CenterPulse: 2500}.Validate())
	// A full period does not fit in the off tick count
	assert.Error(t, ServoRange{MinPulse: 1000, MaxPulse: ServoPeriod, CenterPulse: 1500}.Validate())
	assert.NoError(t, ServoRange{MinPulse: 1000, MaxPulse: MaxServoPulse, CenterPulse: 1500}.Validate())
}

func TestSetAngleDegreesLongestPulse(t *testing.T) {
	dev := newFakeDevice()
	c := newTestController(t, dev)
	c.config.Servo = ServoRange{MinPulse: 1000, MaxPulse: MaxServoPulse, CenterPulse: 1500}
	require.NoError(t, c.config.Servo.Validate())

	require.NoError(t, c.SetAngleDegrees(0, 90))
	_, off, _, _, err := c.GetChannelPWM(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(MaxCount), off)
}

func TestServoRangeDefaults(t *testing.T) {
	r := ServoRange{MinPulse: 1000, MaxPulse: 2000}.withDefaults()
	assert.Equal(t, 1500.0, r.CenterPulse)
	assert.Equal(t, DefaultServoRange(), ServoRange{}.withDefaults())
}
