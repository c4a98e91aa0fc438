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

const (
	// ServoPeriod is the PWM period (in microseconds) at 50Hz.
	ServoPeriod = 20000.0
	// ServoFrequency is the frequency hobby servos expect.
	ServoFrequency = 50.0

	// MinAngle and MaxAngle bound the servo angle (in degrees).
	MinAngle = -90.0
	MaxAngle = 90.0

	DefaultServoMinPulse    = 390.0
	DefaultServoMaxPulse    = 2710.0
	DefaultServoCenterPulse = 1550.0

	// MaxServoPulse is the longest pulse (in microseconds) that fits
	// in the off tick count at 50Hz.
	MaxServoPulse = MaxCount * ServoPeriod / TicksPerPeriod

	// ServoCenterTicks is the off tick count written by SetServoCenter.
	ServoCenterTicks = 1550
)

// ServoRange describes the pulse widths (in microseconds) of a servo
// at MinAngle, MaxAngle and in neutral position.
type ServoRange struct {
	MinPulse    float64
	MaxPulse    float64
	CenterPulse float64
}

// DefaultServoRange returns the default pulse range.
func DefaultServoRange() ServoRange {
	return ServoRange{
		MinPulse:    DefaultServoMinPulse,
		MaxPulse:    DefaultServoMaxPulse,
		CenterPulse: DefaultServoCenterPulse,
	}
}

func (r ServoRange) withDefaults() ServoRange {
	if r.MinPulse == 0 && r.MaxPulse == 0 {
		r.MinPulse = DefaultServoMinPulse
		r.MaxPulse = DefaultServoMaxPulse
	}
	if r.CenterPulse == 0 {
		r.CenterPulse = (r.MinPulse + r.MaxPulse) / 2
	}
	return r
}

// Validate the range, returning an error when invalid.
func (r ServoRange) Validate() error {
	if r.MinPulse < 0 || r.MaxPulse > MaxServoPulse || r.MinPulse >= r.MaxPulse {
		return invalidArgument("servo pulse range must satisfy 0 <= min < max <= %v, got %v..%v", MaxServoPulse, r.MinPulse, r.MaxPulse)
	}
	if r.CenterPulse < r.MinPulse || r.CenterPulse > r.MaxPulse {
		return invalidArgument("servo center pulse %v outside range %v..%v", r.CenterPulse, r.MinPulse, r.MaxPulse)
	}
	return nil
}

// ClampAngle limits the given angle to the MinAngle..MaxAngle range.
func ClampAngle(angleDeg float64) float64 {
	return math.Max(MinAngle, math.Min(MaxAngle, angleDeg))
}

// AngleToPulse returns the pulse width (in microseconds) for the given angle.
// Angles outside MinAngle..MaxAngle are clamped.
func (r ServoRange) AngleToPulse(angleDeg float64) float64 {
	span := r.MaxPulse - r.MinPulse
	return (ClampAngle(angleDeg)-MinAngle)*span/(MaxAngle-MinAngle) + r.MinPulse
}

// PulseToTicks converts a pulse width (in microseconds) into an off tick
// count, assuming a 50Hz frequency.
func PulseToTicks(pulseUs float64) (uint16, error) {
	if math.IsNaN(pulseUs) || pulseUs < 0 {
		return 0, invalidArgument("pulse must be a non-negative number, got %v", pulseUs)
	}
	ticks := math.Round(pulseUs * TicksPerPeriod / ServoPeriod)
	if ticks > MaxCount {
		return 0, invalidArgument("pulse of %vus exceeds the period", pulseUs)
	}
	return uint16(ticks), nil
}

// SetPulseMicroseconds sets the high time of the given channel.
// The chip must be configured for 50Hz, this is not verified.
func (c *Controller) SetPulseMicroseconds(channel int, pulseUs float64) error {
	ticks, err := PulseToTicks(pulseUs)
	if err != nil {
		return err
	}
	return c.SetChannelPWM(channel, 0, ticks)
}

// SetAngleDegrees moves the servo on the given channel to the given angle.
// Angles outside -90..90 are clamped.
func (c *Controller) SetAngleDegrees(channel int, angleDeg float64) error {
	if math.IsNaN(angleDeg) {
		return invalidArgument("angle must be a number")
	}
	return c.SetPulseMicroseconds(channel, c.config.Servo.AngleToPulse(angleDeg))
}

// SetServoCenter writes the fixed ServoCenterTicks off count to the given channel.
// Use SetPulseMicroseconds with the configured CenterPulse for a neutral
// pulse that follows the servo range.
func (c *Controller) SetServoCenter(channel int) error {
	return c.SetChannelPWM(channel, 0, ServoCenterTicks)
}
