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
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/ServoDriver/pkg/bridge"
)

const (
	// PowerOnSettle is the wake-up time after leaving reset/sleep.
	PowerOnSettle = 5 * time.Millisecond
	// OscillatorRestartSettle is the time the oscillator needs to stabilize
	// after a prescale change (datasheet: >= 500us).
	OscillatorRestartSettle = time.Millisecond
)

// sleep blocks the calling goroutine; replaced in tests.
var sleep = time.Sleep

// Config of a Controller.
type Config struct {
	// Wait after init steps. Zero means PowerOnSettle.
	PowerOnSettle time.Duration
	// Wait after restarting the oscillator. Zero means OscillatorRestartSettle.
	OscillatorRestartSettle time.Duration
	// Pulse width range of the connected servos
	Servo ServoRange
	// If set, channel updates are sent in a single block transfer
	// when the transport supports it.
	BlockWrites bool
}

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() Config {
	return Config{
		PowerOnSettle:           PowerOnSettle,
		OscillatorRestartSettle: OscillatorRestartSettle,
		Servo:                   DefaultServoRange(),
	}
}

// withDefaults returns a copy of the config with all unset fields
// set to their default value.
func (c Config) withDefaults() Config {
	if c.PowerOnSettle <= 0 {
		c.PowerOnSettle = PowerOnSettle
	}
	if c.OscillatorRestartSettle <= 0 {
		c.OscillatorRestartSettle = OscillatorRestartSettle
	}
	c.Servo = c.Servo.withDefaults()
	return c
}

// Validate the configuration, returning an error when invalid.
func (c Config) Validate() error {
	return c.withDefaults().Servo.Validate()
}

// Controller drives a single PCA9685 chip.
// All state lives in the registers of the chip; the controller only owns
// the bus handle.
// A Controller must not be copied and must not be used from multiple
// goroutines at the same time: the 4 register writes of a channel update
// are not atomic on the bus.
type Controller struct {
	log    zerolog.Logger
	config Config
	dev    bridge.I2CDevice
}

// Open the chip on the bus at the given location (e.g. /dev/i2c-1).
func Open(location string, config Config, log zerolog.Logger) (*Controller, error) {
	return OpenWith(bridge.OpenI2CDevice, location, config, log)
}

// OpenWith opens the chip at the given location using the given open function.
func OpenWith(open bridge.OpenFunc, location string, config Config, log zerolog.Logger) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dev, err := open(location, Address)
	if err != nil {
		return nil, &TransportError{Op: OpOpen, Address: Address, Err: err}
	}
	log.Debug().Str("location", location).Msg("Opened pca9685")
	return New(dev, config, log), nil
}

// New creates a Controller that takes ownership of the given device handle.
func New(dev bridge.I2CDevice, config Config, log zerolog.Logger) *Controller {
	return &Controller{
		log:    log.With().Str("component", "pca9685").Logger(),
		config: config.withDefaults(),
		dev:    dev,
	}
}

// Config returns the configuration of the controller.
func (c *Controller) Config() Config {
	return c.config
}

// Initialize puts the chip in a known state: all channels off,
// push-pull outputs, responding to the all-call address, oscillator running.
// Must be called once after power-up, before any frequency or channel operation.
func (c *Controller) Initialize() error {
	if err := c.SetAllChannelsPWM(0, 0); err != nil {
		return err
	}
	if err := c.writeReg(RegMode2, Mode2OutDrv); err != nil {
		return err
	}
	if err := c.writeReg(RegMode1, Mode1AllCall); err != nil {
		return err
	}
	sleep(c.config.PowerOnSettle)

	// Wake up
	mode1, err := c.readReg(RegMode1)
	if err != nil {
		return err
	}
	mode1 &^= Mode1Sleep
	if err := c.writeReg(RegMode1, mode1); err != nil {
		return err
	}
	sleep(c.config.PowerOnSettle)

	c.log.Debug().Uint8("mode1", mode1).Msg("Initialized")
	return nil
}

// Close releases the bus handle.
// No shutdown sequence is sent to the chip, outputs keep their last state.
func (c *Controller) Close() error {
	if c.dev == nil {
		return nil
	}
	dev := c.dev
	c.dev = nil
	if err := dev.Close(); err != nil {
		return &TransportError{Op: OpClose, Address: Address, Err: err}
	}
	return nil
}

// readReg reads a single register.
func (c *Controller) readReg(reg uint8) (uint8, error) {
	if c.dev == nil {
		return 0, &TransportError{Op: OpRead, Address: Address, Register: reg, Err: ClosedError}
	}
	val, err := c.dev.ReadByteReg(reg)
	if err != nil {
		return 0, &TransportError{Op: OpRead, Address: Address, Register: reg, Err: err}
	}
	return val, nil
}

// writeReg writes a single register.
func (c *Controller) writeReg(reg, val uint8) error {
	if c.dev == nil {
		return &TransportError{Op: OpWrite, Address: Address, Register: reg, Err: ClosedError}
	}
	if err := c.dev.WriteByteReg(reg, val); err != nil {
		return &TransportError{Op: OpWrite, Address: Address, Register: reg, Err: err}
	}
	return nil
}
