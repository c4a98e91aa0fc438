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
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/ServoDriver/pkg/bridge"
)

func TestInitializeSequence(t *testing.T) {
	dev := newFakeDevice()
	delays := noSleep(t)
	c := New(dev, DefaultConfig(), zerolog.Nop())

	require.NoError(t, c.Initialize())
	assert.Equal(t, []regOp{
		{write: true, reg: RegAllLEDOnL, val: 0},
		{write: true, reg: RegAllLEDOnH, val: 0},
		{write: true, reg: RegAllLEDOffL, val: 0},
		{write: true, reg: RegAllLEDOffH, val: 0},
		{write: true, reg: RegMode2, val: Mode2OutDrv},
		{write: true, reg: RegMode1, val: Mode1AllCall},
		{reg: RegMode1, val: Mode1AllCall},
		{write: true, reg: RegMode1, val: Mode1AllCall},
	}, dev.ops)
	assert.Equal(t, []time.Duration{PowerOnSettle, PowerOnSettle}, *delays)
}

func TestInitializeClearsSleep(t *testing.T) {
	dev := NewVirtualDevice()
	noSleep(t)
	c := New(dev, DefaultConfig(), zerolog.Nop())

	require.NoError(t, c.Initialize())
	assert.Equal(t, uint8(Mode1AllCall), dev.Register(RegMode1))
	assert.Equal(t, uint8(Mode2OutDrv), dev.Register(RegMode2))
	for ch := 0; ch < ChannelCount; ch++ {
		on, off, _, fullOff, err := c.GetChannelPWM(ch)
		require.NoError(t, err)
		assert.Zero(t, on)
		assert.Zero(t, off)
		assert.False(t, fullOff)
	}
}

func TestInitializeAbortsOnWriteFailure(t *testing.T) {
	for failAt := 1; failAt <= 7; failAt++ {
		dev := newFakeDevice()
		dev.failWrite = failAt
		delays := noSleep(t)
		c := New(dev, DefaultConfig(), zerolog.Nop())

		err := c.Initialize()
		require.Error(t, err)
		te, ok := AsTransportError(err)
		require.True(t, ok, "failAt=%d", failAt)
		assert.Equal(t, OpWrite, te.Op)
		assert.True(t, errors.Is(err, errBusFault))
		// Nothing written after the failing write
		assert.Len(t, dev.writesOnly(), failAt-1)
		if failAt <= 6 {
			assert.Empty(t, *delays, "failAt=%d", failAt)
		}
	}
}

func TestInitializeFailingWriteReportsRegister(t *testing.T) {
	dev := newFakeDevice()
	dev.failWrite = 5 // MODE2
	c := newTestController(t, dev)

	err := c.Initialize()
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, uint8(RegMode2), te.Register)
	assert.Contains(t, err.Error(), "0x01")
}

func TestInitializeAbortsOnReadFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.failRead = 1
	c := newTestController(t, dev)

	err := c.Initialize()
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, OpRead, te.Op)
	assert.Equal(t, uint8(RegMode1), te.Register)
	assert.Len(t, dev.writesOnly(), 6)
}

func TestOpenWith(t *testing.T) {
	var gotLocation string
	var gotAddress uint8
	open := func(location string, address uint8) (bridge.I2CDevice, error) {
		gotLocation, gotAddress = location, address
		return NewVirtualDevice(), nil
	}
	c, err := OpenWith(open, "/dev/i2c-3", Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "/dev/i2c-3", gotLocation)
	assert.Equal(t, uint8(Address), gotAddress)
	assert.Equal(t, DefaultConfig(), c.Config())
	require.NoError(t, c.Close())
}

func TestOpenWithFailure(t *testing.T) {
	open := func(location string, address uint8) (bridge.I2CDevice, error) {
		return nil, errBusFault
	}
	c, err := OpenWith(open, "/dev/i2c-1", Config{}, zerolog.Nop())
	assert.Nil(t, c)
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, OpOpen, te.Op)
	assert.Equal(t, uint8(Address), te.Address)
	assert.True(t, IsTransportError(err))
}

func TestOpenWithInvalidConfig(t *testing.T) {
	called := false
	open := func(location string, address uint8) (bridge.I2CDevice, error) {
		called = true
		return NewVirtualDevice(), nil
	}
	_, err := OpenWith(open, "/dev/i2c-1", Config{Servo: ServoRange{MinPulse: 2000, MaxPulse: 1000}}, zerolog.Nop())
	assert.True(t, IsInvalidArgument(err))
	assert.False(t, called)
}

func TestCloseReleasesHandle(t *testing.T) {
	dev := newFakeDevice()
	c := newTestController(t, dev)

	require.NoError(t, c.Close())
	assert.True(t, dev.closed)
	require.NoError(t, c.Close())

	err := c.SetChannelPWM(0, 0, 100)
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.True(t, errors.Is(te, ClosedError))
}
