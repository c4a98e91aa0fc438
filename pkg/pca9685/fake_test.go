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
)

type regOp struct {
	write bool
	reg   uint8
	val   uint8
}

// fakeDevice records every register access and can be told to fail.
type fakeDevice struct {
	regs      map[uint8]uint8
	ops       []regOp
	blocks    map[uint8][]byte
	failWrite int // fail the n-th write (1 based), 0 = never
	failRead  int // fail the n-th read (1 based), 0 = never
	writes    int
	reads     int
	closed    bool
}

var errBusFault = errors.New("remote I/O error")

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		regs:   map[uint8]uint8{RegMode1: Mode1Sleep | Mode1AllCall},
		blocks: make(map[uint8][]byte),
	}
}

func (f *fakeDevice) ReadByteReg(reg uint8) (uint8, error) {
	f.reads++
	if f.failRead > 0 && f.reads == f.failRead {
		return 0, errBusFault
	}
	f.ops = append(f.ops, regOp{reg: reg, val: f.regs[reg]})
	return f.regs[reg], nil
}

func (f *fakeDevice) WriteByteReg(reg uint8, val uint8) error {
	f.writes++
	if f.failWrite > 0 && f.writes == f.failWrite {
		return errBusFault
	}
	f.ops = append(f.ops, regOp{write: true, reg: reg, val: val})
	f.regs[reg] = val
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

// writesOnly returns all recorded writes.
func (f *fakeDevice) writesOnly() []regOp {
	var result []regOp
	for _, op := range f.ops {
		if op.write {
			result = append(result, op)
		}
	}
	return result
}

// blockDevice adds block transfers to the fake device.
type blockDevice struct {
	*fakeDevice
}

func (b blockDevice) WriteBlockReg(reg uint8, data []byte) error {
	b.writes++
	if b.failWrite > 0 && b.writes == b.failWrite {
		return errBusFault
	}
	b.blocks[reg] = append([]byte(nil), data...)
	return nil
}

// noSleep replaces the settling delay with a recorder for the duration of the test.
func noSleep(t *testing.T) *[]time.Duration {
	var delays []time.Duration
	old := sleep
	sleep = func(d time.Duration) { delays = append(delays, d) }
	t.Cleanup(func() { sleep = old })
	return &delays
}

func newTestController(t *testing.T, dev *fakeDevice) *Controller {
	noSleep(t)
	return New(dev, DefaultConfig(), zerolog.Nop())
}
