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
	"fmt"

	"github.com/pkg/errors"
)

// Bus operations reported in a TransportError.
const (
	OpOpen  = "open"
	OpRead  = "read"
	OpWrite = "write"
	OpClose = "close"
)

var (
	// InvalidArgumentError is the cause of all argument validation failures.
	InvalidArgumentError = errors.New("invalid argument")
	IsInvalidArgument    = isErrorFunc(InvalidArgumentError)
	// ClosedError is returned when the bus handle has already been released.
	ClosedError = errors.New("device closed")

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(InvalidArgumentError, format, args...)
}

// TransportError is returned whenever opening the bus or a register
// read/write on it fails.
type TransportError struct {
	// Op is one of OpOpen, OpRead, OpWrite, OpClose
	Op string
	// Address of the chip on the bus
	Address uint8
	// Register that was accessed (not set for OpOpen, OpClose)
	Register uint8
	// Err is the underlying transport failure
	Err error
}

func (e *TransportError) Error() string {
	switch e.Op {
	case OpOpen, OpClose:
		return fmt.Sprintf("pca9685[0x%02X]: %s failed: %v", e.Address, e.Op, e.Err)
	default:
		return fmt.Sprintf("pca9685[0x%02X]: %s register 0x%02X failed: %v", e.Address, e.Op, e.Register, e.Err)
	}
}

// Unwrap returns the underlying transport failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError returns the TransportError in the chain of the given error.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsTransportError returns true when the given error is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	_, ok := AsTransportError(err)
	return ok
}
