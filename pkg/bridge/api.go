//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package bridge

// I2CDevice communicates with a device on the I2C Bus that has a specific address.
type I2CDevice interface {
	// Read a byte from given register
	ReadByteReg(reg uint8) (uint8, error)
	// Write a byte to given register
	WriteByteReg(reg uint8, val uint8) error
	// Release the device handle
	Close() error
}

// BlockWriter is implemented by devices that can write several consecutive
// registers in a single bus transfer.
type BlockWriter interface {
	// Write a block of bytes starting at given register
	WriteBlockReg(reg uint8, data []byte) error
}

// OpenFunc opens a device at the given bus location & address.
type OpenFunc func(location string, address uint8) (I2CDevice, error)
