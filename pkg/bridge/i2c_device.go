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

package bridge

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// From  /usr/include/linux/i2c-dev.h:
	// ioctl signals
	I2C_SLAVE = 0x0703
	I2C_FUNCS = 0x0705
	I2C_SMBUS = 0x0720
	// Read/write markers
	I2C_SMBUS_READ  = 1
	I2C_SMBUS_WRITE = 0

	// From  /usr/include/linux/i2c.h:
	// Adapter functionality
	I2C_FUNC_SMBUS_READ_BYTE_DATA  = 0x00080000
	I2C_FUNC_SMBUS_WRITE_BYTE_DATA = 0x00100000
	I2C_FUNC_SMBUS_WRITE_I2C_BLOCK = 0x08000000 /* w/ 1-byte reg. addr. */

	// Transaction types
	I2C_SMBUS_BYTE_DATA      = 2
	I2C_SMBUS_I2C_BLOCK_DATA = 8 /* SMBus 2.0 */

	// Size of union i2c_smbus_data: length byte + 32 data bytes + 1 for PEC
	i2cSmbusBlockMax = 32
)

type i2cSmbusIoctlData struct {
	readWrite byte
	command   byte
	size      uint32
	data      uintptr
}

type i2cDevice struct {
	address uint8
	mutex   sync.Mutex
	file    *os.File
	funcs   uint64 // adapter functionality mask
}

var (
	_ I2CDevice   = &i2cDevice{}
	_ BlockWriter = &i2cDevice{}
)

// OpenI2CDevice opens the I2C device file at the given location and binds it
// to the given 7-bit slave address.
func OpenI2CDevice(location string, address uint8) (I2CDevice, error) {
	d := &i2cDevice{
		address: address,
	}

	var err error
	if d.file, err = os.OpenFile(location, os.O_RDWR, os.ModeDevice); err != nil {
		openErrorsTotal.Inc()
		return nil, errors.Wrapf(err, "open %s failed", location)
	}
	if err := d.queryFunctionality(); err != nil {
		openErrorsTotal.Inc()
		d.file.Close()
		return nil, err
	}
	if err := d.setAddress(address); err != nil {
		openErrorsTotal.Inc()
		d.file.Close()
		return nil, err
	}

	return d, nil
}

func (d *i2cDevice) queryFunctionality() (err error) {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		d.file.Fd(),
		I2C_FUNCS,
		uintptr(unsafe.Pointer(&d.funcs)),
	)

	if errno != 0 {
		err = fmt.Errorf("Querying functionality failed with syscall.Errno %v", errno)
	}
	return
}

func (d *i2cDevice) setAddress(address byte) (err error) {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		d.file.Fd(),
		I2C_SLAVE,
		uintptr(address),
	)

	if errno != 0 {
		err = fmt.Errorf("Setting address (0x%0x) failed with syscall.Errno %v", d.address, errno)
	}

	return
}

// Close the device file.
func (d *i2cDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.file == nil {
		return nil
	}
	f := d.file
	d.file = nil
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close[0x%0x] failed", d.address)
	}
	return nil
}

func (d *i2cDevice) ReadByteReg(reg uint8) (uint8, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	registerReadsTotal.WithLabelValues(regLabel(reg)).Inc()
	val, err := d.readByteData(reg)
	if err != nil {
		transferErrorsTotal.WithLabelValues("read").Inc()
		return 0, errors.Wrapf(err, "readByteData[0x%0x](0x%0x) failed", d.address, reg)
	}
	return val, nil
}

func (d *i2cDevice) WriteByteReg(reg uint8, val uint8) (err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	registerWritesTotal.WithLabelValues(regLabel(reg)).Inc()
	if err := d.writeByteData(reg, val); err != nil {
		transferErrorsTotal.WithLabelValues("write").Inc()
		return errors.Wrapf(err, "writeByteData[0x%0x](0x%0x, 0x%0x) failed", d.address, reg, val)
	}
	return nil
}

// Write a block of bytes starting at given register
func (d *i2cDevice) WriteBlockReg(reg uint8, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	registerWritesTotal.WithLabelValues(regLabel(reg)).Inc()
	if err := d.writeBlockData(reg, data); err != nil {
		transferErrorsTotal.WithLabelValues("write_block").Inc()
		return errors.Wrapf(err, "writeBlockData[0x%0x](0x%0x, %d bytes) failed", d.address, reg, len(data))
	}
	return nil
}

func (d *i2cDevice) readByteData(reg uint8) (val uint8, err error) {
	if d.file == nil {
		return 0, fmt.Errorf("device closed")
	}
	if d.funcs&I2C_FUNC_SMBUS_READ_BYTE_DATA == 0 {
		return 0, fmt.Errorf("SMBus read byte data not supported")
	}

	var data uint8
	err = d.smbusAccess(I2C_SMBUS_READ, reg, I2C_SMBUS_BYTE_DATA, uintptr(unsafe.Pointer(&data)))
	return data, err
}

func (d *i2cDevice) writeByteData(reg uint8, val uint8) (err error) {
	if d.file == nil {
		return fmt.Errorf("device closed")
	}
	if d.funcs&I2C_FUNC_SMBUS_WRITE_BYTE_DATA == 0 {
		return fmt.Errorf("SMBus write byte data not supported")
	}

	var data = val
	err = d.smbusAccess(I2C_SMBUS_WRITE, reg, I2C_SMBUS_BYTE_DATA, uintptr(unsafe.Pointer(&data)))
	return err
}

func (d *i2cDevice) writeBlockData(reg uint8, data []byte) error {
	if d.file == nil {
		return fmt.Errorf("device closed")
	}
	if d.funcs&I2C_FUNC_SMBUS_WRITE_I2C_BLOCK == 0 {
		return fmt.Errorf("SMBus write i2c block not supported")
	}
	if len(data) > i2cSmbusBlockMax {
		return fmt.Errorf("block of %d bytes exceeds maximum of %d", len(data), i2cSmbusBlockMax)
	}

	var block [i2cSmbusBlockMax + 2]byte
	block[0] = byte(len(data))
	copy(block[1:], data)
	return d.smbusAccess(I2C_SMBUS_WRITE, reg, I2C_SMBUS_I2C_BLOCK_DATA, uintptr(unsafe.Pointer(&block[0])))
}

func (d *i2cDevice) smbusAccess(readWrite byte, command byte, size uint32, data uintptr) error {
	smbus := &i2cSmbusIoctlData{
		readWrite: readWrite,
		command:   command,
		size:      size,
		data:      data,
	}

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		d.file.Fd(),
		I2C_SMBUS,
		uintptr(unsafe.Pointer(smbus)),
	)

	if errno != 0 {
		return fmt.Errorf("Failed with syscall.Errno %v", errno)
	}

	return nil
}
