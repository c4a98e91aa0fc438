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
	"os"
	"strconv"
	"time"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	I2C_RECOVER_NUM_CLOCKS = 10    /* # clock cycles for recovery  */
	I2C_RECOVER_CLOCK_FREQ = 50000 /* clock frequency for recovery */

	I2C_RECOVER_CLOCK_DELAY_US = (1000000 / (2 * I2C_RECOVER_CLOCK_FREQ))
)

// RecoverBus tries to free a bus that is stuck with SDA held low by a slave,
// by clocking SCL (given as GPIO pin number) a number of times.
func RecoverBus(sclPin int, log zerolog.Logger) error {
	recoveryAttemptsTotal.Inc()
	if err := recoverBus(sclPin, log); err != nil {
		recoveryFailedTotal.Inc()
		return err
	}
	return nil
}

func recoverBus(sclPin int, log zerolog.Logger) error {
	log.Info().Int("scl-pin", sclPin).Msg("Performing i2c recovery ...")
	activeLow := true
	initialValue := true
	scl, err := gpio.Output(sclPin, activeLow, initialValue)
	if err != nil {
		return errors.Wrap(err, "failed to set scl pin to output")
	}
	for i := 0; i < I2C_RECOVER_NUM_CLOCKS; i++ {
		time.Sleep(time.Microsecond * I2C_RECOVER_CLOCK_DELAY_US)
		if err := scl.Write(false); err != nil {
			return errors.Wrap(err, "failed to lower scl during i2c recovery")
		}
		time.Sleep(time.Microsecond * I2C_RECOVER_CLOCK_DELAY_US)
		if err := scl.Write(true); err != nil {
			return errors.Wrap(err, "failed to raise scl during i2c recovery")
		}
	}
	// Reset pin to be input
	if _, err := gpio.Input(sclPin, activeLow); err != nil {
		return errors.Wrap(err, "failed to reset scl pin to input")
	}
	// Unexport the pin so the i2c driver can claim it again
	unexportPath := "/sys/class/gpio/unexport"
	unexportContent := strconv.Itoa(sclPin)
	if err := os.WriteFile(unexportPath, []byte(unexportContent), 0644); err != nil {
		return errors.Wrap(err, "failed to unexport scl pin")
	}

	log.Info().Int("scl-pin", sclPin).Msg("Performed i2c recovery.")
	return nil
}
