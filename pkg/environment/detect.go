//    Copyright 2018 Ewout Prangsma
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

package environment

import (
	"strings"
)

const (
	// RaspberryPiBus is the I2C bus on the GPIO header of a Raspberry Pi.
	RaspberryPiBus = "/dev/i2c-1"
	// OrangePiZeroBus is the I2C bus on the GPIO header of an Orange Pi Zero.
	OrangePiZeroBus = "/dev/i2c-0"
)

// busForRelease returns the default I2C bus for the given kernel release.
func busForRelease(release string) string {
	if strings.Contains(release, "sunxi") {
		return OrangePiZeroBus
	}
	return RaspberryPiBus
}
