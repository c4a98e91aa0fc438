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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusForRelease(t *testing.T) {
	assert.Equal(t, OrangePiZeroBus, busForRelease("5.15.93-sunxi"))
	assert.Equal(t, RaspberryPiBus, busForRelease("6.1.21-v7+"))
	assert.Equal(t, RaspberryPiBus, busForRelease(""))
}

func TestDefaultI2CBus(t *testing.T) {
	assert.Contains(t, []string{RaspberryPiBus, OrangePiZeroBus}, DefaultI2CBus())
}
