//    Copyright 2023 Ewout Prangsma
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

import (
	"fmt"

	"github.com/binkynet/ServoDriver/pkg/metrics"
)

const (
	subSystem = "bridge"
)

var (
	// Total number of register reads per register
	registerReadsTotal = metrics.MustRegisterCounterVec(subSystem,
		"register_reads_total",
		"Total number of register reads per register",
		"register")
	// Total number of register writes per (first) register
	registerWritesTotal = metrics.MustRegisterCounterVec(subSystem,
		"register_writes_total",
		"Total number of register writes per register",
		"register")
	// Total number of failed transfers per operation
	transferErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"transfer_errors_total",
		"Total number of failed transfers per operation",
		"op")
	// Total number of failed device opens
	openErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"open_errors_total",
		"Total number of failed device opens")
	// Bus recovery attempts & outcomes
	recoveryAttemptsTotal = metrics.MustRegisterCounter(subSystem,
		"recovery_attempts_total",
		"Total number of bus recovery attempts")
	recoveryFailedTotal = metrics.MustRegisterCounter(subSystem,
		"recovery_failed_total",
		"Total number of failed bus recovery attempts")
)

func regLabel(reg uint8) string {
	return fmt.Sprintf("0x%02X", reg)
}
