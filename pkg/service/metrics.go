// Copyright 2021 Ewout Prangsma
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

package service

import (
	"github.com/binkynet/ServoDriver/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	// Total number of requests per operation
	requestsTotal = metrics.MustRegisterCounterVec(subSystem,
		"requests_total",
		"Total number of requests per operation",
		"op")
	// Total number of failed requests per operation
	requestFailuresTotal = metrics.MustRegisterCounterVec(subSystem,
		"request_failures_total",
		"Total number of failed requests per operation",
		"op")
	// Configured PWM frequency
	frequencyGauge = metrics.MustRegisterGauge(subSystem,
		"frequency_hertz",
		"Configured PWM frequency")
	// Last known pulse width per channel
	pulseGauges = metrics.MustRegisterGaugeVec(subSystem,
		"pulse_microseconds",
		"Last known pulse width per channel",
		"channel")
)
