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

package mqtt

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	minRetryDelay = time.Millisecond * 500
	maxRetryDelay = time.Second * 30
)

// untilCanceled continues to call the given callback
// until the given context is canceled.
// Failed calls are retried with an increasing delay.
func untilCanceled(ctx context.Context, log zerolog.Logger, description string, minDelay, maxDelay time.Duration, cb func() error) {
	delay := minDelay
	for {
		if ctx.Err() != nil {
			// Context canceled
			return
		}
		if err := cb(); err != nil {
			log.Warn().Err(err).Dur("retry_in", delay).Msgf("%s failed", description)
		} else {
			delay = minDelay
		}
		select {
		case <-ctx.Done():
			// Context canceled
			log.Info().Msgf("Stopping %s; context canceled", description)
			return
		case <-time.After(delay):
			// Continue
		}
		delay = time.Duration(float64(delay) * 1.5)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
