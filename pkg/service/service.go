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
	"context"
	"runtime"
	"strconv"
	"sync"

	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoDriver/pkg/bridge"
	"github.com/binkynet/ServoDriver/pkg/pca9685"
)

var (
	// ClosedError is returned for requests on a closed service.
	ClosedError = errors.New("service closed")
	IsClosed    = isErrorFunc(ClosedError)

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}

// Service contains the API that is exposed by the servo service.
// All calls are serialized onto a single goroutine that owns the controller.
type Service interface {
	// Configure initializes the chip and sets the configured frequency.
	Configure(ctx context.Context) error
	// Run configures the chip, then waits until the given context is canceled
	// and closes the service.
	Run(ctx context.Context) error
	// Close releases the bus. Pending and later requests fail.
	Close() error

	// SetFrequency sets the PWM frequency of all channels.
	SetFrequency(ctx context.Context, hz float64) error
	// Frequency returns the PWM frequency as configured in the chip.
	Frequency(ctx context.Context) (float64, error)

	// SetPWM sets the raw on/off ticks of a channel.
	SetPWM(ctx context.Context, channel int, on, off uint16) (ChannelState, error)
	// SetPulse sets the pulse width (in microseconds) of a channel.
	SetPulse(ctx context.Context, channel int, pulseUs float64) (ChannelState, error)
	// SetAngle moves the servo of a channel to the given angle (in degrees).
	SetAngle(ctx context.Context, channel int, angleDeg float64) (ChannelState, error)
	// Center moves the servo of a channel to its neutral position.
	Center(ctx context.Context, channel int) (ChannelState, error)
	// Off forces the output of a channel low.
	Off(ctx context.Context, channel int) (ChannelState, error)
	// GetChannel reads the current state of a channel.
	GetChannel(ctx context.Context, channel int) (ChannelState, error)

	// RegisterChangeReceiver registers a callback that is called
	// after every channel change. Call the returned function to unregister.
	RegisterChangeReceiver(cb func(ChannelState)) context.CancelFunc
}

// ChannelState is the state of a channel as read back from the chip.
type ChannelState struct {
	Channel int    `json:"channel"`
	On      uint16 `json:"on"`
	Off     uint16 `json:"off"`
	FullOn  bool   `json:"full_on"`
	FullOff bool   `json:"full_off"`
	// High time in microseconds at the current frequency
	PulseMicroseconds float64 `json:"pulse_us"`
}

// Config of the service.
type Config struct {
	// Location of the bus device
	Bus string
	// Use an emulated chip
	Virtual bool
	// PWM frequency set by Configure
	Frequency float64
	// GPIO pin of SCL used for bus recovery, -1 to disable
	SCLPin int
	// Controller configuration
	Controller pca9685.Config
}

// Dependencies of the service.
type Dependencies struct {
	Log zerolog.Logger
	// Open overrides the way the device is opened (optional)
	Open bridge.OpenFunc
}

type service struct {
	Config
	log       zerolog.Logger
	ctrl      *pca9685.Controller
	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
	changes   *pubsub.PubSub
	// Only accessed from the queue processor
	frequency float64
}

// NewService opens the chip and starts processing requests.
func NewService(cfg Config, deps Dependencies) (Service, error) {
	log := deps.Log.With().Str("component", "servo-service").Logger()
	open := deps.Open
	if open == nil {
		if cfg.Virtual {
			open = pca9685.OpenVirtualDevice
		} else {
			open = bridge.OpenI2CDevice
			if cfg.SCLPin >= 0 {
				if err := bridge.RecoverBus(cfg.SCLPin, log); err != nil {
					log.Warn().Err(err).Msg("i2c bus recovery failed")
				}
			}
		}
	}
	ctrl, err := pca9685.OpenWith(open, cfg.Bus, cfg.Controller, deps.Log)
	if err != nil {
		return nil, err
	}
	s := &service{
		Config:    cfg,
		log:       log,
		ctrl:      ctrl,
		queue:     make(chan func()),
		done:      make(chan struct{}),
		changes:   pubsub.New(),
		frequency: cfg.Frequency,
	}
	go s.queueProcessor()
	return s, nil
}

// Process requests from the queue until the service is closed.
func (s *service) queueProcessor() {
	// Ensure we're always using the same OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case req := <-s.queue:
			req()
		case <-s.done:
			return
		}
	}
}

// execute the given operation on the queue processor and wait for its result.
// Once started, an operation runs to completion.
func (s *service) execute(ctx context.Context, op string, fn func(c *pca9685.Controller) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	requestsTotal.WithLabelValues(op).Inc()
	result := make(chan error, 1)
	req := func() {
		result <- fn(s.ctrl)
	}
	select {
	case s.queue <- req:
		// Request is being executed
	case <-s.done:
		requestFailuresTotal.WithLabelValues(op).Inc()
		return maskAny(ClosedError)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := <-result; err != nil {
		requestFailuresTotal.WithLabelValues(op).Inc()
		return err
	}
	return nil
}

// Configure initializes the chip and sets the configured frequency.
func (s *service) Configure(ctx context.Context) error {
	if err := s.execute(ctx, "configure", func(c *pca9685.Controller) error {
		if err := c.Initialize(); err != nil {
			return err
		}
		if err := c.SetFrequency(s.Config.Frequency); err != nil {
			return err
		}
		s.frequency = s.Config.Frequency
		return nil
	}); err != nil {
		s.log.Error().Err(err).Msg("Failed to configure pca9685")
		return err
	}
	frequencyGauge.Set(s.Config.Frequency)
	s.log.Info().Float64("frequency", s.Config.Frequency).Msg("Configured pca9685")
	return nil
}

// Run configures the chip, then waits until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	if err := s.Configure(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.log.Info().Msg("Closing servo service")
	return s.Close()
}

// Close releases the bus.
func (s *service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.execute(context.Background(), "close", func(c *pca9685.Controller) error {
			return c.Close()
		})
		close(s.done)
	})
	return err
}

// SetFrequency sets the PWM frequency of all channels.
func (s *service) SetFrequency(ctx context.Context, hz float64) error {
	if err := s.execute(ctx, "set_frequency", func(c *pca9685.Controller) error {
		if err := c.SetFrequency(hz); err != nil {
			return err
		}
		s.frequency = hz
		return nil
	}); err != nil {
		return err
	}
	frequencyGauge.Set(hz)
	s.log.Info().Float64("frequency", hz).Msg("Frequency changed")
	return nil
}

// Frequency returns the PWM frequency as configured in the chip.
func (s *service) Frequency(ctx context.Context) (float64, error) {
	var result float64
	if err := s.execute(ctx, "get_frequency", func(c *pca9685.Controller) error {
		var err error
		result, err = c.Frequency()
		return err
	}); err != nil {
		return 0, err
	}
	return result, nil
}

// SetPWM sets the raw on/off ticks of a channel.
func (s *service) SetPWM(ctx context.Context, channel int, on, off uint16) (ChannelState, error) {
	return s.changeChannel(ctx, "set_pwm", channel, func(c *pca9685.Controller) error {
		return c.SetChannelPWM(channel, on, off)
	})
}

// SetPulse sets the pulse width (in microseconds) of a channel.
func (s *service) SetPulse(ctx context.Context, channel int, pulseUs float64) (ChannelState, error) {
	return s.changeChannel(ctx, "set_pulse", channel, func(c *pca9685.Controller) error {
		return c.SetPulseMicroseconds(channel, pulseUs)
	})
}

// SetAngle moves the servo of a channel to the given angle (in degrees).
func (s *service) SetAngle(ctx context.Context, channel int, angleDeg float64) (ChannelState, error) {
	return s.changeChannel(ctx, "set_angle", channel, func(c *pca9685.Controller) error {
		return c.SetAngleDegrees(channel, angleDeg)
	})
}

// Center moves the servo of a channel to its neutral position.
func (s *service) Center(ctx context.Context, channel int) (ChannelState, error) {
	return s.changeChannel(ctx, "center", channel, func(c *pca9685.Controller) error {
		return c.SetPulseMicroseconds(channel, c.Config().Servo.CenterPulse)
	})
}

// Off forces the output of a channel low.
func (s *service) Off(ctx context.Context, channel int) (ChannelState, error) {
	return s.changeChannel(ctx, "off", channel, func(c *pca9685.Controller) error {
		return c.SetChannelOff(channel)
	})
}

// GetChannel reads the current state of a channel.
func (s *service) GetChannel(ctx context.Context, channel int) (ChannelState, error) {
	var state ChannelState
	if err := s.execute(ctx, "get_channel", func(c *pca9685.Controller) error {
		var err error
		state, err = s.readChannel(c, channel)
		return err
	}); err != nil {
		return ChannelState{}, err
	}
	return state, nil
}

// RegisterChangeReceiver registers a callback for channel changes.
func (s *service) RegisterChangeReceiver(cb func(ChannelState)) context.CancelFunc {
	wcb := func(x ChannelState) {
		cb(x)
	}
	s.changes.Sub(wcb)
	return func() {
		s.changes.Leave(wcb)
	}
}

// changeChannel applies the given change, reads back the channel
// and notifies all change receivers.
func (s *service) changeChannel(ctx context.Context, op string, channel int, fn func(c *pca9685.Controller) error) (ChannelState, error) {
	var state ChannelState
	if err := s.execute(ctx, op, func(c *pca9685.Controller) error {
		if err := fn(c); err != nil {
			return err
		}
		var err error
		state, err = s.readChannel(c, channel)
		return err
	}); err != nil {
		s.log.Debug().Err(err).Str("op", op).Int("channel", channel).Msg("Channel change failed")
		return ChannelState{}, err
	}
	pulseGauges.WithLabelValues(strconv.Itoa(channel)).Set(state.PulseMicroseconds)
	s.log.Debug().
		Str("op", op).
		Int("channel", channel).
		Uint16("on", state.On).
		Uint16("off", state.Off).
		Msg("Channel changed")
	s.changes.Pub(state)
	return state, nil
}

// readChannel reads back the state of a channel.
// Must be called from the queue processor.
func (s *service) readChannel(c *pca9685.Controller, channel int) (ChannelState, error) {
	on, off, fullOn, fullOff, err := c.GetChannelPWM(channel)
	if err != nil {
		return ChannelState{}, err
	}
	state := ChannelState{
		Channel: channel,
		On:      on,
		Off:     off,
		FullOn:  fullOn,
		FullOff: fullOff,
	}
	switch {
	case fullOff || s.frequency <= 0:
		// Output low
	case fullOn:
		state.PulseMicroseconds = 1e6 / s.frequency
	default:
		ticks := (int(off) - int(on) + pca9685.TicksPerPeriod) % pca9685.TicksPerPeriod
		state.PulseMicroseconds = float64(ticks) * 1e6 / (pca9685.TicksPerPeriod * s.frequency)
	}
	return state, nil
}
