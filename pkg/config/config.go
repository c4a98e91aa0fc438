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

package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/binkynet/ServoDriver/pkg/environment"
	"github.com/binkynet/ServoDriver/pkg/pca9685"
)

const (
	DefaultHTTPHost = "0.0.0.0"
	DefaultHTTPPort = 7130
	DefaultMQTTPort = 1883
)

var (
	maskAny = errors.WithStack
)

// Config of the servo driver process.
type Config struct {
	// Location of the I2C bus device
	Bus string `yaml:"bus"`
	// Use an emulated chip instead of hardware
	Virtual bool `yaml:"virtual"`
	// PWM frequency in Hz
	Frequency float64 `yaml:"frequency"`
	// Send channel updates as single block transfers
	BlockWrites bool           `yaml:"block_writes"`
	Servo       ServoConfig    `yaml:"servo"`
	Settle      SettleConfig   `yaml:"settle"`
	Recovery    RecoveryConfig `yaml:"recovery"`
	HTTP        HTTPConfig     `yaml:"http"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
}

// ServoConfig holds the pulse widths (in microseconds) of the servos.
type ServoConfig struct {
	MinPulse    float64 `yaml:"min_pulse_us"`
	MaxPulse    float64 `yaml:"max_pulse_us"`
	CenterPulse float64 `yaml:"center_pulse_us"`
}

// SettleConfig holds the hardware settling delays.
type SettleConfig struct {
	PowerOn           time.Duration `yaml:"power_on"`
	OscillatorRestart time.Duration `yaml:"oscillator_restart"`
}

// RecoveryConfig configures i2c bus lock-up recovery.
type RecoveryConfig struct {
	// GPIO pin number of SCL, -1 to disable recovery
	SCLPin int `yaml:"scl_pin"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MQTTConfig configures the MQTT bridge.
// The bridge is disabled when Host is empty.
type MQTTConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UserName    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Enabled returns true when an MQTT broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Host != ""
}

// Default returns the default configuration.
func Default() Config {
	servo := pca9685.DefaultServoRange()
	return Config{
		Bus:       environment.DefaultI2CBus(),
		Frequency: pca9685.ServoFrequency,
		Servo: ServoConfig{
			MinPulse:    servo.MinPulse,
			MaxPulse:    servo.MaxPulse,
			CenterPulse: servo.CenterPulse,
		},
		Settle: SettleConfig{
			PowerOn:           pca9685.PowerOnSettle,
			OscillatorRestart: pca9685.OscillatorRestartSettle,
		},
		Recovery: RecoveryConfig{
			SCLPin: -1,
		},
		HTTP: HTTPConfig{
			Host: DefaultHTTPHost,
			Port: DefaultHTTPPort,
		},
		MQTT: MQTTConfig{
			Port:        DefaultMQTTPort,
			ClientID:    "servodriver",
			TopicPrefix: "/servodriver/",
		},
	}
}

// Load the configuration file at the given path.
// Keys missing from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, maskAny(err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate the configuration, returning an error when invalid.
func (c Config) Validate() error {
	if c.Bus == "" && !c.Virtual {
		return errors.New("bus is required")
	}
	if _, err := pca9685.Prescale(c.Frequency); err != nil {
		return errors.Wrap(err, "frequency")
	}
	if err := c.Controller().Validate(); err != nil {
		return errors.Wrap(err, "servo")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.MQTT.Enabled() && (c.MQTT.Port <= 0 || c.MQTT.Port > 65535) {
		return errors.Errorf("mqtt.port %d out of range", c.MQTT.Port)
	}
	return nil
}

// Controller returns the configuration of the PCA9685 controller.
func (c Config) Controller() pca9685.Config {
	return pca9685.Config{
		PowerOnSettle:           c.Settle.PowerOn,
		OscillatorRestartSettle: c.Settle.OscillatorRestart,
		Servo: pca9685.ServoRange{
			MinPulse:    c.Servo.MinPulse,
			MaxPulse:    c.Servo.MaxPulse,
			CenterPulse: c.Servo.CenterPulse,
		},
		BlockWrites: c.BlockWrites,
	}
}
