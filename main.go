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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	aerr "github.com/ewoutp/go-aggregate-error"
	terminate "github.com/pulcy/go-terminate"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/ServoDriver/pkg/config"
	"github.com/binkynet/ServoDriver/pkg/logging"
	"github.com/binkynet/ServoDriver/pkg/mqtt"
	"github.com/binkynet/ServoDriver/pkg/server"
	"github.com/binkynet/ServoDriver/pkg/service"
	"github.com/binkynet/ServoDriver/pkg/ui"
)

const (
	projectName = "BinkyNet Servo Driver"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var configPath string
	var levelFlag string
	var logFile string
	var showUI bool
	cfg := config.Default()

	pflag.StringVarP(&configPath, "config", "c", "", "Path of the configuration file")
	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVar(&logFile, "log-file", "", "Append log messages to this file")
	pflag.BoolVar(&showUI, "ui", false, "Show the interactive terminal UI")
	pflag.StringVar(&cfg.Bus, "bus", cfg.Bus, "Location of the I2C bus device")
	pflag.BoolVar(&cfg.Virtual, "virtual", cfg.Virtual, "Use an emulated PCA9685 instead of hardware")
	pflag.Float64Var(&cfg.Frequency, "frequency", cfg.Frequency, "PWM frequency in Hz")
	pflag.BoolVar(&cfg.BlockWrites, "block-writes", cfg.BlockWrites, "Send channel updates as single block transfers")
	pflag.IntVar(&cfg.Recovery.SCLPin, "scl-pin", cfg.Recovery.SCLPin, "GPIO pin of SCL used to recover a stuck bus (-1 disables)")
	pflag.StringVar(&cfg.HTTP.Host, "host", cfg.HTTP.Host, "Host address the HTTP server will listen on")
	pflag.IntVar(&cfg.HTTP.Port, "port", cfg.HTTP.Port, "Port the HTTP server will listen on")
	pflag.StringVar(&cfg.MQTT.Host, "mqtt-host", cfg.MQTT.Host, "Host of the MQTT broker (empty disables MQTT)")
	pflag.IntVar(&cfg.MQTT.Port, "mqtt-port", cfg.MQTT.Port, "Port of the MQTT broker")
	pflag.StringVar(&cfg.MQTT.TopicPrefix, "mqtt-topic-prefix", cfg.MQTT.TopicPrefix, "Prefix of all MQTT topics")
	pflag.Parse()

	if configPath != "" {
		// Flags given on the command line override the configuration file
		fileCfg, err := config.Load(configPath)
		if err != nil {
			Exitf("Failed to load configuration: %v\n", err)
		}
		cfg = mergeFlags(fileCfg, cfg)
	}
	if err := cfg.Validate(); err != nil {
		Exitf("Invalid configuration: %v\n", err)
	}

	var console io.Writer = os.Stderr
	if showUI {
		// Log lines would corrupt the terminal UI
		console = nil
	}
	logger, logCloser, err := logging.NewLogger(console, logFile, levelFlag)
	if err != nil {
		Exitf("Failed to initialize logging: %v\n", err)
	}

	svc, err := service.NewService(service.Config{
		Bus:        cfg.Bus,
		Virtual:    cfg.Virtual,
		Frequency:  cfg.Frequency,
		SCLPin:     cfg.Recovery.SCLPin,
		Controller: cfg.Controller(),
	}, service.Dependencies{
		Log: logger,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	httpServer, err := server.New(server.Config{
		Host: cfg.HTTP.Host,
		Port: cfg.HTTP.Port,
	}, logger, svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if !showUI {
		fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	}
	logger.Info().
		Str("version", projectVersion).
		Str("build", projectBuild).
		Str("bus", cfg.Bus).
		Bool("virtual", cfg.Virtual).
		Msg("Starting")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return httpServer.Run(ctx) })
	if cfg.MQTT.Enabled() {
		bridge := mqtt.New(mqtt.Config{
			Host:        cfg.MQTT.Host,
			Port:        cfg.MQTT.Port,
			UserName:    cfg.MQTT.UserName,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger, svc)
		g.Go(func() error { return bridge.Run(ctx) })
	}
	if showUI {
		g.Go(func() error {
			defer cancel()
			return ui.Run(ctx, svc)
		})
	}

	var ae aerr.AggregateError
	if err := g.Wait(); err != nil {
		ae.Add(err)
	}
	if err := svc.Close(); err != nil && !service.IsClosed(err) {
		ae.Add(err)
	}
	if err := logCloser.Close(); err != nil {
		ae.Add(err)
	}
	if err := ae.AsError(); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
}

// mergeFlags copies all flags that were set on the command line
// into the given configuration.
func mergeFlags(cfg, flags config.Config) config.Config {
	changed := pflag.CommandLine.Changed
	if changed("bus") {
		cfg.Bus = flags.Bus
	}
	if changed("virtual") {
		cfg.Virtual = flags.Virtual
	}
	if changed("frequency") {
		cfg.Frequency = flags.Frequency
	}
	if changed("block-writes") {
		cfg.BlockWrites = flags.BlockWrites
	}
	if changed("scl-pin") {
		cfg.Recovery.SCLPin = flags.Recovery.SCLPin
	}
	if changed("host") {
		cfg.HTTP.Host = flags.HTTP.Host
	}
	if changed("port") {
		cfg.HTTP.Port = flags.HTTP.Port
	}
	if changed("mqtt-host") {
		cfg.MQTT.Host = flags.MQTT.Host
	}
	if changed("mqtt-port") {
		cfg.MQTT.Port = flags.MQTT.Port
	}
	if changed("mqtt-topic-prefix") {
		cfg.MQTT.TopicPrefix = flags.MQTT.TopicPrefix
	}
	return cfg
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
