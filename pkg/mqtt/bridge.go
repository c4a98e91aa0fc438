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
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoDriver/pkg/service"
)

const (
	publishTimeout = time.Millisecond * 200
	commandTimeout = time.Second * 5
	disconnectMsec = 250
)

// Commands accepted on <prefix>channel/<n>/<command>.
const (
	CommandAngle  = "angle"
	CommandPulse  = "pulse"
	CommandCenter = "center"
	CommandOff    = "off"
	stateSuffix   = "state"
)

// Config of the MQTT bridge.
type Config struct {
	Host        string
	Port        int
	UserName    string
	Password    string
	ClientID    string
	TopicPrefix string
}

// Bridge forwards MQTT commands to the service and publishes
// channel state changes.
type Bridge struct {
	log         zerolog.Logger
	config      Config
	topicPrefix string
	service     service.Service
	mutex       sync.Mutex
	client      mqttapi.Client
	// publish sends a retained message, overridable in tests
	publish func(topic string, payload []byte) error
}

// New creates a new MQTT bridge.
func New(cfg Config, log zerolog.Logger, svc service.Service) *Bridge {
	b := &Bridge{
		log:         log.With().Str("component", "mqtt").Logger(),
		config:      cfg,
		topicPrefix: strings.TrimSuffix(cfg.TopicPrefix, "/") + "/",
		service:     svc,
	}
	b.publish = b.publishRetained
	return b
}

// Run connects to the broker and processes commands until the given
// context is canceled. Failed connections are retried.
func (b *Bridge) Run(ctx context.Context) error {
	unregister := b.service.RegisterChangeReceiver(b.onChange)
	defer unregister()

	untilCanceled(ctx, b.log, "MQTT session", minRetryDelay, maxRetryDelay, func() error {
		return b.runSession(ctx)
	})
	return nil
}

// runSession connects to the broker and waits until the given context
// is canceled.
func (b *Bridge) runSession(ctx context.Context) error {
	brokerAddress := net.JoinHostPort(b.config.Host, strconv.Itoa(b.config.Port))
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + brokerAddress).
		SetClientID(b.config.ClientID)
	if b.config.UserName != "" {
		opts.SetUsername(b.config.UserName)
		opts.SetPassword(b.config.Password)
	}
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	subscribeTopic := b.topicPrefix + "channel/+/+"
	opts.SetOnConnectHandler(func(c mqttapi.Client) {
		// (Re)subscribe after every connect
		if token := c.Subscribe(subscribeTopic, 0, b.onMessage); token.Wait() && token.Error() != nil {
			b.log.Error().Err(token.Error()).Str("topic", subscribeTopic).Msg("Failed to subscribe")
		}
	})

	// Connect client
	client := mqttapi.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "failed to connect to mqtt broker at %s", brokerAddress)
	}
	b.mutex.Lock()
	b.client = client
	b.mutex.Unlock()
	b.log.Info().Str("broker", brokerAddress).Msg("Connected to MQTT broker")

	<-ctx.Done()
	b.mutex.Lock()
	b.client = nil
	b.mutex.Unlock()
	client.Disconnect(disconnectMsec)
	b.log.Info().Msg("Disconnected from MQTT broker")
	return nil
}

// Receive messages
func (b *Bridge) onMessage(client mqttapi.Client, msg mqttapi.Message) {
	channel, command, ok := parseCommandTopic(b.topicPrefix, msg.Topic())
	if !ok {
		// Not a command
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.handleCommand(ctx, channel, command, msg.Payload()); err != nil {
		b.log.Warn().Err(err).
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("Failed to execute MQTT command")
	}
}

// handleCommand executes a single command on the service.
func (b *Bridge) handleCommand(ctx context.Context, channel int, command string, payload []byte) error {
	switch command {
	case CommandAngle:
		v, err := parseNumber(payload)
		if err != nil {
			return err
		}
		_, err = b.service.SetAngle(ctx, channel, v)
		return err
	case CommandPulse:
		v, err := parseNumber(payload)
		if err != nil {
			return err
		}
		_, err = b.service.SetPulse(ctx, channel, v)
		return err
	case CommandCenter:
		_, err := b.service.Center(ctx, channel)
		return err
	case CommandOff:
		_, err := b.service.Off(ctx, channel)
		return err
	default:
		return errors.Errorf("unknown command '%s'", command)
	}
}

// onChange publishes the state of a changed channel.
func (b *Bridge) onChange(state service.ChannelState) {
	topic := StateTopic(b.topicPrefix, state.Channel)
	payload, err := json.Marshal(state)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to encode channel state")
		return
	}
	if err := b.publish(topic, payload); err != nil {
		b.log.Error().Err(err).
			Str("topic", topic).
			Msg("Failed to publish channel state")
	}
}

func (b *Bridge) publishRetained(topic string, payload []byte) error {
	b.mutex.Lock()
	client := b.client
	b.mutex.Unlock()
	if client == nil {
		return errors.New("not connected")
	}
	token := client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("failed to deliver MQTT message in time")
	}
	return token.Error()
}

// StateTopic returns the topic on which the state of a channel is published.
func StateTopic(prefix string, channel int) string {
	return fmt.Sprintf("%schannel/%d/%s", prefix, channel, stateSuffix)
}

// parseCommandTopic splits <prefix>channel/<n>/<command> into its parts.
// State topics and unknown commands are rejected.
func parseCommandTopic(prefix, topic string) (int, string, bool) {
	if !strings.HasPrefix(topic, prefix) {
		return 0, "", false
	}
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(parts) != 3 || parts[0] != "channel" {
		return 0, "", false
	}
	channel, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", false
	}
	switch parts[2] {
	case CommandAngle, CommandPulse, CommandCenter, CommandOff:
		return channel, parts[2], true
	default:
		return 0, "", false
	}
}

// parseNumber parses a decimal payload.
func parseNumber(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("invalid number '%s'", s)
	}
	return v, nil
}
