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
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/ServoDriver/pkg/bridge"
	"github.com/binkynet/ServoDriver/pkg/pca9685"
	"github.com/binkynet/ServoDriver/pkg/service"
)

func TestParseCommandTopic(t *testing.T) {
	prefix := "/servodriver/"
	tests := []struct {
		Topic   string
		Channel int
		Command string
		OK      bool
	}{
		{"/servodriver/channel/0/angle", 0, CommandAngle, true},
		{"/servodriver/channel/15/pulse", 15, CommandPulse, true},
		{"/servodriver/channel/3/center", 3, CommandCenter, true},
		{"/servodriver/channel/3/off", 3, CommandOff, true},
		// Out of range channels are rejected by the controller
		{"/servodriver/channel/16/angle", 16, CommandAngle, true},
		{"/servodriver/channel/3/state", 0, "", false},
		{"/servodriver/channel/x/angle", 0, "", false},
		{"/servodriver/channel/3", 0, "", false},
		{"/servodriver/channel/3/angle/extra", 0, "", false},
		{"/other/channel/3/angle", 0, "", false},
		{"/servodriver/pin/3/angle", 0, "", false},
	}
	for _, test := range tests {
		channel, command, ok := parseCommandTopic(prefix, test.Topic)
		assert.Equal(t, test.OK, ok, test.Topic)
		assert.Equal(t, test.Channel, channel, test.Topic)
		assert.Equal(t, test.Command, command, test.Topic)
	}
}

func TestStateTopic(t *testing.T) {
	assert.Equal(t, "/servodriver/channel/7/state", StateTopic("/servodriver/", 7))
}

func TestParseNumber(t *testing.T) {
	v, err := parseNumber([]byte(" -45.5\n"))
	require.NoError(t, err)
	assert.Equal(t, -45.5, v)

	_, err = parseNumber([]byte(""))
	assert.Error(t, err)
	_, err = parseNumber([]byte("left"))
	assert.Error(t, err)
}

type published struct {
	Topic   string
	Payload []byte
}

func newTestBridge(t *testing.T) (*Bridge, *pca9685.VirtualDevice, chan published) {
	dev := pca9685.NewVirtualDevice()
	svc, err := service.NewService(service.Config{
		Frequency: 50,
	}, service.Dependencies{
		Log: zerolog.Nop(),
		Open: func(location string, address uint8) (bridge.I2CDevice, error) {
			return dev, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	require.NoError(t, svc.Configure(context.Background()))

	b := New(Config{TopicPrefix: "/servodriver"}, zerolog.Nop(), svc)
	messages := make(chan published, 16)
	b.publish = func(topic string, payload []byte) error {
		messages <- published{Topic: topic, Payload: payload}
		return nil
	}
	unregister := svc.RegisterChangeReceiver(b.onChange)
	t.Cleanup(unregister)
	return b, dev, messages
}

func TestHandleCommand(t *testing.T) {
	b, dev, messages := newTestBridge(t)
	ctx := context.Background()
	assert.Equal(t, "/servodriver/", b.topicPrefix)

	require.NoError(t, b.handleCommand(ctx, 2, CommandAngle, []byte("90")))
	msg := <-messages
	assert.Equal(t, "/servodriver/channel/2/state", msg.Topic)
	var state service.ChannelState
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.Equal(t, 2, state.Channel)
	assert.Equal(t, uint16(555), state.Off)
	assert.Equal(t, uint8(555&0xFF), dev.Register(pca9685.RegLED0OnL+8+2))

	require.NoError(t, b.handleCommand(ctx, 2, CommandPulse, []byte("1500")))
	msg = <-messages
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.Equal(t, uint16(307), state.Off)

	require.NoError(t, b.handleCommand(ctx, 2, CommandCenter, nil))
	msg = <-messages
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.Equal(t, uint16(317), state.Off)

	require.NoError(t, b.handleCommand(ctx, 2, CommandOff, nil))
	msg = <-messages
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.True(t, state.FullOff)
}

func TestHandleCommandErrors(t *testing.T) {
	b, _, messages := newTestBridge(t)
	ctx := context.Background()

	assert.Error(t, b.handleCommand(ctx, 2, CommandAngle, []byte("abc")))
	assert.Error(t, b.handleCommand(ctx, 2, "spin", nil))
	err := b.handleCommand(ctx, 16, CommandCenter, nil)
	assert.True(t, pca9685.IsInvalidArgument(err))
	assert.Len(t, messages, 0)
}
