// Copyright 2023 Ewout Prangsma
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

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/binkynet/ServoDriver/pkg/pca9685"
	"github.com/binkynet/ServoDriver/pkg/service"
)

const (
	// Angle change per left/right key press
	stepDegrees     = 5.0
	refreshInterval = time.Second * 2
	requestTimeout  = time.Second * 2
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	offStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Center key.Binding
	Off    key.Binding
	Quit   key.Binding
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Center, k.Off, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev channel")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next channel")),
	Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-5°")),
	Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+5°")),
	Center: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "center")),
	Off:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "off")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Root is the servo jog screen.
type Root struct {
	svc       service.Service
	channel   int
	angles    [pca9685.ChannelCount]float64
	states    [pca9685.ChannelCount]*service.ChannelState
	frequency float64
	lastErr   error
	help      help.Model
	width     int
}

var _ tea.Model = Root{}

// New creates the root model for the given service.
func New(svc service.Service) Root {
	return Root{
		svc:  svc,
		help: help.New(),
	}
}

// Run the UI until the user quits or the context is canceled.
func Run(ctx context.Context, svc service.Service) error {
	p := tea.NewProgram(New(svc), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

type stateMsg service.ChannelState
type frequencyMsg float64
type errMsg struct{ error }
type refreshMsg struct{}

// Init is the first function that will be called.
func (r Root) Init() tea.Cmd {
	return tea.Batch(r.doRefresh(), doScheduleRefresh())
}

// Update is called when a message is received.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.help.Width = msg.Width
	case stateMsg:
		state := service.ChannelState(msg)
		if state.Channel >= 0 && state.Channel < pca9685.ChannelCount {
			r.states[state.Channel] = &state
		}
		r.lastErr = nil
	case frequencyMsg:
		r.frequency = float64(msg)
	case errMsg:
		r.lastErr = msg.error
	case refreshMsg:
		return r, tea.Batch(r.doRefresh(), doScheduleRefresh())
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return r, tea.Quit
		case key.Matches(msg, keys.Up):
			if r.channel > 0 {
				r.channel--
			}
		case key.Matches(msg, keys.Down):
			if r.channel < pca9685.ChannelCount-1 {
				r.channel++
			}
		case key.Matches(msg, keys.Left):
			return r.moveBy(-stepDegrees)
		case key.Matches(msg, keys.Right):
			return r.moveBy(stepDegrees)
		case key.Matches(msg, keys.Center):
			r.angles[r.channel] = 0
			ch := r.channel
			return r, r.doChange(func(ctx context.Context) (service.ChannelState, error) {
				return r.svc.Center(ctx, ch)
			})
		case key.Matches(msg, keys.Off):
			ch := r.channel
			return r, r.doChange(func(ctx context.Context) (service.ChannelState, error) {
				return r.svc.Off(ctx, ch)
			})
		}
	}
	return r, nil
}

// moveBy changes the angle of the selected channel.
func (r Root) moveBy(delta float64) (tea.Model, tea.Cmd) {
	ch := r.channel
	angle := pca9685.ClampAngle(r.angles[ch] + delta)
	r.angles[ch] = angle
	return r, r.doChange(func(ctx context.Context) (service.ChannelState, error) {
		return r.svc.SetAngle(ctx, ch, angle)
	})
}

// View renders the channel table.
func (r Root) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("PCA9685 servo driver"))
	sb.WriteString("  ")
	sb.WriteString(humanize.SIWithDigits(r.frequency, 2, "Hz"))
	sb.WriteString("\n\n")
	for ch := 0; ch < pca9685.ChannelCount; ch++ {
		line := fmt.Sprintf("%2d  %6.1f°  %s", ch, r.angles[ch], formatState(r.states[ch]))
		switch {
		case ch == r.channel:
			line = selectedStyle.Render("> " + line)
		case r.states[ch] != nil && r.states[ch].FullOff:
			line = offStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if r.lastErr != nil {
		sb.WriteString(errorStyle.Render(r.lastErr.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(r.help.View(keys))
	return sb.String()
}

// formatState formats the pulse of a channel.
func formatState(state *service.ChannelState) string {
	switch {
	case state == nil:
		return "-"
	case state.FullOff:
		return "off"
	case state.FullOn:
		return "on"
	default:
		return fmt.Sprintf("%4d-%4d  %s", state.On, state.Off, humanize.SIWithDigits(state.PulseMicroseconds/1e6, 3, "s"))
	}
}

func (r Root) doChange(fn func(ctx context.Context) (service.ChannelState, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		state, err := fn(ctx)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg(state)
	}
}

// doRefresh reads back the frequency and all channels.
func (r Root) doRefresh() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			hz, err := r.svc.Frequency(ctx)
			if err != nil {
				return errMsg{err}
			}
			return frequencyMsg(hz)
		},
	}
	for ch := 0; ch < pca9685.ChannelCount; ch++ {
		ch := ch
		cmds = append(cmds, r.doChange(func(ctx context.Context) (service.ChannelState, error) {
			return r.svc.GetChannel(ctx, ch)
		}))
	}
	return tea.Batch(cmds...)
}

func doScheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg{}
	})
}
