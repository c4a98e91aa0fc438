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

package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/binkynet/ServoDriver/pkg/pca9685"
	"github.com/binkynet/ServoDriver/pkg/service"
)

type frequencyMessage struct {
	Hertz *float64 `json:"hertz"`
}

type pwmRequest struct {
	On  *uint16 `json:"on"`
	Off *uint16 `json:"off"`
}

type pulseRequest struct {
	Microseconds *float64 `json:"microseconds"`
}

type angleRequest struct {
	Degrees *float64 `json:"degrees"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleGetFrequency(c echo.Context) error {
	hz, err := s.service.Frequency(c.Request().Context())
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(http.StatusOK, frequencyMessage{Hertz: &hz})
}

func (s *Server) handleSetFrequency(c echo.Context) error {
	var req frequencyMessage
	if err := c.Bind(&req); err != nil || req.Hertz == nil {
		return badRequest(c, "body must contain hertz")
	}
	if err := s.service.SetFrequency(c.Request().Context(), *req.Hertz); err != nil {
		return s.sendError(c, err)
	}
	return s.handleGetFrequency(c)
}

func (s *Server) handleGetChannel(c echo.Context) error {
	channel, err := channelParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	state, err := s.service.GetChannel(c.Request().Context(), channel)
	return s.sendState(c, state, err)
}

func (s *Server) handleSetPWM(c echo.Context) error {
	channel, err := channelParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req pwmRequest
	if err := c.Bind(&req); err != nil || req.On == nil || req.Off == nil {
		return badRequest(c, "body must contain on and off")
	}
	state, err := s.service.SetPWM(c.Request().Context(), channel, *req.On, *req.Off)
	return s.sendState(c, state, err)
}

func (s *Server) handleSetPulse(c echo.Context) error {
	channel, err := channelParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req pulseRequest
	if err := c.Bind(&req); err != nil || req.Microseconds == nil {
		return badRequest(c, "body must contain microseconds")
	}
	state, err := s.service.SetPulse(c.Request().Context(), channel, *req.Microseconds)
	return s.sendState(c, state, err)
}

func (s *Server) handleSetAngle(c echo.Context) error {
	channel, err := channelParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req angleRequest
	if err := c.Bind(&req); err != nil || req.Degrees == nil {
		return badRequest(c, "body must contain degrees")
	}
	state, err := s.service.SetAngle(c.Request().Context(), channel, *req.Degrees)
	return s.sendState(c, state, err)
}

func (s *Server) handleCenter(c echo.Context) error {
	channel, err := channelParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	state, err := s.service.Center(c.Request().Context(), channel)
	return s.sendState(c, state, err)
}

func (s *Server) handleOff(c echo.Context) error {
	channel, err := channelParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	state, err := s.service.Off(c.Request().Context(), channel)
	return s.sendState(c, state, err)
}

// channelParam parses the channel path parameter.
func channelParam(c echo.Context) (int, error) {
	return strconv.Atoi(c.Param("channel"))
}

func (s *Server) sendState(c echo.Context, state service.ChannelState, err error) error {
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// sendError maps the given error onto a HTTP status code.
func (s *Server) sendError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case pca9685.IsInvalidArgument(err):
		code = http.StatusBadRequest
	case pca9685.IsTransportError(err):
		code = http.StatusBadGateway
	case service.IsClosed(err):
		code = http.StatusServiceUnavailable
	}
	s.log.Debug().Err(err).Int("code", code).Str("path", c.Path()).Msg("Request failed")
	return c.JSON(code, errorResponse{Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
