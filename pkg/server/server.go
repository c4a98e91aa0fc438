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
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/binkynet/ServoDriver/pkg/service"
)

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	Port int
}

// Server runs the HTTP server for the service.
type Server struct {
	Config
	log     zerolog.Logger
	service service.Service
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, svc service.Service) (*Server, error) {
	return &Server{
		Config:  cfg,
		log:     log.With().Str("component", "http-server").Logger(),
		service: svc,
	}, nil
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", httpAddr)
	}
	httpSrv := http.Server{
		Handler: s.router(),
	}

	serveErrors := make(chan error, 1)
	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			serveErrors <- err
		}
		close(serveErrors)
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
	}()

	// Wait until context closed
	select {
	case <-ctx.Done():
	case err := <-serveErrors:
		if err != nil {
			return errors.Wrap(err, "failed to serve HTTP server")
		}
	}

	log.Info().Msg("Closing HTTP server")
	return httpSrv.Shutdown(context.Background())
}

// router builds the HTTP request router.
func (s *Server) router() *echo.Echo {
	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/frequency", s.handleGetFrequency)
	api.PUT("/frequency", s.handleSetFrequency)
	api.GET("/channels/:channel", s.handleGetChannel)
	api.PUT("/channels/:channel/pwm", s.handleSetPWM)
	api.PUT("/channels/:channel/pulse", s.handleSetPulse)
	api.PUT("/channels/:channel/angle", s.handleSetAngle)
	api.POST("/channels/:channel/center", s.handleCenter)
	api.POST("/channels/:channel/off", s.handleOff)
	return r
}
