// Package server starts the HTTP and gRPC endpoints shared by the commands.
package server

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	grpcapi "speech-to-data/internal/api/grpc"
	"speech-to-data/internal/app"
	httpapi "speech-to-data/internal/http"
	"speech-to-data/internal/observability"
)

// Servers holds whichever endpoints the configuration enabled.
type Servers struct {
	http     *observability.Server
	grpc     *grpcapi.Server
	grpcPort string
}

// New builds the HTTP server when Service.HTTPAddr is set and the gRPC
// server when Service.GRPCPort is set.
func New(a *app.Application, opts httpapi.Options) *Servers {
	s := &Servers{grpcPort: a.Cfg.Service.GRPCPort}
	if addr := a.Cfg.Service.HTTPAddr; addr != "" {
		s.http = observability.NewServer(addr, httpapi.NewRouter(a, opts))
	}
	if s.grpcPort != "" {
		s.grpc = grpcapi.NewServer(a.Status)
	}
	return s
}

// Go starts every enabled server on g.
func (s *Servers) Go(g *errgroup.Group) {
	if s.http != nil {
		g.Go(s.http.Serve)
	}
	if s.grpc != nil {
		g.Go(func() error {
			log.Info().Str("port", s.grpcPort).Msg("Starting gRPC server")
			return s.grpc.Serve(s.grpcPort)
		})
	}
}

// Shutdown stops every enabled server.
func (s *Servers) Shutdown(ctx context.Context) {
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}
	if s.grpc != nil {
		log.Info().Msg("Shutting down gRPC server")
		s.grpc.Shutdown()
	}
}
