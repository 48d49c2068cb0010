// Package server exposes a read-only HTTP view of voting records.
package server

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/address"
	"github.com/danmuck/votectl/internal/auth"
	"github.com/danmuck/votectl/internal/observability"
	"github.com/danmuck/votectl/internal/protocol"
)

const serviceName = "votectl"

// VotingReader is the query side of the voting client.
type VotingReader interface {
	ReadVoting(ctx context.Context, owner solana.PublicKey, votingID string) (protocol.VotingRecord, error)
	VotingAddress(owner solana.PublicKey, votingID string) (address.Derived, error)
	Schema() protocol.SchemaVersion
	Mode() address.Mode
}

type Server struct {
	Addr     string
	Appeared time.Time

	reader  VotingReader
	router  *gin.Engine
	guard   auth.Validator
	timeout time.Duration
}

// New builds the query server. A nil guard leaves the /v1 routes open.
func New(reader VotingReader, addr string, corsOrigins []string, guard auth.Validator) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Logger("server")))
	r.Use(observability.RequestMetricsMiddleware(serviceName))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", observability.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		Addr:     addr,
		Appeared: time.Now(),
		reader:   reader,
		router:   r,
		guard:    guard,
		timeout:  15 * time.Second,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	log.Info().
		Str("addr", s.Addr).
		Str("schema", s.reader.Schema().String()).
		Str("derivation", s.reader.Mode().String()).
		Msg("server.Serve")
	return s.router.Run(s.Addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
