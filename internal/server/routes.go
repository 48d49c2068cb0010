package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/auth"
	"github.com/danmuck/votectl/internal/client"
	"github.com/danmuck/votectl/internal/protocol"
)

type addressResponse struct {
	Owner    string `json:"owner"`
	VotingID string `json:"voting_id"`
	Mode     string `json:"derivation"`
	Address  string `json:"address"`
	Bump     uint8  `json:"bump"`
}

type votingResponse struct {
	addressResponse
	Schema string                `json:"schema"`
	Voting protocol.VotingRecord `json:"voting"`
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"uptime":     time.Since(s.Appeared).String(),
			"service":    serviceName,
			"schema":     s.reader.Schema().String(),
			"derivation": s.reader.Mode().String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	if s.guard != nil {
		v1.Use(auth.Require(s.guard))
	}
	v1.GET("/address/:owner/:voting_id", func(c *gin.Context) {
		resp, ok := s.resolve(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	v1.GET("/votings/:owner/:voting_id", func(c *gin.Context) {
		resp, ok := s.resolve(c)
		if !ok {
			return
		}
		owner := solana.MustPublicKeyFromBase58(resp.Owner)
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		rec, err := s.reader.ReadVoting(ctx, owner, resp.VotingID)
		if err != nil {
			status, msg := readFailure(err)
			log.Warn().
				Err(err).
				Str("owner", resp.Owner).
				Str("voting_id", resp.VotingID).
				Int("status", status).
				Msg("server.ReadVoting")
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, votingResponse{
			addressResponse: resp,
			Schema:          s.reader.Schema().String(),
			Voting:          rec,
		})
	})
}

// resolve parses the owner and voting id and derives the storage address,
// writing a 400 when either is unusable.
func (s *Server) resolve(c *gin.Context) (addressResponse, bool) {
	owner, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param("owner")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner is not a base58 public key"})
		return addressResponse{}, false
	}
	votingID := c.Param("voting_id")
	derived, err := s.reader.VotingAddress(owner, votingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return addressResponse{}, false
	}
	return addressResponse{
		Owner:    owner.String(),
		VotingID: votingID,
		Mode:     s.reader.Mode().String(),
		Address:  derived.Address.String(),
		Bump:     derived.Bump,
	}, true
}

func readFailure(err error) (int, string) {
	switch {
	case errors.Is(err, client.ErrVotingNotFound):
		return http.StatusNotFound, "voting not found"
	case errors.Is(err, protocol.ErrTruncated), errors.Is(err, protocol.ErrSchemaMismatch), errors.Is(err, protocol.ErrInvalidLength):
		return http.StatusUnprocessableEntity, "stored voting does not match the configured schema"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "ledger read timed out"
	default:
		return http.StatusBadGateway, "ledger read failed"
	}
}
