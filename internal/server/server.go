// Package server is the arena's HTTP API: off-chain comments, image
// upload, battle read views and a websocket snapshot stream.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/memed/arena/internal/battle"
	"github.com/memed/arena/internal/domain"
	"github.com/memed/arena/internal/metrics"
	"github.com/memed/arena/internal/services"
	"github.com/memed/arena/pkg/config"
	"github.com/memed/arena/pkg/logger"
	"github.com/memed/arena/pkg/pinata"
	"github.com/memed/arena/pkg/ratelimit"
	"github.com/memed/arena/pkg/sigchan"
)

// BattleReader is the read side of services.BattleService.
type BattleReader interface {
	Snapshot(ctx context.Context) (services.Snapshot, error)
	Leaderboard(ctx context.Context, limit int) ([]battle.LeaderboardRow, error)
	TokenStats(ctx context.Context, token common.Address) (domain.TokenStats, error)
	TokenStatsBatch(ctx context.Context, tokens []common.Address) (map[common.Address]domain.TokenStats, error)
	Subscribe() (*sigchan.Chan, func())
}

// Pinner stores uploaded files on IPFS.
type Pinner interface {
	PinFile(ctx context.Context, path, name string) (pinata.PinResult, error)
	GatewayURL(hash string) string
}

// Deps are the collaborators a Server needs. Battles and Pinner may be nil;
// their routes then answer 503.
type Deps struct {
	Battles BattleReader
	Pinner  Pinner
	Metrics *metrics.Metrics
	Limits  *ratelimit.Manager
}

type Server struct {
	cfg      config.ServerConfig
	db       *sql.DB
	deps     Deps
	validate *validator.Validate
	log      *logrus.Entry
}

func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = "tmp"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if deps.Limits == nil {
		deps.Limits = ratelimit.NewManager(ratelimit.Limits{})
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := os.MkdirAll(cfg.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir tmp dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Server{
		cfg:      cfg,
		db:       db,
		deps:     deps,
		validate: newValidator(),
		log:      logger.WithField("component", "http"),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.deps.Metrics.GinMiddleware(), s.cors())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	r.POST("/comment", s.limit(ratelimit.APIWrite), s.handleCommentCreate)
	r.GET("/comment/:tokenAddress", s.handleCommentsList)
	r.POST("/upload", s.limit(ratelimit.APIUpload), s.handleUpload)

	r.GET("/battles", s.handleBattles)
	r.GET("/battles/stream", s.handleBattleStream)
	r.GET("/leaderboard", s.handleLeaderboard)
	r.GET("/tokens/stats", s.handleTokenStatsBatch)
	r.GET("/tokens/:address/stats", s.handleTokenStats)

	return r
}

// cors mirrors the allowed origin; an empty list or "*" allows any.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.cfg.CORSOrigins) == 0 {
		return "*"
	}
	for _, o := range s.cfg.CORSOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func (s *Server) limit(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.deps.Limits.Allow(name) {
			writeError(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

const requestIDHeader = "X-Request-ID"

// requestID echoes the caller's X-Request-ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) logFor(c *gin.Context) *logrus.Entry {
	return s.log.WithField("request_id", c.GetString("request_id"))
}
