// Package api exposes a read-only status surface: REST endpoints for
// position and trade history plus a WebSocket stream of lifecycle events.
// Nothing here can place or cancel an order.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/database"
	"consensus-trading-bot/internal/events"
	"consensus-trading-bot/internal/position"
)

// MarketStatus is one market instance's snapshot for the status endpoint.
type MarketStatus struct {
	Market    string           `json:"market"`
	Symbol    string           `json:"symbol"`
	Timeframe string           `json:"timeframe"`
	Enabled   bool             `json:"enabled"`
	Position  *position.Record `json:"position,omitempty"`
}

// StatusFunc supplies the current per-market snapshots.
type StatusFunc func() []MarketStatus

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *database.Repository
	status     StatusFunc
	hub        *WSHub
	auth       *AuthManager
	cfg        config.ServerConfig
	log        zerolog.Logger
	startedAt  time.Time
}

// NewServer creates the status API server. repo may be nil when trade
// history is disabled; auth may be nil when the API is unguarded.
func NewServer(cfg config.ServerConfig, authCfg config.AuthConfig, repo *database.Repository,
	bus *events.EventBus, status StatusFunc, log zerolog.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:    router,
		repo:      repo,
		status:    status,
		hub:       NewWSHub(log),
		cfg:       cfg,
		log:       log,
		startedAt: time.Now(),
	}
	if authCfg.Enabled {
		s.auth = NewAuthManager(authCfg)
	}

	bus.SubscribeAll(s.hub.BroadcastEvent)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.auth != nil {
		s.router.POST("/api/login", s.handleLogin)
	}

	apiGroup := s.router.Group("/api")
	if s.auth != nil {
		apiGroup.Use(Middleware(s.auth))
	}
	apiGroup.GET("/status", s.handleStatus)
	apiGroup.GET("/positions", s.handlePositions)
	apiGroup.GET("/trades", s.handleTrades)

	s.router.GET("/ws", s.hub.HandleWebSocket)
}

// Start runs the hub and the HTTP listener.
func (s *Server) Start() error {
	go s.hub.Run()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.router,
	}
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("status API listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	jwtToken, err := s.auth.Login(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": jwtToken})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime":  time.Since(s.startedAt).String(),
		"markets": s.status(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	open := make([]MarketStatus, 0)
	for _, m := range s.status() {
		if m.Position != nil {
			open = append(open, m)
		}
	}
	c.JSON(http.StatusOK, gin.H{"positions": open})
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []database.Trade{}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	trades, err := s.repo.RecentTrades(ctx, 100)
	if err != nil {
		s.log.Warn().Err(err).Msg("trade history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade history unavailable"})
		return
	}
	if trades == nil {
		trades = []database.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}
