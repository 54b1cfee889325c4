// Package server exposes the cards and the control panel over HTTP and a
// websocket stream.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/app/cards"
	"github.com/ght123247/UIproj/internal/app/control"
	"github.com/ght123247/UIproj/internal/domain"
	"github.com/ght123247/UIproj/internal/ports"
)

//go:embed web/index.html
var indexHTML []byte

const limiterIdle = 10 * time.Minute

type Options struct {
	RefreshInterval time.Duration
	ControlRate     float64
	ControlBurst    int
	Obs             ports.Observability
}

type Server struct {
	deck    *cards.Deck
	panel   *control.Panel
	obs     ports.Observability
	hub     *Hub
	limiter *RateLimiter
	refresh time.Duration
	engine  *gin.Engine
}

type modeRequest struct {
	Mode domain.ControlMode `json:"mode" binding:"required,oneof=speed torque"`
}

type setpointRequest struct {
	RPM    *float64 `json:"rpm" binding:"omitempty,gte=0"`
	Torque *float64 `json:"torque" binding:"omitempty,gte=0"` // mN·m
}

// Message is the websocket payload.
type Message struct {
	Type    string           `json:"type"`
	Cards   []cards.View     `json:"cards"`
	Control control.Snapshot `json:"control"`
	SentAt  time.Time        `json:"sent_at"`
}

func New(deck *cards.Deck, panel *control.Panel, opts Options) *Server {
	if opts.Obs == nil {
		opts.Obs = observability.Discard{}
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 500 * time.Millisecond
	}
	if opts.ControlRate <= 0 {
		opts.ControlRate = 5
	}
	if opts.ControlBurst <= 0 {
		opts.ControlBurst = 10
	}

	s := &Server{
		deck:    deck,
		panel:   panel,
		obs:     opts.Obs,
		hub:     NewHub(opts.Obs),
		limiter: NewRateLimiter(rate.Limit(opts.ControlRate), opts.ControlBurst),
		refresh: opts.RefreshInterval,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders(), s.logErrors())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cards": s.deck.IDs()})
	})
	r.GET("/ws", s.hub.HandleWebSocket(s.message))

	api := r.Group("/api")
	api.GET("/cards", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"cards": s.deck.Views()})
	})
	api.GET("/cards/:id", func(c *gin.Context) {
		v, ok := s.deck.View(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		c.JSON(http.StatusOK, v)
	})
	api.GET("/control", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.panel.Snapshot())
	})

	ctl := api.Group("/control", s.limiter.Middleware())
	ctl.POST("/mode", s.handleMode)
	ctl.POST("/setpoint", s.handleSetpoint)
	ctl.POST("/submit", s.handleSubmit)
	ctl.POST("/stop", s.handleStop)
	return r
}

func (s *Server) handleMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode", "details": err.Error()})
		return
	}
	if err := s.panel.SetMode(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.panel.Snapshot())
}

func (s *Server) handleSetpoint(c *gin.Context) {
	var req setpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid setpoint", "details": err.Error()})
		return
	}
	if req.RPM == nil && req.Torque == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rpm or torque is required"})
		return
	}
	if req.RPM != nil {
		if err := s.panel.SetRPM(*req.RPM); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Torque != nil {
		if err := s.panel.SetTorque(*req.Torque); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, s.panel.Snapshot())
}

func (s *Server) handleSubmit(c *gin.Context) {
	cmd, err := s.panel.Submit(c.Request.Context())
	if err != nil {
		s.controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": cmd, "control": s.panel.Snapshot()})
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.panel.Stop(c.Request.Context()); err != nil {
		s.controlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": domain.StopCommand(), "control": s.panel.Snapshot()})
}

// controlError maps rejected commands to 400 and backend failures to 502.
func (s *Server) controlError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, control.ErrMissingTarget) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error(), "control": s.panel.Snapshot()})
}

func (s *Server) message() []byte {
	msg, err := json.Marshal(Message{
		Type:    "snapshot",
		Cards:   s.deck.Views(),
		Control: s.panel.Snapshot(),
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		s.obs.LogError("ws_marshal_failed", err, ports.Field{Key: "component", Value: hubComponent})
		return nil
	}
	return msg
}

// Run drives the websocket hub and pushes a snapshot every refresh interval
// while at least one page is connected. It returns when ctx ends.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()
	defer wg.Wait()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	sweep := time.NewTicker(limiterIdle)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			if msg := s.message(); msg != nil {
				s.hub.Broadcast(msg)
			}
		case <-sweep.C:
			s.limiter.Sweep(limiterIdle)
		}
	}
}

func (s *Server) logErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			s.obs.LogError("http_request_failed", errors.New(http.StatusText(status)),
				ports.Field{Key: "method", Value: c.Request.Method},
				ports.Field{Key: "path", Value: c.FullPath()},
				ports.Field{Key: "status", Value: status},
				ports.Field{Key: "duration", Value: time.Since(start).String()},
			)
		}
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
