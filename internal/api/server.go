// Package api exposes the guard evaluation and management HTTP API.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IT-HUSET/openclaw-guard/internal/cmdguard"
	"github.com/IT-HUSET/openclaw-guard/internal/guard"
	"github.com/IT-HUSET/openclaw-guard/internal/logger"
)

var log = logger.New("api")

// Server handles HTTP evaluation requests and management endpoints.
type Server struct {
	registry *guard.Registry
	commands *cmdguard.Guard
	router   *gin.Engine
}

// NewServer builds the API server around a populated registry. The
// command guard is passed separately so its rule inventory can be
// reported.
func NewServer(registry *guard.Registry, commands *cmdguard.Guard) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.Use(BodySizeLimitMiddleware(MaxBodySize))

	s := &Server{
		registry: registry,
		commands: commands,
		router:   router,
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		evaluate := v1.Group("/evaluate")
		{
			evaluate.POST("/toolcall", s.handleToolCall)
			evaluate.POST("/message", s.handleMessage)
		}
		v1.GET("/stats", s.handleStats)
		v1.GET("/rules", s.handleRules)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	Success(c, gin.H{"status": "ok", "plugins": s.registry.PluginIDs()})
}

// handleToolCall handles POST /v1/evaluate/toolcall
func (s *Server) handleToolCall(c *gin.Context) {
	var ev guard.ToolCallEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if ev.ToolName == "" {
		Error(c, http.StatusBadRequest, "tool_name is required")
		return
	}

	v := s.registry.EvaluateToolCall(c.Request.Context(), ev)
	log.Debug("Evaluated tool call %s: %s", ev.ToolName, actionOf(v))
	VerdictResponse(c, v)
}

// handleMessage handles POST /v1/evaluate/message
func (s *Server) handleMessage(c *gin.Context) {
	var ev guard.MessageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}

	v := s.registry.EvaluateMessage(c.Request.Context(), ev)
	log.Debug("Evaluated message on %s: %s", ev.Channel, actionOf(v))
	VerdictResponse(c, v)
}

// handleStats handles GET /v1/stats
func (s *Server) handleStats(c *gin.Context) {
	m := s.registry.Metrics()
	Success(c, gin.H{
		"counters":   m.Stats(),
		"block_rate": m.BlockRate(),
		"plugins":    s.registry.PluginIDs(),
	})
}

// ruleInfo is one command rule as reported by the API.
type ruleInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Pattern  string `json:"pattern"`
	Message  string `json:"message"`
}

// handleRules handles GET /v1/rules
func (s *Server) handleRules(c *gin.Context) {
	if s.commands == nil {
		Error(c, http.StatusServiceUnavailable, "command guard not configured")
		return
	}

	var rules []ruleInfo
	if rs := s.commands.Rules(); rs != nil {
		rules = make([]ruleInfo, 0, len(rs.Rules))
		for _, r := range rs.Rules {
			rules = append(rules, ruleInfo{
				Name:     r.Name,
				Category: string(r.Category),
				Pattern:  r.Raw,
				Message:  r.Message,
			})
		}
	}
	Success(c, gin.H{
		"rules":         rules,
		"config_failed": s.commands.ConfigFailed(),
	})
}

func actionOf(v *guard.Verdict) guard.Action {
	if v == nil {
		return guard.ActionPass
	}
	return v.Action
}
