// Package api exposes the matching core over HTTP. Authentication, CORS
// and rate limiting belong to the surrounding gateway, not here.
package api

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apierrors "github.com/peerflow/p2pmatch/common/errors"
	"github.com/peerflow/p2pmatch/internal/matching"
	"github.com/peerflow/p2pmatch/internal/matching/optimization"
	"github.com/peerflow/p2pmatch/internal/matching/stats"
)

// Server bundles the HTTP handlers over the matching core.
type Server struct {
	engine     *matching.Engine
	controller *optimization.Controller
	recorder   *stats.Recorder
	aggregator *stats.Aggregator
	logger     *zap.Logger
}

// NewServer wires the handler set.
func NewServer(
	engine *matching.Engine,
	controller *optimization.Controller,
	recorder *stats.Recorder,
	aggregator *stats.Aggregator,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		controller: controller,
		recorder:   recorder,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Router builds the gin engine with logging, recovery and the API routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))
	r.Use(apierrors.Middleware(s.logger))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/queue/withdrawals", s.handleAddWithdrawal)
		v1.POST("/queue/deposits", s.handleAddDeposit)
		v1.GET("/queue/items", s.handleListItems)
		v1.DELETE("/queue/items/:id", s.handleCancel)
		v1.GET("/queue/stats", s.handleQueueStats)
		v1.GET("/optimization/config", s.handleGetConfig)
		v1.PATCH("/optimization/config", s.handlePatchConfig)
		v1.POST("/metrics/performance", s.handleRecordMetric)
		v1.GET("/metrics/patterns", s.handlePatternMetrics)
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
