package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/lagrangedao/go-computing-market/internal/gateway"
	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
)

const defaultMaxSkew = 5 * time.Minute

// Server exposes the market over HTTP. Every mutation is authenticated by a
// request signature, runs as one market operation and, once committed, has its
// pending transfers handed to the settler and its event published to subscribers.
type Server struct {
	market  *market.Market
	settler gateway.Settler
	events  *EventHub
	limiter *rate.Limiter
	now     func() time.Time
	maxSkew time.Duration
	version string
}

type Option func(*Server)

// WithClock replaces the wall clock used as block time and for signature freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRateLimit caps the request rate of the whole API. A non-positive limit disables it.
func WithRateLimit(limit float64, burst int) Option {
	return func(s *Server) {
		if limit <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = int(limit * 2)
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

func WithMaxSkew(d time.Duration) Option {
	return func(s *Server) { s.maxSkew = d }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func NewServer(m *market.Market, settler gateway.Settler, events *EventHub, opts ...Option) *Server {
	s := &Server{
		market:  m,
		settler: settler,
		events:  events,
		now:     time.Now,
		maxSkew: defaultMaxSkew,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the market routes on router.
func (s *Server) Register(router *gin.RouterGroup) {
	router.Use(requestID(), observe(), s.rateLimit())

	router.GET("/host/info", s.hostInfo)
	router.GET("/events", s.events.Subscribe)

	router.GET("/providers", s.listProviders)
	router.GET("/providers/active", s.listActiveProviders)
	router.GET("/providers/:address", s.getProvider)
	router.GET("/providers/:address/stats", s.providerStats)
	router.GET("/providers/:address/jobs", s.providerJobs)
	router.GET("/jobs/:id", s.getJob)
	router.GET("/clients/:address/jobs", s.clientJobs)
	router.GET("/config", s.getConfig)
	router.GET("/escrow", s.escrow)
	router.GET("/balances/:address", s.balance)
	router.GET("/settlements/pending", s.pendingSettlements)

	signed := router.Group("", s.authenticate())
	signed.POST("/providers", s.registerProvider)
	signed.POST("/providers/heartbeat", s.heartbeat)
	signed.PUT("/providers", s.updateProvider)
	signed.PUT("/providers/status", s.updateProviderStatus)
	signed.POST("/deposits", s.deposit)
	signed.POST("/withdrawals", s.withdraw)
	signed.POST("/jobs", s.submitJob)
	signed.POST("/jobs/:id/complete", s.completeJob)
	signed.POST("/jobs/:id/fail", s.failJob)
	signed.POST("/jobs/:id/cancel", s.cancelJob)
	signed.POST("/sweep/timeouts", s.sweepTimeouts)
	signed.POST("/sweep/providers", s.sweepProviders)
	signed.PUT("/config", s.updateConfig)
	signed.POST("/pause", s.pause)
	signed.POST("/unpause", s.unpause)
}

// RegisterMetrics exposes the Prometheus registry on router.
func RegisterMetrics(router gin.IRoutes) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) hostInfo(c *gin.Context) {
	info := new(models.HostInfo)
	info.MarketVersion = s.version
	info.OperatingSystem = runtime.GOOS
	info.Architecture = runtime.GOARCH
	info.CPUCores = runtime.NumCPU()
	if cfg, err := s.market.GetConfig(); err == nil {
		info.Denom = cfg.Denom
		info.Paused = cfg.Paused
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(info))
}
