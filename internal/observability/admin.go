package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/parkbeam/internal/protocol"
	"github.com/danmuck/parkbeam/internal/zones"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const Version = "0.1.0"

// AdminBackend is what the admin listener reads from and feeds into.
type AdminBackend interface {
	Zones() []protocol.ZoneStatus
	Config() protocol.Config
	Ready() bool
	ObserveDetections(dets []zones.Detection, fps float64) ([]protocol.ZoneStatus, error)
}

type detectionsRequest struct {
	FPS        float64           `json:"fps"`
	Detections []zones.Detection `json:"detections"`
}

// NewAdminRouter builds the local admin API. It is read-only apart from
// POST /detections, which is how an external detector process pushes
// frames into the service.
func NewAdminRouter(backend AdminBackend, logger zerolog.Logger, corsOrigins []string) *gin.Engine {
	RegisterMetrics()
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AccessLog(logger))
	if origins := normalizeOrigins(corsOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"service": "parkbeam",
			"version": Version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := backend.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/zones", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"zones": backend.Zones()})
	})

	r.GET("/zones/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "zone id must be an integer"})
			return
		}
		for _, z := range backend.Zones() {
			if z.ZoneID == id {
				c.JSON(http.StatusOK, z)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "zone not found"})
	})

	r.GET("/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, backend.Config())
	})

	r.POST("/detections", func(c *gin.Context) {
		var req detectionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.FPS < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fps must not be negative"})
			return
		}
		changed, err := backend.ObserveDetections(req.Detections, req.FPS)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if changed == nil {
			changed = []protocol.ZoneStatus{}
		}
		c.JSON(http.StatusOK, gin.H{"changed": changed})
	})

	return r
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	return out
}
