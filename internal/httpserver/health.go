package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger 由 *pgxpool.Pool 实现
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker 由 *mq.Publisher 和 *mq.Consumer 实现
type ConnChecker interface {
	IsConnected() bool
}

// NewHealthRouter notifier 进程使用，只暴露探针和指标
func NewHealthRouter(logger *zap.Logger, db Pinger, consumer ConnChecker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))
	registerProbes(r, db, consumer)
	return r
}

func registerProbes(r *gin.Engine, db Pinger, mq ConnChecker) {
	ok := func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) }
	head := func(c *gin.Context) { c.Status(200) }
	r.GET("/healthz", ok)
	r.HEAD("/healthz", head)
	r.GET("/health", ok)
	r.HEAD("/health", head)

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if mq != nil && !mq.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
