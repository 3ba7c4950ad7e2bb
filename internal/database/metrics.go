package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// poolConnections 连接池状态，state: idle / in_use / open / wait_count
var poolConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "zhitang",
		Name:      "database_connections",
		Help:      "Database connection pool state",
	},
	[]string{"state"},
)

// PoolCollector 定期采集连接池统计
type PoolCollector struct {
	db       *sql.DB
	logger   *logrus.Logger
	interval time.Duration
}

// NewPoolCollector 创建连接池采集器
func NewPoolCollector(db *sql.DB, logger *logrus.Logger) *PoolCollector {
	return &PoolCollector{db: db, logger: logger, interval: 15 * time.Second}
}

// Run 阻塞采集直到 ctx 取消
func (pc *PoolCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(pc.interval)
	defer ticker.Stop()

	pc.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pc.Collect()
		}
	}
}

// Collect 采集一次
func (pc *PoolCollector) Collect() sql.DBStats {
	stats := pc.db.Stats()
	poolConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	poolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	poolConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	poolConnections.WithLabelValues("wait_count").Set(float64(stats.WaitCount))

	pc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
	}).Debug("连接池统计")
	return stats
}
