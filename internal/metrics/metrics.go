package metrics

import (
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/labstack/echo/v4"
)

// Setup starts pushing metrics to url every interval.  An empty url leaves
// the pull endpoint as the only exposition.
func Setup(url string, interval time.Duration, logger *slog.Logger) {
	if url == "" {
		return
	}
	if err := metrics.InitPush(url, interval, `service="event-registration"`, true); err != nil {
		logger.Error("metrics push init failed", "error", err)
	}
}

// Handler serves every registered metric in Prometheus text format.
func Handler(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/plain; version=0.0.4")
	metrics.WritePrometheus(c.Response(), true)
	return nil
}
