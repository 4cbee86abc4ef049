package handler

import (
	"net/http"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/health"
	"github.com/klari-app/klari-server/internal/logger"
)

// ReadinessReporter exposes the latest dependency probe.
type ReadinessReporter interface {
	Report() health.Report
}

type Ops struct {
	readiness ReadinessReporter
	logger    *logger.Logger
}

func NewOps(readiness ReadinessReporter, logger *logger.Logger) *Ops {
	return &Ops{readiness: readiness, logger: logger}
}

// Live reports that the process serves requests.
func (h *Ops) Live(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]string{"status": "ok"}, h.logger)
}

// Ready answers 503 until every dependency check passes.
func (h *Ops) Ready(w http.ResponseWriter, _ *http.Request) {
	report := h.readiness.Report()
	if !report.Ready {
		response.JSON(w, http.StatusServiceUnavailable, report, h.logger)
		return
	}
	response.OK(w, report, h.logger)
}
