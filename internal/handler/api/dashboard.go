package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/usecase/dashboard"
	xhttp "CryptoDash/pkg/http"
	xlogger "CryptoDash/pkg/logger"
)

// DashboardHandler exposes the dashboard state and the scalper controls.
type DashboardHandler struct {
	logger *xlogger.Logger
	orch   *dashboard.Orchestrator
	stream *StreamHub
}

func NewDashboardHandler(logger *xlogger.Logger, orch *dashboard.Orchestrator, stream *StreamHub) *DashboardHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DashboardHandler{logger: logger, orch: orch, stream: stream}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/catalog", h.Catalog)
	g.GET("/dashboard", h.Dashboard)
	g.PUT("/selection", h.Select)
	g.PUT("/tab", h.SetTab)
	g.GET("/chart", h.Chart)

	g.GET("/scalper", h.ScalperStatus)
	g.POST("/scalper/start", h.StartScalper)
	g.POST("/scalper/stop", h.StopScalper)

	if h.stream != nil {
		g.GET("/stream", h.stream.Serve)
	}
}

func (h *DashboardHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *DashboardHandler) Catalog(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, catalogResponse())
}

func (h *DashboardHandler) Dashboard(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.orch.Dashboard())
}

func (h *DashboardHandler) Select(c echo.Context) error {
	req := &SelectionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, err := h.orch.Select(req.CoinID, req.Days); err != nil {
		return h.fail(c, "select", err)
	}
	return xhttp.SuccessResponse(c, h.orch.Dashboard())
}

func (h *DashboardHandler) SetTab(c echo.Context) error {
	req := &TabRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.orch.SetTab(dashboard.Tab(req.Tab)); err != nil {
		return h.fail(c, "set tab", err)
	}
	return xhttp.SuccessResponse(c, h.orch.Dashboard())
}

func (h *DashboardHandler) Chart(c echo.Context) error {
	layout := &dashboard.ChartLayout{}
	if verr := xhttp.ReadAndValidateRequest(c, layout); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	chart, feed := h.orch.Chart(*layout)
	return xhttp.SuccessResponse(c, ChartResponse{Chart: chart, Feed: feed})
}

func (h *DashboardHandler) ScalperStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, dashboard.ScalperViewOf(h.orch.Scalper().Snapshot()))
}

// StartScalper launches a session. The backend call is detached from the
// request so a dropped client connection cannot abort a start the bot may
// already have acted on.
func (h *DashboardHandler) StartScalper(c echo.Context) error {
	req := &StartScalperRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	creds := req.credentials()
	*req = StartScalperRequest{}

	ctx := context.WithoutCancel(c.Request().Context())
	snap, err := h.orch.Scalper().Start(ctx, creds)
	if err != nil {
		return h.fail(c, "scalper start", err, snap.LastError)
	}
	return xhttp.SuccessResponse(c, dashboard.ScalperViewOf(snap))
}

func (h *DashboardHandler) StopScalper(c echo.Context) error {
	ctx := context.WithoutCancel(c.Request().Context())
	snap, err := h.orch.Scalper().Stop(ctx)
	if err != nil {
		return h.fail(c, "scalper stop", err, snap.LastError)
	}
	return xhttp.SuccessResponse(c, dashboard.ScalperViewOf(snap))
}

// fail maps domain errors onto AppErrors. detail, when given, is the
// backend's explanation and replaces the generic message.
func (h *DashboardHandler) fail(c echo.Context, op string, err error, detail ...string) error {
	msg := err.Error()
	if len(detail) > 0 && detail[0] != "" {
		msg = detail[0]
	}

	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrInvalidSelection), errors.Is(err, models.ErrInvalidCredentials):
		appErr = xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrSessionBusy), errors.Is(err, models.ErrSessionNotRunning):
		appErr = xhttp.ConflictError(err.Error())
	case errors.Is(err, models.ErrScalperStartRejected), errors.Is(err, models.ErrScalperStopFailed):
		appErr = xhttp.BadGatewayError(msg)
	default:
		appErr = xhttp.InternalError(msg)
	}

	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Warn(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
