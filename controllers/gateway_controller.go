package controllers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/qrgate/gate"
	"github.com/cppla/qrgate/models"
	"github.com/cppla/qrgate/services"
	"github.com/cppla/qrgate/utils"
)

// QRSource provides the QR artifact on demand.
type QRSource interface {
	EnsureArtifact(req services.QRRequest) (bool, error)
}

// ReportBuilder renders the visit log.
type ReportBuilder interface {
	Build(ctx context.Context, format services.ReportFormat) (services.Report, error)
}

// GatewayDeps are the collaborators of the public gateway routes.
type GatewayDeps struct {
	Gate         gate.Config
	Clock        gate.Clock
	FormURL      string
	DisabledHTML string
	Visits       services.VisitLog
	QR           QRSource
	QRRequest    services.QRRequest
	Reports      ReportBuilder
	Logger       *zap.Logger
}

// GatewayController serves the liveness, form, QR and report routes.
type GatewayController struct {
	deps         GatewayDeps
	disabledPage []byte
}

// NewGatewayController creates a GatewayController; the disabled page is sanitized once here.
func NewGatewayController(deps GatewayDeps) *GatewayController {
	if deps.Clock == nil {
		deps.Clock = gate.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &GatewayController{
		deps:         deps,
		disabledPage: []byte(utils.Sanitize(deps.DisabledHTML)),
	}
}

// Home is the liveness probe.
func (g *GatewayController) Home(ctx *gin.Context) {
	ctx.String(http.StatusOK, "OK")
}

// Formulario evaluates the gate once, logs the decision and redirects or shows the disabled page.
func (g *GatewayController) Formulario(ctx *gin.Context) {
	now := g.deps.Clock()
	status := gate.Evaluate(now, g.deps.Gate)

	id, err := g.deps.Visits.Append(ctx.Request.Context(), status, now)
	if err != nil {
		g.deps.Logger.Error("visit append failed", zap.String("status", string(status)), zap.Error(err))
		utils.PlainError(ctx, http.StatusInternalServerError, fmt.Sprintf("Error al registrar visita: %v", err))
		return
	}
	g.deps.Logger.Info("visit logged", zap.Uint("id", id), zap.String("status", string(status)))

	if status == models.StatusActive {
		ctx.Redirect(http.StatusFound, g.deps.FormURL)
		return
	}
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", g.disabledPage)
}

// QR returns the QR image, generating it first when the cached artifact is missing or stale.
func (g *GatewayController) QR(ctx *gin.Context) {
	req := g.deps.QRRequest
	// Force only applies at startup
	req.Force = false
	if _, err := g.deps.QR.EnsureArtifact(req); err != nil {
		g.deps.Logger.Error("qr provisioning failed", zap.Error(err))
		utils.PlainError(ctx, http.StatusInternalServerError, fmt.Sprintf("Error al generar QR: %v", err))
		return
	}
	data, err := os.ReadFile(req.OutputPath)
	if err != nil {
		g.deps.Logger.Error("qr read failed", zap.Error(err))
		utils.PlainError(ctx, http.StatusInternalServerError, fmt.Sprintf("Error al leer QR: %v", err))
		return
	}
	ctx.Data(http.StatusOK, "image/png", data)
}

// Reporte renders the whole visit log and sends it as an attachment (PDF, or XLSX with ?format=xlsx).
func (g *GatewayController) Reporte(ctx *gin.Context) {
	format, err := services.ParseReportFormat(ctx.Query("format"))
	if err != nil {
		utils.PlainError(ctx, http.StatusBadRequest, err.Error())
		return
	}

	report, err := g.deps.Reports.Build(ctx.Request.Context(), format)
	if err != nil {
		g.deps.Logger.Error("report build failed", zap.String("format", string(format)), zap.Error(err))
		utils.PlainError(ctx, http.StatusInternalServerError, fmt.Sprintf("Error al generar/descargar %s: %v", strings.ToUpper(string(format)), err))
		return
	}

	ctx.Header("Content-Description", "File Transfer")
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	ctx.Data(http.StatusOK, format.ContentType(), report.Data)
}
