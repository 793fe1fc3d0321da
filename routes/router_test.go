package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/qrgate/config"
	"github.com/cppla/qrgate/controllers"
	"github.com/cppla/qrgate/gate"
	"github.com/cppla/qrgate/models"
	"github.com/cppla/qrgate/services"
	"github.com/cppla/qrgate/utils"
)

type testApp struct {
	handler http.Handler
	visits  *services.GormVisitLog
	cfg     config.AppConfig
	now     time.Time
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()

	logo := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			logo.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, logo))
	logoPath := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(logoPath, buf.Bytes(), 0o644))

	start, err := config.ParseGateStart("2026-02-17T00:00:00Z")
	require.NoError(t, err)
	cfg := config.AppConfig{
		AppPort:       "0",
		FormURL:       "https://forms.example.test/abc",
		PublicBaseURL: "http://127.0.0.1:5000",
		GateStart:     start,
		GateValidDays: 7,
		DisabledHTML:  "<h1>QR deshabilitado</h1>",
		LogoPath:      logoPath,
		QRPath:        filepath.Join(dir, "qr_maquina.png"),
		PDFPath:       filepath.Join(dir, "reporte_qr.pdf"),
		DBDriver:      "sqlite",
		DBPath:        filepath.Join(dir, "registros.db"),
		GinMode:       "test",
		LogLevel:      "silent",
	}
	require.NoError(t, cfg.Validate())

	db, err := config.InitDatabase(cfg, &models.VisitRecord{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	app := &testApp{cfg: cfg, visits: services.NewVisitLog(db)}
	gateCfg := gate.Config{Start: cfg.GateStart, ValidDays: cfg.GateValidDays}
	clock := func() time.Time { return app.now }

	app.handler = SetupRouter(cfg, Controllers{
		Gateway: controllers.NewGatewayController(controllers.GatewayDeps{
			Gate:         gateCfg,
			Clock:        clock,
			FormURL:      cfg.FormURL,
			DisabledHTML: cfg.DisabledHTML,
			Visits:       app.visits,
			QR:           services.NewQRProvisioner(nil),
			QRRequest: services.QRRequest{
				TargetURL:  cfg.QRTargetURL(),
				LogoPath:   cfg.LogoPath,
				OutputPath: cfg.QRPath,
			},
			Reports: services.NewReportService(app.visits, utils.NewRedisCache(nil, "test:"), 0, cfg.PDFPath, nil),
		}),
		Stats:  controllers.NewStatsController(app.visits),
		Config: controllers.NewConfigController(gateCfg, clock),
	})
	return app
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGatewayEndToEnd(t *testing.T) {
	app := newTestApp(t)

	// empty log: the report has only the header row
	w := app.get("/reporte")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "(ACTIVO) Tj")
	assert.FileExists(t, app.cfg.PDFPath)

	app.now = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	w = app.get("/formulario")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, app.cfg.FormURL, w.Header().Get("Location"))

	app.now = time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	w = app.get("/formulario")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "QR deshabilitado")

	records, err := app.visits.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.StatusActive, records[0].Estado)
	assert.Equal(t, models.StatusInactive, records[1].Estado)

	w = app.get("/reporte")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "(ACTIVO) Tj")
	assert.Contains(t, w.Body.String(), "(INACTIVO) Tj")
	onDisk, err := os.ReadFile(app.cfg.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, w.Body.Bytes(), onDisk)

	w = app.get("/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	data := stats.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["active_count"])
	assert.EqualValues(t, 1, data["inactive_count"])
}

func TestQRRouteIsIdempotent(t *testing.T) {
	app := newTestApp(t)

	w := app.get("/qr")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	first := append([]byte(nil), w.Body.Bytes()...)
	_, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)

	w = app.get("/qr")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, w.Body.Bytes())
}

func TestRouterHomeHealthAndNotFound(t *testing.T) {
	app := newTestApp(t)
	app.now = time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)

	w := app.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = app.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.get("/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	w = app.get("/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}
