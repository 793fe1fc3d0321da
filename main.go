package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cppla/qrgate/config"
	"github.com/cppla/qrgate/controllers"
	"github.com/cppla/qrgate/gate"
	"github.com/cppla/qrgate/models"
	"github.com/cppla/qrgate/routes"
	"github.com/cppla/qrgate/services"
	"github.com/cppla/qrgate/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Logger.Sync()

	db, err := config.InitDatabase(cfg, &models.VisitRecord{})
	if err != nil {
		utils.Logger.Fatal("database init failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	gateCfg := gate.Config{Start: cfg.GateStart, ValidDays: cfg.GateValidDays}
	visits := services.NewVisitLog(db)

	qr := services.NewQRProvisioner(utils.Logger.Named("qr"))
	qrReq := services.QRRequest{
		TargetURL:  cfg.QRTargetURL(),
		LogoPath:   cfg.LogoPath,
		OutputPath: cfg.QRPath,
		Force:      cfg.QRForceRegenerate,
	}
	if _, err := qr.EnsureArtifact(qrReq); err != nil {
		utils.Logger.Fatal("qr provisioning failed", zap.Error(err))
	}

	rdb := utils.NewRedis(cfg)
	reports := services.NewReportService(
		visits,
		utils.NewRedisCache(rdb, "qrgate:"),
		cfg.ReportCacheTTL,
		cfg.PDFPath,
		utils.Logger.Named("report"),
	)

	r := routes.SetupRouter(cfg, routes.Controllers{
		Gateway: controllers.NewGatewayController(controllers.GatewayDeps{
			Gate:         gateCfg,
			Clock:        gate.SystemClock,
			FormURL:      cfg.FormURL,
			DisabledHTML: cfg.DisabledHTML,
			Visits:       visits,
			QR:           qr,
			QRRequest:    qrReq,
			Reports:      reports,
			Logger:       utils.Logger.Named("gateway"),
		}),
		Stats:  controllers.NewStatsController(visits),
		Config: controllers.NewConfigController(gateCfg, gate.SystemClock),
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DEFAULT_READ_TIMEOUT, utils.DEFAULT_WRITE_TIMEOUT)
	srv.OnShutdown(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	})

	utils.Sugar.Infof("Starting server on port %s (graceful), gate %s -> %s, qr url %s",
		cfg.AppPort,
		gateCfg.Start.Format("2006-01-02T15:04:05Z07:00"),
		gateCfg.Expiry().Format("2006-01-02T15:04:05Z07:00"),
		cfg.QRTargetURL(),
	)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
