package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"time"

	"github.com/DoguKody/depradar/lib/configutil"
	"github.com/DoguKody/depradar/lib/cronutil"
	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/osv"
	"github.com/DoguKody/depradar/lib/pypi"
	"github.com/DoguKody/depradar/lib/serviceutil"
	"github.com/DoguKody/depradar/lib/sqliteutil"
	"github.com/DoguKody/depradar/services/audit"
	"github.com/DoguKody/depradar/services/audit/db"
	"github.com/DoguKody/depradar/services/notify"
	"github.com/DoguKody/depradar/services/registry"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Config struct {
	Port        int               `json:"port"`
	AccessToken string            `json:"access_token"`
	Database    sqliteutil.Config `json:"database"`
	// PypiBaseUrl and OsvBaseUrl override the public endpoints, for
	// mirrors or tests. Empty means the real services.
	PypiBaseUrl string         `json:"pypi_base_url"`
	OsvBaseUrl  string         `json:"osv_base_url"`
	Notify      notify.Options `json:"notify"`
	// AuditSchedule is a cron spec for recurring audits of every
	// stored manifest set. Empty disables them.
	AuditSchedule string `json:"audit_schedule"`
	// LintPolicy is a path to a ".depradar.yaml" policy file applied
	// to every server-side lint and audit.
	LintPolicy string `json:"lint_policy"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	database, err := sqliteutil.OpenWithSchema(cfg.Database, db.Schema)
	if err != nil {
		serviceutil.Fatal("open database", err)
	}

	policy := lint.Policy{}
	if cfg.LintPolicy != "" {
		policy, err = lint.ReadPolicy(cfg.LintPolicy)
		if err != nil {
			serviceutil.Fatal("read lint policy", err)
		}
	}

	pypiClient := pypi.NewClient(pypi.ClientOptions{BaseUrl: cfg.PypiBaseUrl})
	osvClient := osv.NewClient(osv.ClientOptions{BaseUrl: cfg.OsvBaseUrl})

	auditService := audit.NewService(database, audit.Options{
		Pypi:     pypiClient,
		Osv:      osvClient,
		Notifier: notify.NewNotifier(cfg.Notify),
		Policy:   policy,
	})
	registryService := registry.NewService(pypiClient, osvClient)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := engine.Group("/api/v1", serviceutil.RequireBearerToken(cfg.AccessToken))
	audit.RegisterRoutes(api, auditService)
	registry.RegisterRoutes(api, registryService)

	if cfg.AuditSchedule != "" {
		scheduler := cronutil.NewScheduler()
		err = scheduler.Add(cfg.AuditSchedule, func() {
			auditService.AuditAll(context.Background())
		})
		if err != nil {
			serviceutil.Fatal("schedule audits", err)
		}
		slog.InfoContext(ctx, "scheduled recurring audits", "spec", cfg.AuditSchedule)
	}

	go serviceutil.StartHttpServer(cfg.Port, engine)
	<-ctx.Done()
}
