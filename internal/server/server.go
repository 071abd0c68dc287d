package server

import (
	"context"
	"net/http"
	"time"

	airundomain "github.com/appdraft/appdraft/internal/airun/domain"
	backenddomain "github.com/appdraft/appdraft/internal/backend/domain"
	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	obsmiddleware "github.com/appdraft/appdraft/internal/observability/logger"
	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	obstracing "github.com/appdraft/appdraft/internal/observability/tracing"
	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	userdomain "github.com/appdraft/appdraft/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type engineParams struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

func NewEngine(p engineParams) *gin.Engine {
	if p.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Log:             p.Log,
		Debug:           p.Cfg.Environment != "production",
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(p.Metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(p engineParams) *gin.Engine {
	return NewEngine(p)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	genID    *snowflake.Node
	users    userdomain.Service
	projects projectdomain.Service
	ents     entitlementdomain.Service
	ledger   ledgerdomain.Service
	backends backenddomain.Service
	airuns   airundomain.Service
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	GenID    *snowflake.Node
	Users    userdomain.Service
	Projects projectdomain.Service
	Ents     entitlementdomain.Service
	Ledger   ledgerdomain.Service
	Backends backenddomain.Service
	AIRuns   airundomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		genID:    p.GenID,
		users:    p.Users,
		projects: p.Projects,
		ents:     p.Ents,
		ledger:   p.Ledger,
		backends: p.Backends,
		airuns:   p.AIRuns,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/users", s.RegisterUser)

	api := v1.Group("", s.AuthRequired())

	api.GET("/user", s.Me)
	api.GET("/user/plan", s.GetUserPlan)
	api.GET("/credits/balance", s.GetCreditBalance)

	// -------- Projects --------
	api.GET("/projects", s.ListProjects)
	api.POST("/projects", s.CreateProject)
	api.GET("/projects/:id", s.GetProject)

	// -------- Files --------
	api.GET("/projects/:id/files", s.ListProjectFiles)
	api.GET("/projects/:id/file", s.GetProjectFile)
	api.PUT("/projects/:id/file", s.PutProjectFile)
	api.DELETE("/projects/:id/file", s.DeleteProjectFile)
	api.POST("/projects/:id/file/rename", s.RenameProjectFile)

	// -------- Chat sessions --------
	api.POST("/projects/:id/sessions", s.CreateChatSession)
	api.GET("/projects/:id/sessions/:sessionId/messages", s.ListChatMessages)

	// -------- Snapshots --------
	api.GET("/projects/:id/snapshots", s.ListSnapshots)
	api.GET("/projects/:id/snapshots/:snapshotId/files", s.ListSnapshotFiles)

	// -------- AI --------
	api.POST("/projects/:id/ai/run", s.RunAIEdit)

	// -------- Managed backend --------
	// Provisioning is lazy, so ensuring the connection is a POST.
	api.POST("/projects/:id/backend", s.EnsureProjectBackend)
	api.GET("/projects/:id/migrations", s.ListBackendMigrations)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin")

	admin.Use(s.AuthRequired())
	admin.Use(s.AdminRequired())

	admin.POST("/credits/topup", s.AdminTopup)
	admin.POST("/credits/adjust", s.AdminAdjust)
	admin.POST("/plans", s.AdminSetPlan)
	admin.GET("/usage", s.AdminMonthlyUsage)
	admin.GET("/runs", s.AdminListRuns)
}
