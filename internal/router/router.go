package router

import (
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/config"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/handler"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/middleware"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the process-wide resources built by the composition root.
// Redis, Photos, Emails and MailBreaker are optional.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Hub         *changebus.Hub
	Locker      infra.Locker
	Photos      infra.ObjectStore
	Emails      service.EmailEnqueuer
	MailBreaker *infra.CircuitBreaker
}

const streamPath = "/v1/changes/stream"

var (
	staff = []string{
		model.RoleInspector, model.RoleTrainer, model.RoleSupervisor,
		model.RoleAccountant, model.RoleManager,
	}
	fieldRoles = []string{model.RoleInspector, model.RoleSupervisor, model.RoleManager}
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins(), time.Duration(cfg.CORSMaxAgeSeconds)*time.Second))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath})))

	hub := d.Hub
	if hub == nil {
		hub = changebus.NewHub("api", cfg.ChangeLogSize)
	}
	locker := d.Locker
	if locker == nil {
		locker = infra.NewLocalLocker()
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(d.DB)
	lotRepo := repository.NewLotRepository(d.DB)
	holdingRepo := repository.NewStockHoldingRepository(d.DB)
	transferRepo := repository.NewTransferRepository(d.DB)
	requestRepo := repository.NewStockRequestRepository(d.DB)
	tagRepo := repository.NewTagRepository(d.DB)
	jobRepo := repository.NewJobOrderRepository(d.DB)
	paymentRepo := repository.NewPaymentRepository(d.DB)
	certRepo := repository.NewCertificateRepository(d.DB)
	delegationRepo := repository.NewDelegationRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)
	logRepo := repository.NewActionLogRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	delegationSvc := service.NewDelegationService(delegationRepo, userRepo, hub)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, d.Emails, hub)
	allocationSvc := service.NewAllocationService(lotRepo, holdingRepo, transferRepo, requestRepo, jobRepo, userRepo, logRepo, delegationSvc, locker, hub)
	tagSvc := service.NewTagService(tagRepo, jobRepo, hub)
	jobSvc := service.NewJobOrderService(jobRepo, paymentRepo, certRepo, tagRepo, holdingRepo, userRepo, logRepo,
		delegationSvc, locker, notificationSvc, d.Photos, hub, cfg.CertificateValidityDays)
	exportSvc := service.NewExportService(lotRepo, holdingRepo, requestRepo, tagRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc)
	inventoryH := handler.NewInventoryHandler(allocationSvc)
	tagsH := handler.NewTagsHandler(tagSvc)
	jobsH := handler.NewJobOrdersHandler(jobSvc)
	delegationsH := handler.NewDelegationsHandler(delegationSvc)
	notificationsH := handler.NewNotificationsHandler(notificationSvc)
	reportsH := handler.NewReportsHandler(exportSvc)
	changesH := handler.NewChangesHandler(hub)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.MailBreaker))
	r.GET("/v1/certificates/verify/:code", jobsH.VerifyCertificate)

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Delegable actions only require staff here; the
	// service checks the delegator's role.
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		users := v1.Group("/users", middleware.RequireRole(model.RoleManager))
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
		}

		v1.GET("/lots", middleware.RequireRole(staff...), inventoryH.ListLots)
		v1.GET("/lots/:id", middleware.RequireRole(staff...), inventoryH.GetLot)
		v1.POST("/lots", middleware.RequireRole(model.RoleManager), inventoryH.CreateLot)

		stock := v1.Group("/stock")
		{
			stock.POST("/issue", middleware.RequireRole(model.RoleManager), inventoryH.IssueStock)
			stock.GET("/holdings", middleware.RequireRole(staff...), inventoryH.ListHoldings)
			stock.POST("/transfers", middleware.RequireRole(model.RoleInspector, model.RoleManager), inventoryH.Transfer)
			stock.GET("/transfers", middleware.RequireRole(model.RoleInspector, model.RoleManager), inventoryH.ListTransfers)
			stock.POST("/requests", middleware.RequireRole(model.RoleInspector, model.RoleManager), inventoryH.SubmitRequest)
			stock.GET("/requests", middleware.RequireRole(model.RoleInspector, model.RoleManager), inventoryH.ListRequests)
			stock.POST("/requests/:id/approve", middleware.RequireRole(staff...), inventoryH.ApproveRequest)
			stock.POST("/requests/:id/reject", middleware.RequireRole(staff...), inventoryH.RejectRequest)
		}

		tags := v1.Group("/tags")
		{
			tags.POST("", middleware.RequireRole(model.RoleManager), tagsH.Create)
			tags.GET("", middleware.RequireRole(staff...), tagsH.List)
			tags.GET("/:number", middleware.RequireRole(staff...), tagsH.Get)
			tags.POST("/:number/allocate", middleware.RequireRole(model.RoleInspector, model.RoleManager), tagsH.Allocate)
			tags.POST("/:number/used", middleware.RequireRole(model.RoleInspector, model.RoleManager), tagsH.MarkUsed)
			tags.POST("/:number/removed", middleware.RequireRole(model.RoleInspector, model.RoleManager), tagsH.MarkRemoved)
		}

		jobs := v1.Group("/job-orders")
		{
			jobs.POST("", middleware.RequireRole(fieldRoles...), jobsH.Create)
			jobs.GET("", middleware.RequireRole(fieldRoles...), jobsH.List)
			// Offline sync endpoints (fieldsync client)
			jobs.POST("/offline", middleware.RequireRole(model.RoleInspector, model.RoleSupervisor), jobsH.CommitOffline)
			jobs.POST("/sync-batch", middleware.RequireRole(model.RoleInspector, model.RoleSupervisor), jobsH.SyncBatch)
			jobs.GET("/:id", middleware.RequireRole(fieldRoles...), jobsH.Get)
			jobs.POST("/:id/approve", middleware.RequireRole(staff...), jobsH.Approve)
			jobs.POST("/:id/reject", middleware.RequireRole(staff...), jobsH.Reject)
			jobs.POST("/:id/start", middleware.RequireRole(model.RoleInspector), jobsH.Start)
			jobs.POST("/:id/report", middleware.RequireRole(model.RoleInspector), jobsH.SubmitReport)
			jobs.POST("/:id/stickers", middleware.RequireRole(model.RoleInspector, model.RoleSupervisor), inventoryH.AllocateSticker)
			jobs.POST("/:id/payments", middleware.RequireRole(model.RoleClient, model.RoleAccountant), jobsH.SubmitPayment)
			jobs.POST("/:id/payment/confirm", middleware.RequireRole(model.RoleAccountant), jobsH.ConfirmPayment)
			jobs.POST("/:id/payment/reject", middleware.RequireRole(model.RoleAccountant), jobsH.RejectPayment)
		}

		v1.GET("/delegations/:delegator/resolve", middleware.RequireRole(staff...), delegationsH.Resolve)
		v1.PUT("/delegations/:delegator", middleware.RequireRole(model.RoleManager), delegationsH.Set)

		v1.GET("/changes", changesH.Poll)
		v1.GET("/changes/stream", changesH.Stream)

		v1.GET("/notifications", notificationsH.List)
		v1.GET("/reports/inventory.xlsx", middleware.RequireRole(model.RoleManager), reportsH.Inventory)
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
