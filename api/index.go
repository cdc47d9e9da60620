package handler

import (
	"fmt"
	"net/http"
	"time"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/handlers"
	customMiddleware "dental-ops-backend/pkg/middleware"
	"dental-ops-backend/pkg/services"
	"dental-ops-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler 是Vercel函数的入口点
// 单体路由模式：所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// 获取优化的数据库连接（自动适配Vercel环境）
	db := database.GetOptimizedDatabase(database.DatabaseConfig{
		UseLocalDB:  cfg.UseLocalDB,
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Debug:       cfg.Debug,
	})
	// 注意：连接由优化器管理，无需手动关闭

	// 创建Chi路由器
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, cfg)

	// 设置路由
	setupRoutes(router, cfg, db)

	// 将请求传递给Chi路由器处理
	router.ServeHTTP(w, r)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 请求体限制1MB，信件正文和AI草稿都远小于此
	router.Use(customMiddleware.MaxBodySize(1 << 20))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	// 共享服务
	aiService := services.NewAIService(cfg)
	notifier := services.NewHTTPNotifier(cfg)

	// 创建处理器
	authHandler := handlers.NewAuthHandler(cfg, db)
	approvalHandler := handlers.NewApprovalHandler(cfg, db, notifier)
	offerHandler := handlers.NewOfferHandler(cfg, db, notifier)
	signHandler := handlers.NewSignHandler(cfg, db, nil)
	leadHandler := handlers.NewLeadHandler(cfg, db, aiService)
	onboardingHandler := handlers.NewOnboardingHandler(cfg, db)
	employeeHandler := handlers.NewEmployeeHandler(cfg, db)
	legalDocHandler := handlers.NewLegalDocHandler(cfg, db)
	cronHandler := handlers.NewCronHandler(cfg, db, aiService)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)
	router.Get("/api/health", authHandler.HealthCheck)

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			var stats map[string]interface{}

			if database.IsVercelEnvironment() {
				optimizer := database.GetVercelOptimizer()
				stats = optimizer.GetStats()
				stats["optimizer_type"] = "vercel"
			} else {
				stats = database.GetConnectionStats()
				stats["optimizer_type"] = "standard"
			}

			utils.WriteSuccessResponse(w, stats)
		})

		// 环境变量检查端点
		router.Get("/debug/env-check", func(w http.ResponseWriter, r *http.Request) {
			envStatus := map[string]interface{}{
				"jwt_secret":  cfg.JWTSecret != "",
				"cron_secret": cfg.CronSecret != "",
				"resend":      cfg.EmailEnabled(),
				"twilio":      cfg.SMSEnabled(),
				"openai":      cfg.OpenAIAPIKey != "",
			}
			utils.WriteSuccessResponse(w, envStatus)
		})
	}

	// API路由组
	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.With(customMiddleware.ContentTypeJSON).Post("/register", authHandler.Register)
			r.With(customMiddleware.ContentTypeJSON).Post("/login", authHandler.Login)
			r.With(customMiddleware.ContentTypeJSON).Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		// 候选人签署（凭token访问，公开）
		// 静态路径比下方authed /hr 挂载更具体，chi会优先匹配
		r.Get("/hr/offer-letters/sign", signHandler.View)
		r.With(customMiddleware.ContentTypeJSON).Post("/hr/offer-letters/sign", signHandler.Sign)

		// 线索入口（网站表单，公开POST）
		r.With(customMiddleware.ContentTypeJSON).Post("/leads", leadHandler.Create)

		// 定时任务路由（cron口令保护）
		r.Route("/cron", func(r chi.Router) {
			r.Use(customMiddleware.CronSecret(cfg.CronSecret))
			r.Get("/recall", cronHandler.Recall)
			r.Get("/lead-nurture", cronHandler.LeadNurture)
		})

		// 需要认证的staff路由
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.ContentTypeJSON)

			r.Get("/auth/me", authHandler.Me)

			// AI审批队列
			r.Route("/approvals", func(r chi.Router) {
				r.Get("/", approvalHandler.ListPending)
				r.Get("/history", approvalHandler.ListHistory)
				r.Post("/execute", approvalHandler.Execute)
			})

			// 线索列表
			r.Get("/leads", leadHandler.List)

			// HR路由
			r.Route("/hr", func(r chi.Router) {
				r.Route("/offer-letters", func(r chi.Router) {
					r.Get("/", offerHandler.List)
					r.Post("/", offerHandler.Create)
					r.Get("/{id}", offerHandler.Get)
					r.Patch("/{id}", offerHandler.Update)
					r.Delete("/{id}", offerHandler.Withdraw)
				})

				r.Route("/onboarding-tasks", func(r chi.Router) {
					r.Get("/", onboardingHandler.ListTasks)
					r.Patch("/{id}", onboardingHandler.UpdateTask)
				})

				r.Route("/employees", func(r chi.Router) {
					r.Get("/", employeeHandler.List)
					r.Get("/{id}", employeeHandler.Get)
				})
			})

			// 法务文档路由
			r.Route("/legal/documents", func(r chi.Router) {
				r.Get("/", legalDocHandler.List)
				r.Post("/", legalDocHandler.Create)
				r.Patch("/{id}", legalDocHandler.UpdateStatus)
				r.Post("/{id}/regenerate", legalDocHandler.Regenerate)
				r.Delete("/{id}", legalDocHandler.Delete)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponse(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
	})
}
