package server

import (
	"net/http"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/auth"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/config"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/metrics"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/mw"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/presence"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/service"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps 是路由需要的外部依赖。Notifier 为 nil 时直接推送到本进程的 Hub，
// Presence 为 nil 时使用进程内计数。两个限速器为 nil 时按配置新建，由调用方负责 Stop。
type Deps struct {
	DB         *gorm.DB
	Hub        *ws.Hub
	Notifier   notify.Notifier
	Presence   presence.Tracker
	LLM        llms.Model
	Limiter    *mw.Limiter
	BotLimiter *mw.Limiter
}

// NewBotLimiter 返回聊天机器人接口的按用户限速器，大模型调用较贵。
func NewBotLimiter() *mw.Limiter {
	return mw.NewLimiter(rate.Every(2*time.Second), 5, 10*time.Minute)
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, deps Deps) *gin.Engine {
	if deps.Notifier == nil {
		deps.Notifier = deps.Hub
	}
	if deps.Presence == nil {
		deps.Presence = presence.NewLocal()
	}
	if deps.Limiter == nil {
		deps.Limiter = mw.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 2*time.Minute)
	}
	if deps.BotLimiter == nil {
		deps.BotLimiter = NewBotLimiter()
	}

	chats := service.NewChatService(deps.DB, deps.Notifier)
	h := &Handler{
		users:      service.NewUserService(deps.DB, cfg),
		companies:  service.NewCompanyService(deps.DB),
		jobs:       service.NewJobService(deps.DB),
		apps:       service.NewApplicationService(deps.DB, deps.Notifier),
		interviews: service.NewInterviewService(deps.DB, deps.Notifier),
		chats:      chats,
		chatbot:    service.NewChatbotService(deps.LLM),
		presence:   deps.Presence,
	}
	relay := ws.NewServer(deps.Hub, ws.Options{
		JWTSecret:      cfg.JWTSecret,
		PongWait:       cfg.PongWait,
		Access:         chats,
		Presence:       deps.Presence,
		Notifier:       deps.Notifier,
		AllowedOrigins: cfg.CORSOrigins,
		EventRate:      rate.Limit(cfg.RateLimitRPS),
		EventBurst:     cfg.RateLimitBurst,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(mw.RateLimit(deps.Limiter, mw.ByIP))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", relay.Serve)

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg.JWTSecret, deps.DB))
	recruiter := auth.RequireRole(models.RoleRecruiter)
	applicant := auth.RequireRole(models.RoleApplicant)

	authed.GET("/me", h.Me)
	authed.GET("/users/online", h.OnlineUsers)

	authed.GET("/companies", h.ListCompanies)
	authed.GET("/companies/:id", h.GetCompany)
	authed.POST("/companies", recruiter, h.CreateCompany)
	authed.PUT("/companies/:id", recruiter, h.UpdateCompany)
	authed.DELETE("/companies/:id", recruiter, h.DeleteCompany)

	authed.GET("/jobs", h.ListJobs)
	authed.GET("/jobs/:id", h.GetJob)
	authed.POST("/jobs", recruiter, h.CreateJob)
	authed.PUT("/jobs/:id", recruiter, h.UpdateJob)
	authed.DELETE("/jobs/:id", recruiter, h.DeleteJob)

	authed.POST("/jobs/:id/apply", applicant, h.Apply)
	authed.GET("/jobs/:id/applications", recruiter, h.ListJobApplications)
	authed.GET("/applications/mine", h.ListMyApplications)
	authed.PATCH("/applications/:id/status", recruiter, h.UpdateApplicationStatus)
	authed.POST("/applications/:id/interviews", recruiter, h.ScheduleInterview)
	authed.GET("/applications/:id/interviews", h.ListInterviews)

	authed.POST("/chats", h.AccessChat)
	authed.GET("/chats", h.ListChats)
	authed.GET("/chats/:id/messages", h.ListMessages)
	authed.POST("/chats/:id/messages", h.SendMessage)

	authed.POST("/chatbot", mw.RateLimit(deps.BotLimiter, mw.ByUser), h.Chatbot)

	return r
}

// corsConfig 允许带凭证的跨域请求。未配置来源时 dev 环境放行任意来源，其余环境只接受同源。
func corsConfig(cfg config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSOrigins) > 0 {
		cc.AllowOrigins = cfg.CORSOrigins
		return cc
	}
	dev := cfg.Env == "dev"
	cc.AllowOriginFunc = func(string) bool { return dev }
	return cc
}
