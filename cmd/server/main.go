package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/config"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/db"
	clog "github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/log"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/mw"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/presence"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/server"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/service"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// 本地开发时从 .env 读取环境变量，文件不存在则忽略。
	_ = godotenv.Load()
	cfg := config.Load()
	clog.Init(cfg.Env, cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	hub := ws.NewHub()
	deps := server.Deps{DB: gdb, Hub: hub}
	// 中继之后、数据库之前关闭的外部连接，按加入顺序执行。
	var backends []step

	if cfg.NATSURL != "" {
		nc, err := notify.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		if _, err := notify.Subscribe(nc, hub); err != nil {
			log.Fatal().Err(err).Msg("nats subscribe")
		}
		deps.Notifier = notify.NewPublisher(nc)
		backends = append(backends, step{name: "nats", run: func(context.Context) error { return nc.Drain() }})
		log.Info().Str("url", cfg.NATSURL).Msg("relay fan-out via nats")
	}

	if cfg.RedisURL != "" {
		tracker, err := presence.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		// 未接入 NATS 时本进程持有全部连接，上次遗留的计数都已失效。
		if cfg.NATSURL == "" {
			if err := tracker.Reset(context.Background()); err != nil {
				log.Warn().Err(err).Msg("presence reset")
			}
		}
		deps.Presence = tracker
		backends = append(backends, step{name: "redis", run: func(context.Context) error { return tracker.Close() }})
	}

	model, err := service.NewGeminiModel(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Warn().Err(err).Msg("chatbot disabled")
	}
	if model != nil {
		deps.LLM = model
	}

	deps.Limiter = mw.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 2*time.Minute)
	deps.BotLimiter = server.NewBotLimiter()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	// 先停止 HTTP 并等待处理中的请求，再断开中继连接，最后关闭它们用到的外部连接和数据库。
	steps := []step{
		{name: "http", run: srv.Shutdown},
		{name: "relay", run: func(ctx context.Context) error {
			deps.Limiter.Stop()
			deps.BotLimiter.Stop()
			return hub.Shutdown(ctx)
		}},
	}
	steps = append(steps, backends...)
	steps = append(steps, step{name: "db", run: func(context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}})

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"server": sequence(steps),
	})
	code := <-wait
	log.Info().Int("code", code).Msg("server exited")
	os.Exit(code)
}
