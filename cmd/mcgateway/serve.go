package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/config"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/db"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/dedup"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/events"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/extract"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/handlers"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/instagram"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/logger"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/mediaproxy"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/orchestrator"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/intents"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/llm"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/pipeline"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideEventStore,
			provideEventLogger,
			provideConversationBuilder,
			provideExtractor,
			provideRateLimiter,
			provideInstagramClient,
			provideMediaProxy,
			provideAnalysisGate,
			provideLLMClient,
			provideGuidance,
			provideOrchestrator,
			providePipeline,
			provideHandlers,
			provideServer,
		),
		fx.Invoke(
			startMediaCacheSweep,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideEventStore(log *slog.Logger, conn *pgxpool.Pool) events.Store {
	return events.NewPGStore(log, conn)
}

func provideEventLogger(log *slog.Logger, store events.Store) *events.Logger {
	return events.NewLogger(log, store)
}

func provideConversationBuilder(log *slog.Logger, store events.Store, cfg config.Config) *conversation.Builder {
	return conversation.NewBuilder(log, store, cfg.Pipeline.ContextLimit)
}

func provideExtractor(log *slog.Logger, cfg config.Config) *extract.Extractor {
	var lookup extract.MetadataLookup
	if cfg.Instagram.AppID != "" && cfg.Instagram.AppSecret != "" {
		lookup = extract.NewOEmbedClient(cfg.Instagram)
	}
	return extract.NewExtractor(log, lookup)
}

func provideRateLimiter(cfg config.Config) (*instagram.RateLimiter, error) {
	window, err := time.ParseDuration(cfg.Delivery.RateWindow)
	if err != nil {
		return nil, fmt.Errorf("delivery rate window: %w", err)
	}
	return instagram.NewRateLimiter(cfg.Delivery.RateMax, window), nil
}

func provideInstagramClient(log *slog.Logger, cfg config.Config, limiter *instagram.RateLimiter) *instagram.Client {
	return instagram.NewClient(log, instagram.ClientConfig{
		BaseURL:      cfg.Instagram.GraphBaseURL,
		GraphVersion: cfg.Instagram.APIVersion,
		AccessToken:  cfg.Instagram.PageToken,
		DeepLinkBase: cfg.Delivery.DefaultDeepLink,
		MaxAttempts:  cfg.Delivery.RetryMax,
		BaseDelay:    time.Duration(cfg.Delivery.RetryBaseMs) * time.Millisecond,
	}, limiter)
}

func provideMediaProxy(log *slog.Logger, client *instagram.Client) *mediaproxy.Proxy {
	return mediaproxy.NewProxy(log, client)
}

func provideAnalysisGate(log *slog.Logger, store events.Store) *dedup.Gate {
	return dedup.NewGate(log, store)
}

func provideLLMClient(log *slog.Logger, cfg config.Config) *llm.Client {
	timeout := time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second
	return llm.NewClient(log, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, timeout)
}

func provideGuidance(cfg config.Config) intents.GuidanceProvider {
	return intents.NewStaticGuidance(cfg.Delivery.DefaultDeepLink)
}

func provideOrchestrator(
	log *slog.Logger,
	cfg config.Config,
	client *llm.Client,
	extractor *extract.Extractor,
	proxy *mediaproxy.Proxy,
	gate *dedup.Gate,
	builder *conversation.Builder,
	guidance intents.GuidanceProvider,
) (*orchestrator.Orchestrator, error) {
	profile, err := orchestrator.LoadProfile(cfg.Prompts.ProfilePath)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(
		log,
		client,
		orchestrator.Config{
			ChatModel:      cfg.OpenAI.Model,
			ReasoningModel: cfg.OpenAI.ReasoningModel,
			VisionModel:    cfg.OpenAI.VisionModel,
		},
		extractor,
		proxy,
		gate,
		builder,
		guidance,
		profile,
	), nil
}

func providePipeline(log *slog.Logger, orch *orchestrator.Orchestrator, client *instagram.Client, eventLog *events.Logger) *pipeline.Pipeline {
	return pipeline.New(log, orch, client, eventLog)
}

type serverHandlers struct {
	Ping    *handlers.PingHandler
	Auth    *handlers.AuthHandler
	Webhook *handlers.WebhookHandler
	Events  *handlers.EventsHandler
}

func provideHandlers(log *slog.Logger, cfg config.Config, p *pipeline.Pipeline, store events.Store) serverHandlers {
	return serverHandlers{
		Ping:    handlers.NewPingHandler(log),
		Auth:    handlers.NewAuthHandler(log, cfg.Auth),
		Webhook: handlers.NewWebhookHandler(log, cfg.Instagram.VerifyToken, cfg.Instagram.AppSecret, p),
		Events:  handlers.NewEventsHandler(log, store),
	}
}

func provideServer(log *slog.Logger, cfg config.Config, h serverHandlers) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, h.Ping, h.Auth, h.Webhook, h.Events)
}

// startMediaCacheSweep evicts expired media cache entries every few minutes
// so embedded data URIs do not pile up between bursts of traffic.
func startMediaCacheSweep(lc fx.Lifecycle, log *slog.Logger, proxy *mediaproxy.Proxy) {
	c := cron.New()
	if _, err := c.AddFunc("@every 5m", proxy.Sweep); err != nil {
		log.Error("media cache sweep schedule failed", slog.String("error", err.Error()))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("server starting", slog.String("addr", cfg.Server.Addr))
				if err := srv.Start(); err != nil {
					log.Error("server stopped", slog.String("error", err.Error()))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
