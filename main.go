package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/adapters"
	"github.com/iamwavecut/phishguard/internal/adapters/llm/gemini"
	"github.com/iamwavecut/phishguard/internal/adapters/llm/openai"
	"github.com/iamwavecut/phishguard/internal/adapters/reputation/virustotal"
	"github.com/iamwavecut/phishguard/internal/bot"
	"github.com/iamwavecut/phishguard/internal/config"
	"github.com/iamwavecut/phishguard/internal/db/sqlite"
	"github.com/iamwavecut/phishguard/internal/event"
	handlers "github.com/iamwavecut/phishguard/internal/handlers/chat"
	"github.com/iamwavecut/phishguard/internal/infra"
	"github.com/iamwavecut/phishguard/internal/lifecycle"
	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/moderation/pipeline"
	"github.com/iamwavecut/phishguard/internal/moderation/prefilter"
	"github.com/iamwavecut/phishguard/internal/moderation/ratelimit"
	"github.com/iamwavecut/phishguard/internal/moderation/reputation"
	"github.com/iamwavecut/phishguard/internal/moderation/risk"
	"github.com/iamwavecut/phishguard/internal/observability"
	"github.com/iamwavecut/phishguard/internal/ops"
	"github.com/iamwavecut/phishguard/internal/policy/permissions"
	"github.com/iamwavecut/phishguard/internal/stats"
)

const (
	eventQueueSize  = 1024
	eventJobTimeout = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go infra.GoRecoverable(-1, "process_updates", func() {
		run(ctx, cfg)
		stop()
	})

	select {
	case <-infra.MonitorExecutable(ctx):
		log.Error("executable file was modified")
	case <-ctx.Done():
		log.Info("shutting down")
	}
	stop()
	time.Sleep(time.Second)
	os.Exit(0)
}

func run(ctx context.Context, cfg config.Config) {
	logger := log.WithField("object", "main")

	shutdownObservability, err := observability.Init(ctx)
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("cant init observability")
	}

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		logger.WithField("error", err.Error()).Error("cant initialize bot api")
		time.Sleep(time.Second)
		logger.Fatal("exiting")
	}
	botAPI.Debug = log.Level(cfg.LogLevel) == log.TraceLevel
	if cfg.BotUsername == "" {
		cfg.BotUsername = botAPI.Self.UserName
	}
	if cfg.AdminID != 0 {
		log.AddHook(config.NewAlertHook(func(text string) error {
			_, err := botAPI.Send(api.NewMessage(cfg.AdminID, text))
			return err
		}, 0))
	}

	dbClient, err := sqlite.NewSQLiteClient(ctx, cfg.DotPath, "phishguard.db")
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("cant open database")
	}
	defer func() { _ = dbClient.Close() }()

	bus := event.NewBus(eventQueueSize)
	worker := event.NewWorker(bus, eventJobTimeout)
	recorder := stats.NewRecorder(dbClient, bus)

	gate, err := prefilter.NewDefault()
	if err != nil {
		logger.WithField("error", err.Error()).Fatal("cant load pre-filter lists")
	}
	admins := prefilter.NewAdminCache(func(_ context.Context, chatID, userID int64) (bool, error) {
		member, err := botAPI.GetChatMember(api.GetChatMemberConfig{
			ChatConfigWithUser: api.ChatConfigWithUser{
				ChatConfig: api.ChatConfig{ChatID: chatID},
				UserID:     userID,
			},
		})
		if err != nil {
			return false, err
		}
		return permissions.IsAdmin(&member), nil
	}, cfg.AdminCacheTTL)
	limiter := ratelimit.New(cfg.Throttle.Interval, cfg.Throttle.Idle)

	runner := pipeline.New(pipeline.Deps{
		Limiter:    limiter,
		Gate:       gate,
		Admins:     admins,
		Reputation: newReputation(cfg.Reputation),
		Risk:       newRisk(ctx, cfg.LLM),
		Policies:   dbClient,
		Recorder:   recorder,
	}, pipeline.WithMaxFileSize(cfg.MaxFileSize))

	service := bot.NewService(botAPI, dbClient)
	router := handlers.NewRouter(service, runner, recorder, admins, handlers.Config{
		OwnerID:           cfg.AdminID,
		SecurityLogChatID: cfg.SecurityLogID,
		BotUsername:       cfg.BotUsername,
		MaxFileSize:       cfg.MaxFileSize,
	})

	runtime := lifecycle.NewRuntime(
		lifecycle.Named("event_worker", worker),
		lifecycle.Named("rate_limiter", limiter),
		lifecycle.Named("admin_cache", admins),
		lifecycle.Named("ops_server", ops.NewServer(cfg.HTTPAddr, dbClient, observability.Handler())),
		lifecycle.Named("router", lifecycle.Funcs{OnStop: router.Stop}),
		lifecycle.Named("observability", lifecycle.Funcs{OnStop: shutdownObservability}),
	)
	if err := runtime.Start(ctx); err != nil {
		logger.WithField("error", err.Error()).Fatal("cant start components")
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			logger.WithField("error", err.Error()).Warn("unclean shutdown")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message", "edited_message", "callback_query", "inline_query"}
	updateProcessor := bot.NewUpdateProcessor(router)

	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)
	logger.WithField("bot", cfg.BotUsername).Info("listening for updates")
	for {
		select {
		case err := <-errorChan:
			if ctx.Err() != nil {
				return
			}
			logger.WithField("error", err.Error()).Fatal("bot api get updates error")
		case update, ok := <-updateChan:
			if !ok {
				return
			}
			if err := updateProcessor.Process(ctx, &update); err != nil {
				logger.WithField("error", err.Error()).Error("cant process update")
			}
		case <-ctx.Done():
			return
		}
	}
}

func newReputation(cfg config.Reputation) *reputation.Engine {
	opts := []reputation.Option{
		reputation.WithPolling(cfg.PollInterval, cfg.PollAttempts),
		reputation.WithCallTimeout(cfg.Timeout),
		reputation.WithObserver(func(v moderation.ReputationVerdict) {
			observability.RecordReputation(string(v.Kind), v.Label())
		}),
	}
	if !cfg.Enabled() {
		log.WithField("object", "main").Warn("reputation api key is not set, file and link checks are disabled")
		return reputation.NewEngine(nil, opts...)
	}
	client := virustotal.New(cfg.APIKey, cfg.BaseURL, cfg.Timeout, virustotal.WithRequestsPerMinute(cfg.RequestsPerMinute))
	return reputation.NewEngine(client, opts...)
}

func newRisk(ctx context.Context, cfg config.LLM) *risk.Classifier {
	logger := log.WithField("object", "main")
	if !cfg.Enabled() {
		logger.Warn("llm api key is not set, text analysis is disabled")
		return risk.NewClassifier(nil)
	}

	var model adapters.LLM
	switch cfg.Type {
	case "gemini":
		g, err := gemini.NewGemini(ctx, cfg.APIKey, cfg.Model, log.WithField("object", "Gemini"))
		if err != nil {
			logger.WithField("error", err.Error()).Error("cant create gemini client, text analysis is disabled")
			return risk.NewClassifier(nil)
		}
		model = g
	default:
		model = openai.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, log.WithField("object", "OpenAI"))
	}
	return risk.NewClassifier(model, risk.WithTimeout(cfg.Timeout))
}
