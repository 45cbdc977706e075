package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	pbconfig "github.com/voicetyped/profilebot/config"
	"github.com/voicetyped/profilebot/internal/httputil"
	"github.com/voicetyped/profilebot/internal/profile"
	"github.com/voicetyped/profilebot/internal/relay"
	"github.com/voicetyped/profilebot/internal/state"
	"github.com/voicetyped/profilebot/pkg/dialog"
	"github.com/voicetyped/profilebot/pkg/events"
	"github.com/voicetyped/profilebot/pkg/hooks"
	"github.com/voicetyped/profilebot/pkg/metrics"
	"github.com/voicetyped/profilebot/pkg/urlvalidation"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[pbconfig.RelayConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	opts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("profilebot"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.UseDatabaseProfiles() {
		opts = append(opts, frame.WithDatastore())
	}

	ctx, srv := frame.NewService(opts...)
	defer srv.Stop(ctx)

	logger := util.Log(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "profilebot", eventRef)
	m := metrics.New("profilebot", nil)
	if cfg.LogEvents {
		logEvents := events.LogSubscriber(pub, slog.Default())
		if err := pool.Submit(ctx, func() { logEvents(ctx) }); err != nil {
			logger.WithError(err).Warn("event log not started")
		}
	}

	// --- Dialogs ---
	loader := dialog.NewLoader(cfg.DialogDir)
	if _, err := loader.LoadAll(); err != nil {
		logger.WithError(err).Warn("loading dialogs, serving built-ins")
	}
	if _, ok := loader.Get(cfg.DefaultDialog); !ok {
		log.Fatalf("default dialog %q is not loaded", cfg.DefaultDialog)
	}
	go func() {
		if err := loader.WatchAndReload(ctx.Done()); err != nil {
			slog.Warn("dialog watcher stopped", slog.Any("error", err))
		}
	}()

	// --- Conversation state ---
	var states dialog.StateStore
	if cfg.RedisURL != "" {
		client, err := state.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("connecting to redis: %v", err)
		}
		defer client.Close()
		states = state.NewRedisStore(client, cfg.StateTTL)
	} else {
		states = state.NewMemoryStore()
	}

	// --- Profiles ---
	var profiles dialog.ProfileStore
	if cfg.UseDatabaseProfiles() {
		repo := profile.NewRepository(srv.DatastoreManager().GetPool(ctx, "__default__pool_name__"))
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("migrating profiles: %v", err)
		}
		profiles = repo
	} else {
		profiles = profile.NewMemoryStore()
	}

	// --- Engine ---
	var hookOpts []urlvalidation.Option
	if cfg.HooksAllowPrivateIPs {
		hookOpts = append(hookOpts, urlvalidation.AllowPrivateIPs())
	}
	hookExec := hooks.NewExecutor(pub, hookOpts...).WithBreaker(hooks.BreakerConfig{
		FailureThreshold: cfg.HookCBFailThreshold,
		ResetTimeout:     cfg.HookCBResetTimeout,
	})
	engine := dialog.NewEngine(loader, cfg.DefaultDialog, states, profiles,
		dialog.WithHooks(hookExec),
		dialog.WithPublisher(pub),
		dialog.WithMetrics(m),
	)

	// --- Relay ---
	relaySrv, err := relay.NewServer(relay.Config{
		Secret:          cfg.DirectLineSecret,
		SigningKey:      cfg.TokenSigningKey,
		TokenTTL:        cfg.TokenTTL,
		ConversationTTL: cfg.ConversationTTL,
		ReaperInterval:  cfg.ReaperInterval,
		BotID:           cfg.BotID,
		BotName:         cfg.BotName,
	}, engine,
		relay.WithWorkerPool(pool),
		relay.WithPublisher(pub),
		relay.WithMetrics(m),
	)
	if err != nil {
		log.Fatalf("creating relay: %v", err)
	}

	mux := http.NewServeMux()
	relaySrv.RegisterRoutes(mux)
	relaySrv.StartReaper(ctx)

	handler := httputil.Recover(httputil.Logging(m, mux))
	srv.Init(ctx, frame.WithHTTPHandler(httputil.H2CHandler(handler)))

	logger.WithField("dialog", cfg.DefaultDialog).Info("profilebot relay starting")
	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
