package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"qcall/internal/blocklist"
	"qcall/internal/call"
	"qcall/internal/calllog"
	"qcall/internal/contacts"
	"qcall/internal/dispatch"
	"qcall/internal/events"
	"qcall/internal/handoff"
	"qcall/internal/notify"
	"qcall/internal/platform/config"
	"qcall/internal/platform/httpserver"
	"qcall/internal/platform/logger"
	platformredis "qcall/internal/platform/redis"
	"qcall/internal/screening"
	"qcall/internal/telephony"
	httptransport "qcall/internal/transport/http"
)

// main wires the call service: durable block registry, call state machine
// with its UI subscribers, screening engine, background dispatcher, and the
// HTTP edge the device bridge talks to.
func main() {
	log := logger.New()
	if err := run(config.FromEnv(), log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Block registry: durable on disk when a path is configured, otherwise
	// in memory for demo runs.
	registry, err := blocklist.OpenBadger(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("open block registry: %w", err)
	}
	defer registry.Close()

	blockSvc, err := blocklist.NewService(registry, blocklist.WithLogger(log))
	if err != nil {
		return err
	}

	// Optional collaborators behind config flags.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	callLog, db, err := openCallLog(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	resolver, err := openContacts(cfg, log)
	if err != nil {
		return err
	}

	// Call history recorder, optionally fanning out to Kafka.
	recorderOpts := []events.RecorderOption{events.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaSink.Close(closeCtx); err != nil {
				log.Warn("kafka close failed", "error", err)
			}
		}()
		recorderOpts = append(recorderOpts, events.WithSink(kafkaSink))
	}
	recorder := events.NewRecorder(callLog, recorderOpts...)

	// Screening engine over the same registry the user edits. Spam marks
	// learned from the identification service feed back into screening when
	// auto-block is on.
	spamMarks := blocklist.NewSpamMarks()
	engineOpts := []screening.Option{
		screening.WithLogger(log),
		screening.WithJournal(recorder),
		screening.WithBudget(cfg.ScreenBudget),
	}
	if cfg.SpamAutoBlock {
		engineOpts = append(engineOpts, screening.WithSpamChecker(spamMarks))
	}
	engine := screening.NewEngine(registry, engineOpts...)

	// Telephony commands and UI surfaces go through the device bridge when
	// one is configured; otherwise everything is a no-op sink for demos.
	var (
		commands call.Commands = call.NopCommands{}
		sink     notify.Sink  = notify.NewMemorySink()
		launcher handoff.Launcher
	)
	if cfg.BridgeURL != "" {
		commands = telephony.NewBridgeCommands(cfg.BridgeURL)
		sink = notify.NewBridgeSink(cfg.BridgeURL)
		launcher = handoff.NewBridgeLauncher(cfg.BridgeURL)
	}

	machine, err := call.NewMachine(commands,
		call.WithLogger(log),
		call.WithResolver(resolver),
	)
	if err != nil {
		return err
	}

	presenter := notify.NewPresenter(sink, notify.WithLogger(log))
	machine.Subscribe(presenter)
	machine.Subscribe(recorder)

	var dispatcher *dispatch.Dispatcher
	if launcher != nil {
		machine.Subscribe(handoff.NewBringUp(launcher,
			handoff.WithLogger(log),
			handoff.WithSpamFlag(spamMarks.Seen),
		))

		var identifier dispatch.Identifier = noopIdentifier{}
		if cfg.IdentifyURL != "" {
			identifier = dispatch.NewBreakerIdentifier(dispatch.NewHTTPIdentifier(cfg.IdentifyURL))
			if redisClient != nil {
				identifier = dispatch.NewCachedIdentifier(identifier, redisClient.Client, log)
			}
		}
		dispatcher = dispatch.NewDispatcher(identifier, launcher, sink,
			dispatch.WithLogger(log),
			dispatch.WithTimeout(cfg.IdentifyTimeout),
			dispatch.WithCancelRegistrar(machine),
			dispatch.WithSpamMarker(spamMarks.Mark),
		)
	}

	checks := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	router := httptransport.NewRouter(log, []httptransport.Registrar{
		httptransport.NewTelephonyHandler(machine, engine, dispatcher, log),
		httptransport.NewCallsHandler(machine, callLog, log),
		httptransport.NewBlocklistHandler(blockSvc, log),
	}, checks)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recorder.Run(ctx)
		return nil
	})
	g.Go(func() error {
		presenter.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("qcall server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openCallLog picks the postgres store when configured, in-memory otherwise.
// The returned DB handle is nil for the in-memory case.
func openCallLog(ctx context.Context, cfg config.Config) (calllog.Store, *sql.DB, error) {
	if cfg.PostgresURL == "" {
		return calllog.NewMemoryStore(), nil, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := calllog.NewPostgres(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure call log schema: %w", err)
	}
	return store, db, nil
}

func openContacts(cfg config.Config, log *slog.Logger) (contacts.Resolver, error) {
	if cfg.ContactsPath == "" {
		return contacts.StaticResolver{}, nil
	}
	dir, err := contacts.LoadVCardDirectory(cfg.ContactsPath)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	log.Info("contacts loaded", "path", cfg.ContactsPath, "count", dir.Len())
	return dir, nil
}

// noopIdentifier is used when no identification service is configured; every
// caller comes back unidentified and unflagged.
type noopIdentifier struct{}

func (noopIdentifier) Identify(ctx context.Context, rawNumber string) (dispatch.Identity, error) {
	return dispatch.Identity{}, nil
}
