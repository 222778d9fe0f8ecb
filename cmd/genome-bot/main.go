package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/genome-consensus-bot/internal/archive"
	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	"github.com/ducminhle1904/genome-consensus-bot/internal/config"
	"github.com/ducminhle1904/genome-consensus-bot/internal/consensus"
	"github.com/ducminhle1904/genome-consensus-bot/internal/exchange"
	"github.com/ducminhle1904/genome-consensus-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
	"github.com/ducminhle1904/genome-consensus-bot/internal/monitoring"
	"github.com/ducminhle1904/genome-consensus-bot/internal/notifications"
	"github.com/ducminhle1904/genome-consensus-bot/internal/pool"
	"github.com/ducminhle1904/genome-consensus-bot/internal/population"
	"github.com/ducminhle1904/genome-consensus-bot/internal/portfolio"
	"github.com/ducminhle1904/genome-consensus-bot/internal/regime"
	"github.com/ducminhle1904/genome-consensus-bot/internal/risk"
	"github.com/ducminhle1904/genome-consensus-bot/internal/scheduler"
	"github.com/ducminhle1904/genome-consensus-bot/internal/storage"
	"github.com/ducminhle1904/genome-consensus-bot/pkg/reporting"
)

const version = "1.0.0"

var (
	configFile  = flag.String("config", "configs/genome-bot.yaml", "Path to configuration file")
	envFile     = flag.String("env", ".env", "Environment file path")
	reportFlag  = flag.Bool("report", false, "Print the saved population and champions, then exit")
	exportFlag  = flag.String("export", "", "Write the report to a .xlsx, .csv or .json file, then exit ('auto' picks a path under results/)")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("genome-bot v%s\n", version)
		return
	}

	loadEnvFile(*envFile)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	code := run(cfg, lg)
	lg.Close()
	os.Exit(code)
}

// run owns every resource it opens and releases them before returning the
// process exit code
func run(cfg *config.Config, lg *logger.Logger) int {
	ctx := context.Background()
	app, err := build(ctx, cfg, lg)
	if err != nil {
		lg.LogError("startup", err)
		return 1
	}
	defer app.close()

	restored, err := app.engine.LoadState(ctx)
	if err != nil {
		lg.LogError("load_state", err)
		return 1
	}

	if *reportFlag || *exportFlag != "" {
		if err := runReport(ctx, app, *exportFlag); err != nil {
			lg.LogError("report", err)
			return 1
		}
		return 0
	}

	printBanner(cfg, restored)

	if cfg.Metrics.Enabled {
		srv := startHTTP(cfg.Metrics.Addr, app.health, lg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.NewScheduler(app.engine, scheduler.Intervals{
		Cycle:        cfg.Engine.CycleInterval,
		Breeding:     cfg.Engine.BreedingInterval,
		ChampionSync: cfg.Engine.ChampionInterval,
	}, lg)
	if err := sched.Start(ctx); err != nil {
		lg.LogError("scheduler_start", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		lg.Status("Received %s, shutting down", sig)
	case err := <-sched.Fatal():
		lg.LogError("scheduler", err)
		exitCode = 1
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		lg.LogError("shutdown", err)
		exitCode = 1
	}
	lg.Status("Stopped after %d cycles", app.engine.Status().Cycles)
	return exitCode
}

type application struct {
	engine     *scheduler.Engine
	propagator *champion.Propagator
	store      storage.Store
	archive    archive.Archive
	health     *monitoring.HealthChecker
}

func (a *application) close() {
	if a.archive != nil {
		_ = a.archive.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// build wires every component from cfg
func build(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*application, error) {
	app := &application{}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.store = store

	arch, err := archive.Open(cfg.Archive)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	app.archive = arch

	// market data always comes from bybit; public kline endpoints need no keys
	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
		Category:  cfg.Exchange.Category,

		RequestsPerSecond: cfg.Exchange.RateLimit,
	}, lg)

	var orders exchange.OrderExecutor = client
	if cfg.Exchange.Name == "paper" {
		orders = exchange.NewPaperExecutor(cfg.Exchange.Paper, exchange.WithRetry(client, cfg.Exchange.Retry, lg), lg)
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	signals := pool.NewDefault(cfg.Engine.Workers, lg)
	combiner := consensus.NewCombiner(cfg.Consensus, nil)
	arena := population.NewArena(cfg.Population, signals.Len(), arch, rng, lg)

	app.propagator = champion.NewPropagator(cfg.Environments, store, lg)
	app.health = monitoring.NewHealthChecker(3*cfg.Engine.CycleInterval, 3)

	app.engine, err = scheduler.NewEngine(scheduler.Config{
		Environment:      cfg.Engine.Environment,
		Symbols:          cfg.Engine.Symbols,
		Interval:         cfg.Engine.Interval,
		CandleLimit:      cfg.Engine.CandleLimit,
		BreedingInterval: cfg.Engine.BreedingInterval,
		Retry:            cfg.Exchange.Retry,
	}, scheduler.Deps{
		Market:     client,
		Orders:     orders,
		Pool:       signals,
		Regimes:    regime.NewTracker(cfg.Regime),
		Combiner:   combiner,
		Risk:       risk.NewManager(cfg.Risk, lg),
		Ledger:     portfolio.NewExposureLedger(cfg.Exposure),
		Arena:      arena,
		Propagator: app.propagator,
		Store:      store,
		Notifier:   notifications.NewLogNotifier(lg),
		Health:     app.health,
		Rand:       rng,
		Log:        lg,
	})
	if err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func runReport(ctx context.Context, app *application, export string) error {
	champions := make(map[string][]champion.ExecutionConfig)
	for _, env := range app.propagator.Environments() {
		list, err := app.propagator.ListChampions(ctx, env.Name)
		if err != nil {
			return fmt.Errorf("list champions for %s: %w", env.Name, err)
		}
		champions[env.Name] = list
	}

	arena := app.engine.Arena()
	now := time.Now()
	r := reporting.BuildReport(app.engine.Environment(), arena.Groups(), arena.Agents(), champions, now)
	exposure := app.engine.Status().Exposure
	r.Exposure = &exposure

	rep := reporting.NewDefaultReporter()
	if export == "" {
		rep.Print(os.Stdout, r)
		return nil
	}
	if export == "auto" {
		export = reporting.DefaultOutputPath(r.Environment, now)
	}
	if err := rep.Export(r, export); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", export)
	return nil
}

func startHTTP(addr string, health *monitoring.HealthChecker, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("HTTP server stopped: %v", err)
		}
	}()
	lg.Info("Serving /metrics and /health on %s", addr)
	return srv
}

func printBanner(cfg *config.Config, restored bool) {
	fmt.Println("=================================================")
	fmt.Printf("  Genome consensus bot v%s\n", version)
	fmt.Println("=================================================")
	fmt.Printf("Environment: %s (%s)\n", cfg.Engine.Environment, cfg.Exchange.Name)
	fmt.Printf("Symbols:     %v @ %sm\n", cfg.Engine.Symbols, cfg.Engine.Interval)
	fmt.Printf("Population:  %d groups x %d agents\n", cfg.Population.Groups, cfg.Population.AgentsPerGroup)
	fmt.Printf("Cycle:       every %s, breeding every %s, champions every %s\n",
		cfg.Engine.CycleInterval, cfg.Engine.BreedingInterval, cfg.Engine.ChampionInterval)
	if restored {
		fmt.Println("State:       restored from store")
	} else {
		fmt.Println("State:       fresh population")
	}
	fmt.Println()
}

func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not load %s: %v", path, err)
		}
	}
}
