package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dhc_scraper/api"
	"dhc_scraper/captcha"
	"dhc_scraper/config"
	"dhc_scraper/logging"
	"dhc_scraper/models"
	"dhc_scraper/retry"
	"dhc_scraper/scheduler"
	"dhc_scraper/scraper"
	"dhc_scraper/services"
	"dhc_scraper/session"
	"dhc_scraper/storage"
)

const defaultPortalID = "delhi_high_court"

var (
	searchNow  = flag.Bool("search", false, "Run one query and exit")
	caseType   = flag.String("type", "", "Case type for -search, e.g. W.P.(C)")
	caseNumber = flag.String("number", "", "Case number for -search")
	filingYear = flag.Int("year", 0, "Filing year for -search")
	portalID   = flag.String("portal", defaultPortalID, "Portal config to use")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting dhc_scraper...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d portal configs", len(cfg.Portals))
	portal, ok := cfg.Portals[*portalID]
	if !ok {
		log.Fatalf("No portal config %q under config/portals/", *portalID)
	}
	log.Printf("Portal: %s (%s)", portal.Name, portal.BaseURL)
	cfg.Session.RequestDelay = portal.RequestDelay(cfg.Session.RequestDelay)

	ctx := context.Background()

	var store storage.QueryStore
	var purger scheduler.LogPurger
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		store = pgStore
		purger = pgStore
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	} else {
		sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		store = sqliteStore
		purger = sqliteStore
		log.Printf("SQLite database: %s", cfg.DBPath)
	}
	defer store.Close()

	browser := session.NewBrowser(cfg.Session.Headless)
	defer browser.Close()

	pool := session.NewPool(cfg.Session, retry.DefaultPolicy(cfg.Query.MaxRetries), func(ctx context.Context) (session.Conn, error) {
		return browser.NewConn()
	})
	defer pool.Close()
	log.Printf("Session pool size: %d", cfg.Session.PoolSize)

	var auto captcha.Strategy
	if cfg.Solver.APIKey != "" {
		auto = captcha.NewSolverClient(cfg.Solver)
		log.Println("Automated captcha solver enabled")
	}
	var manual *captcha.ManualOverride
	var manualStrategy captcha.Strategy
	if cfg.Solver.ManualEnabled {
		manual = captcha.NewManualOverride(cfg.Solver.ManualTimeout)
		manualStrategy = manual
		log.Printf("Manual captcha entry enabled, timeout %s", cfg.Solver.ManualTimeout)
	}
	if auto == nil && manual == nil {
		log.Fatalf("No captcha strategy configured: set SOLVER_API_KEY or MANUAL_CAPTCHA=true")
	}
	resolver := captcha.NewResolver(auto, manualStrategy)

	executor := scraper.NewExecutor(pool, scraper.NewBrowserPortal(portal), resolver, store, cfg)

	// One-shot mode
	if *searchNow {
		runSearch(ctx, executor)
		return
	}

	// Daemon mode
	var uploader storage.Uploader
	if cfg.Archive.Enabled() {
		s3Archive, err := storage.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to init document archive: %v", err)
		}
		uploader = s3Archive
		log.Printf("Document archive: s3://%s", cfg.Archive.Bucket)
	} else {
		uploader = storage.NewNoOpUploader()
	}

	docs, err := services.NewDocumentService(cfg.DownloadDir, uploader)
	if err != nil {
		log.Fatalf("Failed to init document service: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, docs, pool, purger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	server := api.NewServer(cfg, portal, executor, store, docs, manual, sched)
	srv := server.HTTPServer()
	go func() {
		log.Printf("HTTP API listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	sched.Stop()
	log.Println("Goodbye!")
}

func runSearch(ctx context.Context, executor *scraper.Executor) {
	req := models.QueryRequest{
		CaseType:   *caseType,
		CaseNumber: *caseNumber,
		FilingYear: *filingYear,
	}

	log.Printf("Running query %s/%s/%d...", req.CaseType, req.CaseNumber, req.FilingYear)
	record, err := executor.Execute(ctx, req)
	if errors.Is(err, models.ErrNotFound) {
		log.Println("No case found for that query.")
		return
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	out, _ := json.MarshalIndent(record, "", "  ")
	fmt.Println(string(out))
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
