package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/dekuf/cliparse"
	"github.com/danielhkuo/dekuf/db"
	"github.com/danielhkuo/dekuf/metrics"
	"github.com/danielhkuo/dekuf/router"
	"github.com/danielhkuo/dekuf/survey"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	level, _ := cliparse.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Connect and verify
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn, cfg.DatabaseType); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Seed surveys
	if cfg.SurveysFile != "" {
		surveys, err := survey.LoadSeedFile(cfg.SurveysFile)
		if err != nil {
			slog.Error("survey seed failed", "error", err)
			os.Exit(1)
		}
		created, err := survey.Seed(context.Background(), dbConn, surveys)
		if err != nil {
			slog.Error("survey seed failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Surveys seeded", "file", cfg.SurveysFile, "created", created, "total", len(surveys))
	}

	// Create router
	handler := router.NewRouter(dbConn, cfg, metrics.New())

	// Create server
	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "group_size", cfg.GroupSize)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
