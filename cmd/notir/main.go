package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/timzaak/notir/internal/config"
	"github.com/timzaak/notir/internal/server"
)

func main() {
	var (
		debug = flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	)
	flag.Parse()

	// Basic logger for startup, before the structured one exists
	logger := log.New(os.Stdout, "[NOTIR] ", log.LstdFlags)

	// automaxprocs sets GOMAXPROCS from container CPU limits
	logger.Printf("Notir %s, GOMAXPROCS: %d", server.Version(), runtime.GOMAXPROCS(0))

	cfg, err := config.Load(nil)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if *debug {
		cfg.LogLevel = "debug"
		logger.Printf("Debug mode enabled via flag")
	}

	cfg.Print()

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Println("Shutting down server...")
	if err := srv.Shutdown(); err != nil {
		logger.Printf("Error during shutdown: %v", err)
	}
}
