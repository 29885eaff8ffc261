package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"hedgebot/internal/app"
	"hedgebot/internal/config"
	"hedgebot/internal/logger"
)

func main() {
	var (
		cfgFlag  = pflag.StringP("config", "c", "", "config file (default $HEDGEBOT_CONFIG or configs/config.yaml)")
		initFlag = pflag.Bool("init", false, "write an example config to the config path and exit")
		once     = pflag.Bool("once", false, "run a single rebalance cycle on every account and exit")
		closeAll = pflag.String("close-all", "", "flatten every position on the named account and exit")
	)
	pflag.Parse()
	cfgPath := config.ResolvePath(*cfgFlag)

	if *initFlag {
		if _, err := os.Stat(cfgPath); err == nil {
			log.Fatalf("config %s already exists", cfgPath)
		}
		if err := config.Save(cfgPath, config.Example()); err != nil {
			log.Fatalf("write example config: %v", err)
		}
		log.Printf("example config written to %s", cfgPath)
		return
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("open log file: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ config loaded (env=%s, accounts=%d)", cfg.App.Env, len(cfg.EnabledAccounts()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchPath := cfgPath
	if *once || *closeAll != "" {
		watchPath = ""
	}
	application, err := app.NewApp(cfg, watchPath)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}

	switch {
	case *closeAll != "":
		rep, err := application.CloseAll(ctx, *closeAll)
		if err != nil {
			log.Fatalf("close all: %v", err)
		}
		logger.Infof("close all on %s finished: %d orders, %d failed", rep.Account, len(rep.Results), rep.Failed())
	case *once:
		if _, err := application.RunOnce(ctx); err != nil {
			log.Fatalf("rebalance: %v", err)
		}
	default:
		if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("run: %v", err)
		}
		logger.Infof("hedgebot stopped")
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
