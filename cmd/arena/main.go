package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/memed/arena/internal/app"
	"github.com/memed/arena/internal/tui"
	"github.com/memed/arena/pkg/config"
	"github.com/memed/arena/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("ARENA_CONFIG"), "YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	// bubbletea owns the terminal
	cfg.Log.NoConsole = true
	if cfg.Log.OutputFile == "" {
		cfg.Log.OutputFile = "logs/arena-tui.log"
	}
	if err := logger.Init(cfg.Log); err != nil {
		fatal(err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	go func() {
		if err := a.Refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("refresher stopped: %v", err)
		}
	}()

	p := tea.NewProgram(tui.New(ctx, a.Service), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
