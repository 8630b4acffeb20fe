package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dunamismax/normalflow/internal/builder"
	"github.com/dunamismax/normalflow/internal/config"
	"github.com/dunamismax/normalflow/internal/tui"
)

func main() {
	cfg := config.Load()

	var out io.Writer = io.Discard
	if cfg.Builder.LogFile != "" {
		f, err := os.OpenFile(cfg.Builder.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(out, "[builder] ", log.LstdFlags|log.Lmsgprefix)

	if !builder.ClipboardSupported() {
		logger.Printf("no clipboard utility found; copy will report an error")
	}

	ctrl := builder.NewController(cfg.Builder.Tool, builder.SystemClipboard{}, time.Now)
	client := builder.NewClient(cfg.Builder.BackendURL, nil)
	logger.Printf("starting backend=%s tool=%q", cfg.Builder.BackendURL, cfg.Builder.Tool)

	p := tea.NewProgram(tui.New(ctrl, client, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Printf("program exited: %v", err)
		fmt.Fprintf(os.Stderr, "builder: %v\n", err)
		os.Exit(1)
	}
}
