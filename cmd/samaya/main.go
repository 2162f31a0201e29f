// Command samaya is a line-oriented terminal host for the timer core.
//
// Usage:
//
//	samaya [-config samaya.toml] [-log-level debug]
//
// Type "help" at the prompt for commands. SIGHUP saves immediately;
// SIGINT and SIGTERM save and exit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vinayprograms/samaya/config"
	"github.com/vinayprograms/samaya/logging"
	"github.com/vinayprograms/samaya/session"
)

func main() {
	configPath := flag.String("config", "", "config file (default: search samaya.toml, ~/.config/samaya/samaya.toml)")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	if err := run(*configPath, *logLevel, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "samaya: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string, in io.Reader, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	logger := logging.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)

	s, err := session.New(cfg,
		session.WithLogger(logger),
		session.WithOnWarning(func(err error) {
			fmt.Fprintf(out, "\nwarning: %s\n", describe(err))
		}),
	)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		s.Close(ctx)
		return fmt.Errorf("load state: %w", err)
	}
	s.HandleSignals()

	loaded := s.Loaded()
	if loaded.Credited > 0 {
		fmt.Fprintf(out, "Credited %s to the running task while away.\n", clock(int64(loaded.Credited/time.Second)))
	}

	save := func() error { return s.Suspend(ctx) }
	r := newREPL(s, save, readLines(in), out)
	r.loop()

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.Close(closeCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, _, err := config.Load()
	return cfg, err
}

// readLines feeds input lines to a channel so the prompt can also watch for
// signal-driven shutdown.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}
