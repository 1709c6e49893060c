package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nurdwerks/jules-interface/internal/app"
	"github.com/nurdwerks/jules-interface/internal/client"
	"github.com/nurdwerks/jules-interface/internal/config"
	"github.com/nurdwerks/jules-interface/internal/logging"
	"github.com/nurdwerks/jules-interface/internal/store"
	"github.com/nurdwerks/jules-interface/internal/syncer"
	"github.com/nurdwerks/jules-interface/internal/types"
	"github.com/nurdwerks/jules-interface/internal/view"
)

const usageText = `jules is a terminal client for the Jules session backend.

Usage:
  jules [command] [flags]

Commands:
  ui        run the terminal UI (default)
  ls        list sessions
  sources   list connected sources
  create    create a new session
  version   print version
  help      show help

Flags:
  -h, --help   show help

ls flags:
  --all              include sessions older than 24h
  --source <name>    only sessions for this source

create flags:
  --source <name>    source for the new session
  --branch <name>    starting branch

Environment:
  JULES_SERVER    backend address (host:port)
  JULES_API_KEY   backend API key

Examples:
  jules
  jules ls --all
  jules create --source sources/my-repo "fix the flaky test"
`

const version = "dev"

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		exitOnErr("ui", runUI(nil))
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	case "ui":
		exitOnErr("ui", runUI(args[1:]))
	case "ls":
		exitOnErr("ls", runLS(args[1:]))
	case "sources":
		exitOnErr("sources", runSources(args[1:]))
	case "create":
		exitOnErr("create", runCreate(args[1:]))
	case "version":
		fmt.Fprintln(os.Stdout, buildVersion())
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runUI(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	noCache := fs.Bool("no-cache", false, "skip the local session snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	api := newClient(cfg)
	st := store.New()

	var cache *store.Cache
	if !*noCache {
		cache = openCache(st, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel := syncer.New(api, st, log)
	go func() {
		if err := channel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sync channel stopped", logging.F("err", err))
		}
	}()

	filter := view.FilterState{RecentOnly: cfg.RecentOnly(), Source: cfg.SourceFilter()}
	if filter.Source == "" {
		filter.Source = view.SourceAll
	}

	runErr := app.Run(channel, api, st, filter)
	stop()

	if cache != nil {
		if err := cache.Save(st); err != nil {
			log.Warn("cache save failed", logging.F("err", err))
		}
		_ = cache.Close()
	}
	return runErr
}

// openCache loads the last snapshot so the UI has something to show
// before the first resync lands. Failures are non-fatal.
func openCache(st *store.Store, log logging.Logger) *store.Cache {
	path, err := config.CachePath()
	if err != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Warn("cache dir unavailable", logging.F("err", err))
	}
	cache, err := store.OpenCache(path)
	if err != nil {
		log.Warn("cache unavailable", logging.F("err", err))
		return nil
	}
	if err := cache.Load(st); err != nil {
		log.Warn("cache load failed", logging.F("err", err))
	}
	return cache
}

func openLogger(cfg config.Config) (logging.Logger, func(), error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, err
	}
	logPath, err := config.LogPath()
	if err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(file, logging.ParseLevel(cfg.LogLevel()))
	return log, func() { _ = file.Close() }, nil
}

func newClient(cfg config.Config) *client.Client {
	return client.New(cfg.BaseURL(), cfg.WebSocketURL(), cfg.Server.APIKey)
}

func runLS(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	all := fs.Bool("all", false, "include sessions older than 24h")
	source := fs.String("source", "", "only sessions for this source")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessions, err := newClient(cfg).ListSessions(ctx)
	if err != nil {
		return err
	}

	filter := view.FilterState{RecentOnly: !*all, Source: *source}
	if filter.Source == "" {
		filter.Source = view.SourceAll
	}
	printSessions(view.VisibleSessions(sessions, filter, time.Now()))
	return nil
}

func runSources(args []string) error {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sources, err := newClient(cfg).ListSources(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tDISPLAY")
	for _, source := range sources {
		fmt.Fprintf(writer, "%s\t%s\n", source.Name, source.Label())
	}
	return writer.Flush()
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	source := fs.String("source", "", "source for the new session")
	branch := fs.String("branch", "", "starting branch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return errors.New("create requires a prompt")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	req := client.CreateSessionRequest{Prompt: prompt}
	if *source != "" {
		sc := &types.SourceContext{Source: *source}
		if *branch != "" {
			sc.GitHubRepoContext = &types.GitHubRepoContext{StartingBranch: *branch}
		}
		req.SourceContext = sc
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := newClient(cfg).CreateSession(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, session.Name)
	return nil
}

func printSessions(sessions []*types.Session) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATE\tSOURCE\tUPDATED\tPROMPT")
	for _, session := range sessions {
		source := "-"
		if session.SourceContext != nil && session.SourceContext.Source != "" {
			source = session.SourceContext.Source
		}
		updated := "-"
		if !session.UpdateTime.IsZero() {
			updated = session.UpdateTime.Local().Format("2006-01-02 15:04")
		}
		prompt := strings.ReplaceAll(session.Prompt, "\n", " ")
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", session.ShortID(), session.State, source, updated, prompt)
	}
	_ = writer.Flush()
}

func exitOnErr(label string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}
	return version
}
