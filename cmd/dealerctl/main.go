// Command dealerctl drives the dealer portal from a terminal: sign in,
// browse the catalog, place and inspect purchase orders, and check how the
// route guard treats a page for the current session.
//
// The session is kept in file storage under the user config directory by
// default, so it survives between runs. DEALER_STORAGE=redis keeps it in
// Redis instead; without DEALER_REDIS_ADDR an in-process miniredis is used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	dealerportal "github.com/askgroup/dealerportal"
	"github.com/askgroup/dealerportal/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvLogFile routes logs to a rotating file instead of stderr.
const EnvLogFile = "DEALER_LOG_FILE"

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dealerctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		apiURL      = fs.String("api", "", "dealer API base URL (default $"+dealerportal.EnvAPIURL+")")
		storageKind = fs.String("storage", "", "session storage: memory, redis or file")
		dir         = fs.String("dir", "", "directory for file storage")
		redisAddr   = fs.String("redis-addr", "", "redis address for redis storage")
		showMetrics = fs.Bool("metrics", false, "print metrics in Prometheus format after the command")
	)
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs)
		return 2
	}
	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(fs)
		return 2
	}

	cfg, err := dealerportal.LoadConfigFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if err := applyStorageFlags(&cfg, *storageKind, *dir, *redisAddr); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	logger := newLogger(stderr)
	b := dealerportal.New().WithConfig(cfg).WithLogger(logger).OnRedirect(func(path string) {
		fmt.Fprintf(stderr, "session expired, sign in again (%s)\n", path)
	})

	if cfg.Storage.Kind == dealerportal.StorageRedis && cfg.Storage.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(stderr, "failed to start miniredis: %v\n", err)
			return 1
		}
		defer mr.Close()
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		defer client.Close()
		logger.Printf("dealerctl: using miniredis at %s, the session will not outlive this run", mr.Addr())
		b.WithRedis(client)
	}

	p, err := b.Build()
	if err != nil {
		fmt.Fprintf(stderr, "build portal: %v\n", err)
		return 1
	}
	defer p.Close()

	for _, w := range cfg.Lint() {
		logger.Printf("dealerctl: config warning %s: %s", w.Code, w.Message)
	}
	p.Session().Restore(ctx)

	c := &cli{portal: p, out: stdout, errOut: stderr}
	err = cmd.run(ctx, c, cmdArgs)
	if *showMetrics {
		fmt.Fprint(stdout, prometheus.New(p).Render())
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintln(stderr, err)
		return 1
	}
}

// applyStorageFlags layers flag overrides on the env config. With nothing
// chosen anywhere the CLI keeps its session in a file so it survives runs.
func applyStorageFlags(cfg *dealerportal.Config, kind, dir, redisAddr string) error {
	if kind != "" {
		cfg.Storage.Kind = dealerportal.StorageKind(kind)
	} else if _, set := os.LookupEnv(dealerportal.EnvStorage); !set {
		cfg.Storage.Kind = dealerportal.StorageFile
	}
	if dir != "" {
		cfg.Storage.Dir = dir
	}
	if redisAddr != "" {
		cfg.Storage.RedisAddr = redisAddr
	}

	if cfg.Storage.Kind == dealerportal.StorageFile && cfg.Storage.Dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("no storage directory: %w", err)
		}
		cfg.Storage.Dir = filepath.Join(base, "dealerctl")
	}
	return cfg.Validate()
}

func newLogger(stderr io.Writer) *log.Logger {
	if path := os.Getenv(EnvLogFile); path != "" {
		return log.New(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}, "", log.LstdFlags)
	}
	return log.New(stderr, "", log.LstdFlags)
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "usage: dealerctl [flags] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}
