package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/sysmoni/internal/collector"
	"github.com/Dicklesworthstone/sysmoni/internal/config"
	"github.com/Dicklesworthstone/sysmoni/internal/container"
	"github.com/Dicklesworthstone/sysmoni/internal/gpu"
	"github.com/Dicklesworthstone/sysmoni/internal/host"
	"github.com/Dicklesworthstone/sysmoni/internal/logger"
	"github.com/Dicklesworthstone/sysmoni/internal/server"
	"github.com/Dicklesworthstone/sysmoni/internal/state"
	"github.com/Dicklesworthstone/sysmoni/internal/ui"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "sysmoni",
		Description: "live host telemetry: processes, cores, disks, network, GPUs, sensors and containers",
		Usage:       "watch system resources in the terminal, as JSON or over HTTP",
		Version:     appVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"SYSMONI_CONFIG"}, Usage: "YAML config file"},
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "refresh interval (100ms to 10s)"},
			&cli.IntFlag{Name: "history", Usage: "samples kept per history buffer (10 to 300)"},
			&cli.BoolFlag{Name: "no-docker", Usage: "disable container monitoring"},
			&cli.BoolFlag{Name: "no-gpu", Usage: "disable GPU monitoring"},
			&cli.BoolFlag{Name: "no-network", Usage: "disable network monitoring"},
			&cli.BoolFlag{Name: "safe", Usage: "safe mode: host metrics only"},
			&cli.BoolFlag{Name: "show-system", Aliases: []string{"a"}, Usage: "include kernel and system processes"},
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Usage: "process sort key: cpu, memory, name, pid, disk-read, disk-write, general"},
			&cli.BoolFlag{Name: "ascending", Usage: "sort ascending"},
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "only show processes whose name or PID contains this text"},
			&cli.BoolFlag{Name: "json", Usage: "print one snapshot as JSON and exit"},
			&cli.BoolFlag{Name: "json-stream", Usage: "print one JSON snapshot per line every interval"},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "serve the HTTP API on this address"},
			&cli.BoolFlag{Name: "headless", Usage: "with --listen, run without the terminal UI"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "shorthand for --log-level debug"},
		},
		Commands: []*cli.Command{
			cmdInfo(),
		},
		CommandNotFound: func(c *cli.Context, command string) {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
			cli.ShowAppHelpAndExit(c, 1)
		},
		Action:       run,
		BashComplete: cli.ShowCompletions,
	}
}

func cmdInfo() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "print static host facts and subsystem availability as JSON",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			lg := newLogger(cfg, false)
			col, closeMon := newCollector(cfg, lg)
			defer closeMon()
			return printJSON(os.Stdout, col.SystemInfo())
		},
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	tui := !cfg.JSON && !cfg.JSONStream && !(cfg.Listen != "" && c.Bool("headless"))
	lg := newLogger(cfg, tui)

	col, closeMon := newCollector(cfg, lg)
	defer closeMon()
	st := state.New(cfg)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JSON {
		return jsonOnce(ctx, cfg, col, st)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return col.Run(ctx, st) })
	if cfg.Listen != "" {
		srv := server.New(cfg.Listen, lg, st, col)
		g.Go(func() error { return srv.Serve(ctx) })
	}
	switch {
	case cfg.JSONStream:
		g.Go(func() error {
			enc := json.NewEncoder(os.Stdout)
			for snap := range st.Subscribe(ctx) {
				if err := enc.Encode(snap); err != nil {
					return err
				}
			}
			return nil
		})
	case tui:
		info := col.SystemInfo()
		g.Go(func() error {
			defer stop()
			return ui.RunTUI(st, info)
		})
	}
	return g.Wait()
}

// jsonOnce runs two cycles one interval apart so the rates in the printed
// snapshot cover a real interval.
func jsonOnce(ctx context.Context, cfg config.Config, col *collector.Collector, st *state.Store) error {
	st.Publish(col.Collect(ctx, nil, st.Params()))
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(cfg.Interval):
	}
	return printJSON(os.Stdout, col.Collect(ctx, st.Previous(), st.Params()))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadConfig layers the config file, then SYSMONI_* variables, then flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if c.IsSet("interval") {
		cfg.Interval = c.Duration("interval")
	}
	if c.IsSet("history") {
		cfg.HistoryLength = c.Int("history")
	}
	if c.Bool("no-docker") {
		cfg.EnableDocker = false
	}
	if c.Bool("no-gpu") {
		cfg.EnableGPU = false
	}
	if c.Bool("no-network") {
		cfg.EnableNetwork = false
	}
	if c.Bool("safe") {
		cfg.SafeMode = true
	}
	if c.IsSet("show-system") {
		cfg.ShowSystem = c.Bool("show-system")
	}
	if c.IsSet("sort") {
		cfg.Sort = string(host.ParseSortKey(c.String("sort")))
	}
	if c.IsSet("ascending") {
		cfg.Ascending = c.Bool("ascending")
	}
	if c.IsSet("filter") {
		cfg.Filter = c.String("filter")
	}
	cfg.JSON = c.Bool("json")
	cfg.JSONStream = c.Bool("json-stream")
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	cfg.Normalize()
	return cfg, nil
}

// newLogger writes to stderr. The terminal UI owns the screen, so its logs
// are dropped.
func newLogger(cfg config.Config, tui bool) *slog.Logger {
	if tui {
		return logger.Discard()
	}
	return logger.New(cfg.LogLevel, cfg.LogFormat)
}

func newCollector(cfg config.Config, lg *slog.Logger) (*collector.Collector, func()) {
	hostMon := host.New(lg)

	gpuMon := gpu.NewDisabled()
	if cfg.EnableGPU {
		gpuMon = gpu.New(lg, cfg.HistoryLength, "/sys")
	}

	var ctr container.Monitor = container.NewNull(container.Disabled, "")
	if cfg.EnableDocker {
		ctr = container.NewDocker(lg)
	}
	lg.Debug("collector configured",
		"interval", cfg.Interval,
		"history", cfg.HistoryLength,
		"docker", cfg.EnableDocker,
		"gpu", cfg.EnableGPU,
		"network", cfg.EnableNetwork,
	)
	return collector.New(cfg, lg, hostMon, gpuMon, ctr), func() { _ = ctr.Close() }
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return "unknown"
	}

	version := bi.Main.Version
	var rev string
	var modified bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if version != "" && version != "(devel)" {
		return version
	}
	if rev != "" {
		if modified {
			return rev + " (modified)"
		}
		return rev
	}
	if version != "" {
		return version
	}
	return "unknown"
}
