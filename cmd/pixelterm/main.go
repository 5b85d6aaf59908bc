package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/wilbur182/pixelterm/internal/app"
	"github.com/wilbur182/pixelterm/internal/catalog"
	"github.com/wilbur182/pixelterm/internal/config"
	"github.com/wilbur182/pixelterm/internal/fdmonitor"
	"github.com/wilbur182/pixelterm/internal/features"
	"github.com/wilbur182/pixelterm/internal/keymap"
	"github.com/wilbur182/pixelterm/internal/preload"
	"github.com/wilbur182/pixelterm/internal/render"
	"github.com/wilbur182/pixelterm/internal/session"
	"github.com/wilbur182/pixelterm/internal/styles"
	"github.com/wilbur182/pixelterm/internal/watch"
)

// Version is set at build time via ldflags
var Version = ""

// featureFlags collects repeated --feature name[=bool] options.
type featureFlags []string

func (f *featureFlags) String() string     { return strings.Join(*f, ",") }
func (f *featureFlags) Set(s string) error { *f = append(*f, s); return nil }

var (
	configPath   = flag.String("config", "", "path to config file")
	debugFlag    = flag.Bool("debug", false, "enable debug logging")
	logPath      = flag.String("log", "", "write logs to this file")
	noPreload    = flag.Bool("no-preload", false, "disable background preloading")
	writeConfig  = flag.Bool("write-config", false, "write the effective config and exit")
	versionFlag  = flag.Bool("version", false, "print version and exit")
	shortVersion = flag.Bool("v", false, "print version and exit (short)")
)

var featureOpts featureFlags

func init() {
	flag.Var(&featureOpts, "feature", "override a feature flag, name[=true|false] (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pixelterm [options] [directory|image]\n\n")
		fmt.Fprintf(os.Stderr, "Browse the images of a directory in the terminal.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if *versionFlag || *shortVersion {
		fmt.Printf("pixelterm version %s\n", effectiveVersion(Version))
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig {
		path := *configPath
		if path == "" {
			path = config.ConfigPath()
		}
		if err := config.SaveTo(path, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
		os.Exit(0)
	}

	logger, closeLog, err := setupLogger(*logPath, *debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	features.Init(cfg)
	for _, opt := range featureOpts {
		if err := features.ParseOverride(opt); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --feature: %v\n", err)
			os.Exit(1)
		}
	}
	if *noPreload {
		features.SetOverride(features.Preload.Name, false)
	}

	styles.ApplyTheme(cfg.UI.Theme, cfg.UI.Colors)

	backend, err := newBackend(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if errors.Is(err, render.ErrConverterMissing) {
			fmt.Fprintf(os.Stderr, "Install chafa (https://hpjansson.org/chafa/) or set renderer.backend to %q.\n", config.BackendTermimg)
		}
		os.Exit(1)
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if cfg.UI.ShowStatus {
			h -= 2
		}
		backend.SetViewport(render.Viewport{Width: w, Height: h})
	}
	renderer := render.Dedupe(backend, render.WithTimeout(backend, cfg.Renderer.Timeout))

	fds := fdmonitor.New(logger.With("component", "fdmonitor"), fdmonitor.Options{})
	passes := make(chan preload.Report, 1)
	sess := session.New(session.Options{
		Renderer:       renderer,
		CacheDir:       cfg.Cache.Dir,
		Scale:          cfg.Display.Scale,
		Radius:         cfg.Preload.Radius,
		Delay:          cfg.Preload.Delay,
		DisablePreload: !features.IsEnabled(features.Preload.Name),
		Logger:         logger,
		OnPass: func(r preload.Report) {
			fds.Check("preload pass")
			select {
			case passes <- r:
			default:
			}
		},
	})
	defer sess.Close()

	target := "."
	if flag.NArg() > 0 {
		target = flag.Arg(0)
	}
	if err := sess.OpenFile(target); err != nil {
		// An unreadable directory is shown as an empty catalog.
		if !errors.Is(err, catalog.ErrDirectoryAccess) {
			fmt.Fprintf(os.Stderr, "Cannot open %s: %v\n", target, err)
			sess.Close()
			os.Exit(1)
		}
	}

	km := keymap.NewRegistry()
	keymap.RegisterDefaults(km)
	for key, cmdID := range cfg.Keymap.Overrides {
		km.SetUserOverride(key, cmdID)
	}

	opts := app.Options{
		Session: sess,
		Backend: backend,
		Config:  cfg,
		Keymap:  km,
		Passes:  passes,
		Logger:  logger,
		Version: effectiveVersion(Version),
	}
	if features.IsEnabled(features.WatchDirectory.Name) {
		w, err := watch.New(0, logger.With("component", "watch"))
		if err != nil {
			logger.Warn("directory watcher unavailable", "err", err)
		} else {
			defer w.Stop()
			opts.Watcher = w
		}
	}

	p := tea.NewProgram(app.New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		sess.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// newBackend builds the configured renderer. The chafa backend is checked
// up front so a missing binary fails before the UI starts.
func newBackend(cfg *config.Config, logger *slog.Logger) (render.Backend, error) {
	if cfg.Renderer.Backend == config.BackendTermimg {
		return render.NewTermimg(logger.With("component", "termimg")), nil
	}
	runner := render.NewExecRunner()
	if err := render.CheckConverter(context.Background(), runner, cfg.Renderer.Command); err != nil {
		return nil, err
	}
	return render.NewChafa(render.ChafaOptions{
		Command: cfg.Renderer.Command,
		Args:    cfg.Renderer.Args,
		Runner:  runner,
		Logger:  logger.With("component", "chafa"),
	}), nil
}

// setupLogger logs to path when given. With --debug and no path it logs to
// the user cache directory; otherwise logs are discarded since the UI owns
// the terminal.
func setupLogger(path string, debugLog bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debugLog {
		level = slog.LevelDebug
	}
	if path == "" && debugLog {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "pixelterm", "debug.log")
	}
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(f, level)
	return logger, func() { _ = f.Close() }, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// effectiveVersion returns the version string, with fallback to build info.
func effectiveVersion(v string) string {
	if v != "" {
		return v
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision != "" {
		ver := "devel+" + shortRevision(revision)
		if dirty {
			ver += "+dirty"
		}
		return ver
	}
	return "devel"
}

// shortRevision returns the first 12 chars of a revision.
func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
