package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/shopbot/core/buildinfo"
	coreconfig "github.com/m3rciful/shopbot/core/config"
)

var (
	initMu      sync.Mutex
	initialized bool
	closed      bool

	sink    *asyncWriter
	closers []io.Closer

	levelVar     slog.LevelVar
	root         atomic.Pointer[slog.Logger]
	components   sync.Map
	debugSampler = newRatioSampler(1, 50)
	traceForced  atomic.Bool
)

// settings is the resolved logging section.
type settings struct {
	level      slog.Level
	format     logFormat
	order      []string
	sampleNum  int
	sampleDen  int
	stacks     bool
	profile    string
	dir        string
	mainFile   string
	errorsFile string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		level:     slog.LevelInfo,
		format:    formatJSON,
		order:     append([]string(nil), defaultKeyOrder...),
		sampleNum: 1,
		sampleDen: 50,
		stacks:    true,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	s.level = parseLevel(lc.Level)
	s.format = parseFormat(lc.Format, s.profile)
	if order := parseKeyOrder(lc.KeysOrder); len(order) > 0 {
		s.order = order
	}
	if raw := strings.TrimSpace(lc.DebugSample); raw != "" {
		s.sampleNum, s.sampleDen = parseRatio(raw)
	}
	if v := strings.TrimSpace(lc.Stacks); v != "" {
		s.stacks = isTruthy(v)
	}
	s.dir = strings.TrimSpace(lc.Dir)
	s.mainFile = strings.TrimSpace(lc.BotFile)
	s.errorsFile = strings.TrimSpace(lc.ErrorsFile)
	return s
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func parseFormat(raw, profile string) logFormat {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if profile == "debug" || profile == "dev" {
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			order = append(order, p)
		}
	}
	return order
}

// InitLogger installs the process-wide structured logger. Calls after the
// first one are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		return nil
	}

	s := settingsFrom(cfg)
	main, errs, files, err := openSinks(s)
	if err != nil {
		return err
	}
	levelVar.Set(s.level)
	debugSampler.Set(s.sampleNum, s.sampleDen)
	traceForced.Store(isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE")))

	closers = files
	sink = newAsyncWriter(main, errs, 64*1024)
	l := slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		writer:   sink,
		format:   s.format,
		keyOrder: s.order,
		stacks:   s.stacks,
	}))
	setRoot(l)
	slog.SetDefault(l)
	initialized = true

	build := buildinfo.Current()
	l.LogAttrs(context.Background(), slog.LevelInfo, "",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", build.Version),
		slog.String("build_commit", build.Commit),
		slog.String("build_time", build.Date),
		slog.String("cfg_profile", s.profile),
	)
	return nil
}

// openSinks returns the writers for every line and the extra writers that
// only receive error lines.
func openSinks(s settings) ([]io.Writer, []io.Writer, []io.Closer, error) {
	main := []io.Writer{os.Stdout}
	if s.dir == "" || (s.mainFile == "" && s.errorsFile == "") {
		return main, nil, nil, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("logger: create dir %s: %w", s.dir, err)
	}

	var files []io.Closer
	open := func(name string) (*os.File, error) {
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", path, err)
		}
		files = append(files, f)
		return f, nil
	}
	fail := func(err error) ([]io.Writer, []io.Writer, []io.Closer, error) {
		for _, f := range files {
			_ = f.Close()
		}
		return nil, nil, nil, err
	}

	if s.mainFile != "" {
		f, err := open(s.mainFile)
		if err != nil {
			return fail(err)
		}
		main = append(main, f)
	}
	var errs []io.Writer
	if s.errorsFile != "" && s.errorsFile != s.mainFile {
		f, err := open(s.errorsFile)
		if err != nil {
			return fail(err)
		}
		errs = append(errs, f)
	}
	return main, errs, files, nil
}

func setRoot(l *slog.Logger) {
	root.Store(l)
	components.Range(func(k, _ any) bool {
		components.Delete(k)
		return true
	})
}

// Shutdown drains queued lines and closes log files.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()
	if closed || sink == nil {
		return nil
	}
	closed = true

	var errs []error
	if err := sink.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Component returns the root logger tagged with name. It is nil until
// InitLogger has run.
func Component(name string) *slog.Logger {
	base := root.Load()
	if base == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return base
	}
	if l, ok := components.Load(name); ok {
		return l.(*slog.Logger)
	}
	l, _ := components.LoadOrStore(name, base.With("component", name))
	return l.(*slog.Logger)
}

// LogEvent writes one event line to logg, or to the logger stored in ctx
// when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = metaFrom(ctx).logger
	}
	if logg == nil {
		logg = root.Load()
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs event at level under component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		if l := metaFrom(ctx).logger; l != nil && strings.TrimSpace(component) != "" {
			logg = l.With("component", strings.TrimSpace(component))
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug detail should be
// written. TRACE=1 forces every detail through.
func ShouldSampleDebug() bool {
	if traceForced.Load() {
		return true
	}
	return debugSampler.Allow()
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
