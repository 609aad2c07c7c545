package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"backend-accessnature/internal/auth"
	"backend-accessnature/internal/config"
	"backend-accessnature/internal/console"
	"backend-accessnature/internal/db"
	"backend-accessnature/internal/kv"
	"backend-accessnature/internal/logging"
	"backend-accessnature/internal/position"
	"backend-accessnature/internal/route"
	"backend-accessnature/internal/storage"
	"backend-accessnature/internal/stream"
	"backend-accessnature/internal/tracking"
	"backend-accessnature/internal/trail"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peterbourgon/ff"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps

const (
	statePollInterval = 100 * time.Millisecond
	controlsHelp      = "Controls: p pause or resume, n <text> add a note, s stop."
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, mainDepsProvider(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Printf("tracker: %v", err)
		os.Exit(1)
	}
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	clock           func() time.Time
	logOutput       io.Writer
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		clock:           time.Now,
		logOutput:       os.Stderr,
	}
}

type flags struct {
	gpxFile    string
	fixesFile  string
	userID     string
	sessionID  string
	speed      float64
	auto       bool
	controls   bool
	issueToken bool
	offline    bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)
	fs.StringVar(&f.gpxFile, "gpx", "", "replay the track points of a GPX file")
	fs.StringVar(&f.fixesFile, "fixes", "", "read JSON-lines fixes from a file, - for stdin")
	fs.StringVar(&f.userID, "user", "", "user id that owns uploaded routes")
	fs.StringVar(&f.sessionID, "session", "", "publish live updates under this session id")
	fs.Float64Var(&f.speed, "speed", 0, "GPX replay speed factor, 0 replays without delay")
	fs.BoolVar(&f.auto, "auto", false, "answer every prompt with yes")
	fs.BoolVar(&f.controls, "controls", false, "read control lines (p, n <text>, s) from stdin while recording")
	fs.BoolVar(&f.issueToken, "issue-token", false, "print an API token for -user and exit")
	fs.BoolVar(&f.offline, "offline", false, "never upload, save routes on this device")
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TRACKER")); err != nil {
		return flags{}, err
	}
	if f.issueToken {
		if f.userID == "" {
			return flags{}, errors.New("-issue-token needs -user")
		}
		return f, nil
	}
	if (f.gpxFile == "") == (f.fixesFile == "") {
		return flags{}, errors.New("exactly one of -gpx or -fixes is required")
	}
	if f.controls && f.fixesFile == "-" {
		return flags{}, errors.New("-controls needs stdin, which -fixes - already reads")
	}
	return f, nil
}

func run(ctx context.Context, deps mainDeps, args []string, stdin io.Reader, stdout io.Writer) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg := deps.loadConfig()
	logger := logging.New(deps.logOutput, cfg.LogLevel)

	if f.issueToken {
		token, err := auth.NewService(cfg.JWTSecret).IssueAccessToken(f.userID)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, token)
		return nil
	}

	source, closeSource, err := openSource(f, stdin)
	if err != nil {
		return err
	}
	defer closeSource()

	rdb := deps.connectRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("tracker: redis unreachable", "addr", cfg.RedisAddr, "error", err)
			rdb = nil
		}
	}
	store := route.NewStore(openKV(cfg, rdb, logger), logger, deps.clock)

	renderers := tracking.Renderers{console.NewRenderer(stdout)}
	var hub *stream.Hub
	if rdb != nil && f.sessionID != "" {
		hub = stream.NewHub(rdb, logger)
		defer hub.Close()
		renderers = append(renderers, stream.NewRenderer(hub, f.sessionID, logger))
	}

	terminal := console.NewPrompter(stdin, stdout)
	var prompter tracking.Prompter = terminal
	if f.auto || f.fixesFile == "-" {
		prompter = console.AutoPrompter{Out: stdout}
	}

	uploader, closeUploader := openUploader(deps, cfg, f, logger)
	defer closeUploader()

	ended := make(chan struct{})
	var endOnce sync.Once
	ctl := tracking.NewController(tracking.Deps{
		Store:       store,
		Source:      source,
		Renderer:    renderers,
		Prompter:    prompter,
		Uploader:    uploader,
		Clock:       deps.clock,
		Logger:      logger,
		OnStreamEnd: func() { endOnce.Do(func() { close(ended) }) },
	}, cfg.TrackingOptions())

	if summary, err := ctl.CheckForUnsavedRoute(ctx); err != nil {
		return err
	} else if summary != nil && summary.Restored {
		fmt.Fprintf(stdout, "Restored %d points, %.2f km.\n", summary.PointCount, summary.TotalDistanceKm)
	}

	if err := ctl.Start(ctx); err != nil {
		return err
	}
	var commands <-chan string
	if f.controls {
		fmt.Fprintln(stdout, controlsHelp)
		commands = terminal.Commands()
	}
	record(ctx, ctl, ended, commands, stdout)

	if hub != nil {
		if err := hub.ForgetPosition(context.WithoutCancel(ctx), f.sessionID); err != nil {
			logger.Warn("tracker: forget live position", "error", err)
		}
	}

	outcome, err := ctl.Stop(context.WithoutCancel(ctx))
	fmt.Fprintf(stdout, "Route %s.\n", outcome)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// record waits while the controller consumes the position stream. It
// returns once the source runs dry, the context ends, a stop is typed or the
// controller leaves the recording states on its own.
func record(ctx context.Context, ctl *tracking.Controller, ended <-chan struct{}, commands <-chan string, out io.Writer) {
	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ended:
			return
		case <-ticker.C:
			if st := ctl.State(); st != tracking.StateRecording && st != tracking.StatePaused {
				return
			}
		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if !control(ctx, ctl, strings.TrimSpace(line), out) {
				return
			}
		}
	}
}

// control applies one typed line and reports whether recording goes on.
func control(ctx context.Context, ctl *tracking.Controller, line string, out io.Writer) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
	case "p":
		if err := ctl.Pause(ctx); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		} else if ctl.State() == tracking.StatePaused {
			fmt.Fprintln(out, "Paused.")
		} else {
			fmt.Fprintln(out, "Resumed.")
		}
	case "n":
		if err := ctl.AddNote(ctx, strings.TrimSpace(arg)); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		} else {
			fmt.Fprintln(out, "Note added.")
		}
	case "s":
		return false
	default:
		fmt.Fprintf(out, "! unknown control %q\n", cmd)
	}
	return true
}

func openSource(f flags, stdin io.Reader) (tracking.PositionSource, func(), error) {
	noop := func() {}
	if f.gpxFile != "" {
		data, err := os.ReadFile(f.gpxFile)
		if err != nil {
			return nil, noop, err
		}
		replay, err := position.NewGPXReplay(data, f.speed)
		return replay, noop, err
	}
	if f.fixesFile == "-" {
		return position.NewJSONLines(stdin), noop, nil
	}
	file, err := os.Open(f.fixesFile)
	if err != nil {
		return nil, noop, err
	}
	return position.NewJSONLines(file), func() { _ = file.Close() }, nil
}

func openKV(cfg config.Config, rdb *redis.Client, logger *slog.Logger) kv.Store {
	if cfg.StorageBackend == "redis" && rdb != nil {
		return kv.NewRedis(rdb, "accessnature:"+cfg.DeviceID)
	}
	if cfg.StorageBackend == "redis" {
		logger.Warn("tracker: redis storage unavailable, recovery snapshots will not survive this process")
	}
	return kv.NewMemory(cfg.StorageQuotaByte)
}

// openUploader returns a nil Uploader when routes should be saved locally.
func openUploader(deps mainDeps, cfg config.Config, f flags, logger *slog.Logger) (tracking.Uploader, func()) {
	if f.offline || f.userID == "" {
		return nil, func() {}
	}
	pool, err := deps.connectPostgres(cfg)
	if err != nil {
		logger.Warn("tracker: postgres unreachable, saving on this device", "error", err)
		return nil, func() {}
	}
	svc := trail.NewService(pool, storage.NewService(pool))
	return trail.NewUploader(svc, f.userID), pool.Close
}
