package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	goredislib "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/authz"
	"github.com/roach88/vaultledger/internal/config"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/keylock"
	"github.com/roach88/vaultledger/internal/ledger"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/reconcile"
	"github.com/roach88/vaultledger/internal/store"
)

// app is a ledger wired from configuration for one command invocation.
type app struct {
	cfg      config.Config
	store    *store.Store
	ledger   *ledger.Ledger
	gate     *authz.Gate
	logger   *slog.Logger
	out      *OutputFormatter
	decimals int32
	closers  []io.Closer
}

// withApp opens the app, runs fn and closes everything it opened.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}

func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config, opts.EnvFile)
	if err != nil {
		return nil, out.Abort(ErrCodeConfig, "load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
		if err := cfg.Validate(); err != nil {
			return nil, out.Abort(ErrCodeConfig, "load config", err)
		}
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)
	slog.SetDefault(logger)

	out.VerboseLog("opening database %s", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, out.Abort(ErrCodeGeneric, "failed to open database", err)
	}

	a := &app{cfg: cfg, store: st, logger: logger, out: out}
	a.closers = append(a.closers, st)
	if opts.UI {
		a.decimals = cfg.TokenDecimals
	}

	locker, err := a.locker()
	if err != nil {
		_ = a.Close()
		return nil, out.Abort(ErrCodeConfig, "configure lock backend", err)
	}
	recorder := audit.NewRecorder(a.auditSink(), model.UUIDv7Generator{}, model.SystemClock{}).WithLogger(logger)

	a.gate = authz.New(st,
		authz.WithCacheTTL(cfg.Authz.CacheTTL.Std()),
		authz.WithRecorder(recorder),
		authz.WithLogger(logger),
	)
	a.ledger = ledger.New(st,
		ledger.WithLocker(locker),
		ledger.WithGate(a.gate),
		ledger.WithRecorder(recorder),
		ledger.WithLogger(logger),
	)
	return a, nil
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func (a *app) locker() (keylock.Locker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return keylock.NewLocal(), nil
	}
	client := goredislib.NewClient(&goredislib.Options{Addr: a.cfg.Lock.RedisAddr})
	a.closers = append(a.closers, client)

	ropts := keylock.DefaultRedisOptions()
	ropts.Expiry = a.cfg.Lock.Expiry.Std()
	ropts.Tries = a.cfg.Lock.Tries
	ropts.RetryDelay = a.cfg.Lock.RetryDelay.Std()
	ropts.Logger = a.logger
	a.out.VerboseLog("using redis locks at %s", a.cfg.Lock.RedisAddr)
	return keylock.NewRedis(client, ropts)
}

func (a *app) auditSink() audit.Sink {
	sink := audit.NewStoreSink(a.store)
	if a.cfg.Audit.File == "" {
		return sink
	}
	file := audit.NewFileSink(a.cfg.Audit.File, a.cfg.Audit.MaxSizeMB, a.cfg.Audit.MaxBackups)
	a.closers = append(a.closers, file)
	return audit.MultiSink{sink, file}
}

func (a *app) driver() *reconcile.Driver {
	return reconcile.NewDriver(a.ledger,
		reconcile.WithRetry(a.cfg.Reconcile.RetryAttempts, a.cfg.Reconcile.RetryBase.Std()),
		reconcile.WithLogger(a.logger),
	)
}

// Close releases everything in reverse order of opening; the store goes last.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) parseAmount(flag, s string) (int64, error) {
	if s == "" {
		return 0, fault.Validation("--%s is required", flag)
	}
	n, err := model.ParseAmount(s, a.decimals)
	if err != nil {
		return 0, fault.Validation("--%s: %v", flag, err)
	}
	return n, nil
}

func (a *app) amount(n int64) string {
	return model.FormatAmount(n, a.decimals)
}
