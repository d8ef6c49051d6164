package cmd

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/ignite/internal/auth"
	"github.com/felixgeelhaar/ignite/internal/config"
	"github.com/felixgeelhaar/ignite/internal/credstore"
	"github.com/felixgeelhaar/ignite/internal/errors"
	"github.com/felixgeelhaar/ignite/internal/log"
	"github.com/felixgeelhaar/ignite/internal/metrics"
	"github.com/felixgeelhaar/ignite/internal/platform"
	"github.com/felixgeelhaar/ignite/internal/session"
	"github.com/felixgeelhaar/ignite/internal/transport"
	"github.com/felixgeelhaar/ignite/internal/ux"
	"github.com/felixgeelhaar/ignite/internal/version"
)

// app is the object graph a command works with.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	metrics   *metrics.Metrics
	store     credstore.Store
	transport *transport.Client
	client    *platform.Client
	session   *session.Manager
	out       ux.Formatter

	stopMetrics context.CancelFunc
	metricsDone sync.WaitGroup
}

// loadConfig reads the configuration for cmd, honoring --config and the
// bound persistent flags.
func loadConfig(cmd *cobra.Command) (*viper.Viper, *config.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)

	v, err := config.New(path)
	if err != nil {
		return nil, nil, errors.NewConfigError("cannot read the config file", err)
	}
	if err := config.BindFlags(v, cmd.Flags(), changedFlags(cmd)); err != nil {
		return nil, nil, errors.NewConfigError("cannot bind flags", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, errors.NewConfigError(configErrorDetail(err), err)
	}
	return v, cfg, nil
}

// changedFlags returns the bindings for flags set on the command line, so
// empty flag defaults never shadow file or environment values.
func changedFlags(cmd *cobra.Command) map[string]string {
	bindings := make(map[string]string, len(flagBindings))
	for key, name := range flagBindings {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			bindings[key] = name
		}
	}
	return bindings
}

func configErrorDetail(err error) string {
	var authErr *auth.AuthError
	if stderrors.As(err, &authErr) {
		return authErr.Message
	}
	return err.Error()
}

// newFormatter creates the formatter selected by -o.
func newFormatter(cmd *cobra.Command) (ux.Formatter, error) {
	format, _ := cmd.Flags().GetString(flagOutput)
	f, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return f, nil
}

// newApp wires configuration, logging, metrics, the credential store, the
// transport and the session manager, then restores the stored session.
func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	out, err := newFormatter(cmd)
	if err != nil {
		return nil, err
	}

	logCfg, err := log.ParseConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, errors.NewConfigError(err.Error(), err)
	}
	logger := log.New(logCfg).With("version", version.GetInfo().Short())
	log.SetDefaultLogger(logger)

	a := &app{cfg: cfg, logger: logger, out: out, metrics: metrics.Discard()}

	if cfg.Metrics.Addr != "" {
		a.metrics = metrics.GetDefault()
		a.serveMetrics(ctx, cfg.Metrics.Addr)
	}

	store, err := credstore.New(cfg.StoreFactoryConfig())
	if err != nil {
		a.close()
		if auth.IsAuthError(err, auth.ErrConfig) {
			return nil, errors.NewConfigError(configErrorDetail(err), err)
		}
		return nil, errors.NewStorageError(err)
	}
	a.store = store

	a.transport = transport.NewClient(transport.Config{
		BaseURL:        cfg.API.URL,
		Timeout:        cfg.API.Timeout,
		ExpiredMessage: cfg.Transport.ExpiredMessage,
	}, logger)
	a.client = platform.NewClient(a.transport)

	a.session = session.NewManager(store, a.client, a.transport, session.Options{
		RefreshTimeout:  cfg.Refresh.Timeout,
		ProactiveWindow: cfg.Refresh.ProactiveWindow,
		Logger:          logger,
		Metrics:         a.metrics,
	})
	a.session.Subscribe(func(e session.Event) {
		logger.Debug("session changed", "reason", string(e.Reason), "state", e.Session.State.String())
	})

	snap := a.session.Restore(ctx)
	logger.Debug("session restored", "state", snap.State.String(), "store", cfg.Store.Type)

	return a, nil
}

func (a *app) serveMetrics(ctx context.Context, addr string) {
	ctx, a.stopMetrics = context.WithCancel(ctx)
	a.metricsDone.Add(1)
	go func() {
		defer a.metricsDone.Done()
		if err := metrics.Serve(ctx, addr); err != nil {
			a.logger.WithError(err).Warn("metrics endpoint stopped", "addr", addr)
		}
	}()
	a.logger.Info("serving metrics", "addr", addr)
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close credential store")
		}
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		a.metricsDone.Wait()
	}
}

// requireSession fails with a not-signed-in error when there is no session.
// It also renews tokens that are about to expire.
func (a *app) requireSession(ctx context.Context) error {
	if a.session.State() != auth.StateAuthenticated {
		return errors.NewNotSignedInError()
	}
	return a.session.EnsureFresh(ctx)
}

type appRunFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

// withApp builds the app for a command and converts domain errors into
// user-facing ones.
func withApp(fn appRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		err = errors.FromAuth(fn(cmd.Context(), cmd, a, args))
		if err != nil {
			a.logger.WithError(err).DebugContext(cmd.Context(), "command failed", "command", cmd.CommandPath())
		}
		return err
	}
}
