package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/iurnickita/storecredit/internal/auth"
	"github.com/iurnickita/storecredit/internal/config"
	"github.com/iurnickita/storecredit/internal/handler"
	"github.com/iurnickita/storecredit/internal/logger"
	"github.com/iurnickita/storecredit/internal/metrics"
	"github.com/iurnickita/storecredit/internal/service"
	"github.com/iurnickita/storecredit/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on")
	serveCmd.Flags().String("driver", "", "Store driver (pgx or sqlite)")
	serveCmd.Flags().String("dsn", "", "Store DSN")
	v.BindPFlag("handler.server_addr", serveCmd.Flags().Lookup("addr"))
	v.BindPFlag("store.driver", serveCmd.Flags().Lookup("driver"))
	v.BindPFlag("store.dsn", serveCmd.Flags().Lookup("dsn"))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		app := fx.New(
			fx.Supply(cfg),
			fx.Provide(
				newLogger,
				newStore,
				newMetrics,
				newAuth,
				newService,
				newServer,
			),
			fx.WithLogger(func(zaplog *zap.Logger) fxevent.Logger {
				return &fxevent.ZapLogger{Logger: zaplog}
			}),
			fx.Invoke(startServer),
		)

		startCtx, cancel := context.WithTimeout(cmd.Context(), fx.DefaultTimeout)
		defer cancel()
		if err = app.Start(startCtx); err != nil {
			return err
		}

		<-app.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Handler.ShutdownTimeout)
		defer cancel()
		return app.Stop(stopCtx)
	},
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.NewZapLog(cfg.Logger)
}

func newStore(cfg config.Config, lc fx.Lifecycle) (store.Store, error) {
	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

func newMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.DefaultRegisterer)
}

func newAuth(cfg config.Config) (auth.Auth, error) {
	return auth.NewAuth(cfg.Auth)
}

func newService(cfg config.Config, st store.Store, m *metrics.Metrics, zaplog *zap.Logger) service.Service {
	return service.NewService(cfg.Service, st, m, zaplog)
}

func newServer(cfg config.Config, a auth.Auth, svc service.Service, m *metrics.Metrics, st store.Store, zaplog *zap.Logger) *http.Server {
	return handler.NewServer(cfg.Handler, a, svc, m, st, zaplog)
}

func startServer(srv *http.Server, cfg config.Config, zaplog *zap.Logger, lc fx.Lifecycle, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			zaplog.Info("storecredit server started",
				zap.String("addr", ln.Addr().String()),
				zap.String("driver", cfg.Store.Driver))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zaplog.Error("server failed", zap.Error(err))
					shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zaplog.Info("storecredit server stopping")
			return srv.Shutdown(ctx)
		},
	})
}
