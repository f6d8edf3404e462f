// Command authcored serves the authcore HTTP API and runs its maintenance
// tasks.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appName = "authcored"

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Authentication service built on authcore",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("AUTHCORE_CONFIG"), "Config file path (YAML)")

	cmd.AddCommand(
		serveCmd(&configPath),
		sweepCmd(&configPath),
		migrateCmd(&configPath),
		useraddCmd(&configPath),
		hashPasswordCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, version)
			},
		},
	)
	return cmd
}

// withEngine opens the app and engine, runs fn and tears both down.
func withEngine(ctx context.Context, configPath string, fn func(*app, *authcore.Engine) error) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		engine.Close(cctx)
	}()
	return fn(a, engine)
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the token sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withEngine(ctx, *configPath, func(a *app, engine *authcore.Engine) error {
				return serve(ctx, a, engine)
			})
		},
	}
}

func serve(ctx context.Context, a *app, engine *authcore.Engine) error {
	if err := engine.StartSweeper(); err != nil {
		return err
	}

	metricsPath := ""
	if a.cfg.Auth.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	srv := &server{
		engine:      engine,
		logger:      a.logger.Named("http"),
		trustProxy:  a.cfg.HTTP.TrustProxy,
		development: a.cfg.Auth.Development(),
	}
	httpServer := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      srv.routes(metricsPath),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func sweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete used and expired tokens once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), *configPath, func(a *app, engine *authcore.Engine) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Auth.Refresh.SweepTimeout)
				defer cancel()
				res, err := engine.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refresh tokens deleted: %d\nreset tokens deleted: %d\n",
					res.RefreshTokens, res.ResetTokens)
				return nil
			})
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.migrate(cmd.Context())
		},
	}
}

func useraddCmd(configPath *string) *cobra.Command {
	var (
		username string
		email    string
		roles    []string
	)
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Register an account; the password is read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), *configPath, func(_ *app, engine *authcore.Engine) error {
				acc, err := engine.Register(cmd.Context(), authcore.RequestMeta{
					SourceAddress: "cli",
					Resource:      appName + " useradd",
				}, authcore.RegisterInput{
					Username: username,
					Email:    email,
					Password: pw,
					Roles:    roles,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created account %d (%s)\n", acc.ID, acc.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (3-50 characters)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant, repeatable (default USER)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func hashPasswordCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a peppered password hash read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), *configPath, func(_ *app, engine *authcore.Engine) error {
				hash, err := engine.HashPassword(pw)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			})
		},
	}
}

func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password")
	}
	return pw, nil
}
