// In file: cmd/gateway/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/gateway"
	"github.com/dileep-u-k/tool-gateway/internal/llm"
	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Tool gateway between a chat frontend and its AI backend",
		Long:          `The gateway relays chat turns to an AI backend, executes the tool calls it asks for on local handlers or hosted tool services, and returns one ordered message sequence per turn.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newToolsCmd(), newVersionCmd())
	return root
}

// setup loads configuration and builds the logger every command shares.
func setup() (*AppConfig, *slog.Logger, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat), nil
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			build := version.GetBuildInfo()
			logger.Info("starting tool gateway", "version", build.Version, "commit", build.GitCommit)
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *AppConfig, logger *slog.Logger) error {
	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	client, resolved, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}
	logger.Info("AI backend configured", "provider", resolved.Provider, "model", resolved.Model)

	gw := gateway.New(client, svc.registry, svc.dispatcher, svc.adapters, gateway.Config{
		SystemPrompt:         cfg.Gateway.SystemPrompt,
		SummarizeToolResults: cfg.Gateway.SummarizeToolResults,
		Generation: llm.GenerationConfig{
			Model:       resolved.Model,
			MaxTokens:   cfg.Gateway.MaxTokens,
			Temperature: cfg.Gateway.Temperature,
		},
	}, logger)

	gin.SetMode(os.Getenv("GIN_MODE"))
	handler := gateway.NewHandler(gw, svc.stats(), svc.promReg, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return runServerWithGracefulShutdown(srv, logger)
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server, logger *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke tools without the AI backend",
	}
	cmd.AddCommand(newToolsListCmd(), newToolsCallCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tool catalogue in listing order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCHAIN\tDESCRIPTION")
			for _, d := range svc.registry.List() {
				chain := make([]string, 0, len(d.Fallback)+1)
				for _, src := range d.Chain() {
					chain = append(chain, string(src))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, strings.Join(chain, " > "), d.Description)
			}
			return w.Flush()
		},
	}
}

func newToolsCallCmd() *cobra.Command {
	var params string
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Invoke one tool and print the invocation response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parsed map[string]any
			if params != "" {
				if err := json.Unmarshal([]byte(params), &parsed); err != nil {
					return fmt.Errorf("--params must be a JSON object: %w", err)
				}
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			gw := gateway.New(nil, svc.registry, svc.dispatcher, svc.adapters, gateway.Config{}, logger)
			resp := gw.InvokeTool(cmd.Context(), api.ToolInvocationRequest{Name: args[0], Params: parsed})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("tool %s failed", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&params, "params", "", `Tool arguments as a JSON object, e.g. '{"location":"Paris"}'`)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			b := version.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "tool-gateway %s (commit %s, built %s, %s %s)\n", b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
			fmt.Fprintf(cmd.OutOrStdout(), "tools %s, protocol %s\n", version.ComponentVersions.Tools, version.ComponentVersions.Protocol)
		},
	}
}
