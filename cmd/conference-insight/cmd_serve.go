package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/joelkehle/conference-insight/internal/httpapi"
	"github.com/joelkehle/conference-insight/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		if c != nil {
			defer c.Close()
		}

		if cfg.Logging.Mode == "production" || cfg.Logging.Mode == "prod" {
			gin.SetMode(gin.ReleaseMode)
		}
		handler := httpapi.NewServer(newService(st, c), st, httpapi.Options{
			Log:         log,
			CORSOrigins: cfg.Server.CORSOrigins,
		})

		srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info("dashboard api listening", "addr", addr, "db", cfg.Database.Path, "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dashboard queries as MCP tools on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		instance, _ := cmd.Flags().GetInt64("instance")
		if instance == 0 {
			instance = cfg.Server.DefaultInstance
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		if c != nil {
			defer c.Close()
		}

		srv := mcpserver.New(newService(st, c), instance, version, log)
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	mcpCmd.Flags().Int64("instance", 0, "Default conference instance for tool calls (overrides server.default_instance)")
}
