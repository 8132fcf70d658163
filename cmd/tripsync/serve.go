package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/tripsync/internal/api"
	"github.com/rongwang/tripsync/internal/service"
	"github.com/spf13/cobra"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the proposals bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, gw, err := setup(flags)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			gin.SetMode(gin.ReleaseMode)

			registry := service.NewRegistry(gw, logger)
			defer registry.Close()

			handler := api.NewHandler(registry, []byte(cfg.Auth.JWTSecret), logger)
			router := api.NewRouter(handler, logger)

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
				Handler: router,
			}

			// signal.Notify requires the channel to be buffered
			ctrlc := make(chan os.Signal, 1)
			signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-ctrlc
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(ctx)
			}()

			logger.Info("starting server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			logger.Info("server closed")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Server port (overrides config)")
	return cmd
}
