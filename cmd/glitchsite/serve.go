package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/glitchsite/api"
)

// --- Serve Command (HTTP server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr()
		}

		resolver, reg, err := newResolver()
		if err != nil {
			return err
		}

		srv, err := api.NewServer(cfg, api.Options{
			Resolver: resolver,
			Logger:   logger,
			Version:  version,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, addr)
		})
		g.Go(func() error {
			// Log upstream reachability once at startup.
			if !cfg.Currency.Enabled {
				return nil
			}
			pctx, cancel := context.WithTimeout(ctx, cfg.Currency.Timeout()+time.Second)
			defer cancel()
			for _, res := range reg.Ping(pctx) {
				entry := logger.WithField("provider", res.Name)
				if res.OK {
					entry.Info("provider reachable")
				} else {
					entry.WithField("error", res.Error).Warn("provider unreachable")
				}
			}
			return nil
		})

		logger.WithFields(logrus.Fields{
			"version":  version,
			"addr":     addr,
			"currency": cfg.Currency.Enabled,
		}).Info("starting glitchsite")

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.host:server.port)")
}
