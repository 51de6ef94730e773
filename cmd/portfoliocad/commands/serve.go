package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/denismitr/portfoliocad"
	"github.com/denismitr/portfoliocad/internal/devsave"
	"github.com/denismitr/portfoliocad/internal/httpapi"
	"github.com/denismitr/portfoliocad/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the image api, the dev save endpoint and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Address = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			store := a.store(portfoliocad.WithObserver(m))
			save := devsave.New(a.cfg.SaveDataPath, a.cfg.IsDevelopment())

			log.Info().
				Str("data_dir", a.cfg.DataDir).
				Str("env", a.cfg.Env).
				Bool("save_enabled", a.cfg.IsDevelopment()).
				Msg("starting portfoliocad")

			// opening up front surfaces a broken data dir before the first request
			if info, err := store.Info(ctx); err != nil {
				log.Warn().Err(err).Msg("image database is not available")
			} else {
				log.Info().
					Str("path", info.Path).
					Int("version", info.Version).
					Int("records", info.Records).
					Int64("size", info.Size).
					Msg("image database ready")
			}

			return httpapi.NewServer(a.cfg.Address, httpapi.NewRouter(store, save, m)).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env PORTFOLIOCAD_ADDRESS)")
	return cmd
}
