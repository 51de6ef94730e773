package commands

import (
	"github.com/denismitr/portfoliocad"
	"github.com/denismitr/portfoliocad/internal/config"
	"github.com/denismitr/portfoliocad/internal/idb"
	"github.com/denismitr/portfoliocad/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type app struct {
	cfg config.Config

	dataDir   string
	logLevel  string
	logFormat string

	factory *idb.Factory
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "portfoliocad",
		Short:         "Image storage and dev server for the portfolio layout tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding the image database (env PORTFOLIOCAD_DATA_DIR)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "trace, debug, info, warn or error (env PORTFOLIOCAD_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "console or json (env PORTFOLIOCAD_LOG_FORMAT)")

	root.AddCommand(
		newServeCmd(a),
		newImagesCmd(a),
		newAssetCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}

	if err := logging.SetupWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	a.cfg = cfg
	return nil
}

func (a *app) store(opts ...portfoliocad.Option) *portfoliocad.Store {
	if a.factory == nil {
		a.factory = idb.NewFactory(a.cfg.DatabaseConfig())
	}

	return portfoliocad.NewWithHost(a.factory, opts...)
}

func (a *app) close() error {
	if a.factory == nil {
		return nil
	}

	return errors.Wrap(a.factory.Close(), "could not close the image database")
}
