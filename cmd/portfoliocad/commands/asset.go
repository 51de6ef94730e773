package commands

import (
	"fmt"

	"github.com/denismitr/portfoliocad/internal/assets"
	"github.com/spf13/cobra"
)

func newAssetCmd(a *app) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "asset <path>",
		Short: "Resolve a public asset path against the base path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("base") {
				base = a.cfg.BasePath
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), assets.Path(base, args[0]))
			return err
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "base path (env PORTFOLIOCAD_BASE_PATH)")
	return cmd
}
