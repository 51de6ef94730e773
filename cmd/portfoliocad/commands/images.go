package commands

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/denismitr/portfoliocad/options"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

var errImageNotFound = errors.New("image not found")

func newImagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage stored images",
	}

	cmd.AddCommand(
		newImagesPutCmd(a),
		newImagesGetCmd(a),
		newImagesDataCmd(a),
		newImagesRmCmd(a),
		newImagesLsCmd(a),
		newImagesInfoCmd(a),
		newImagesVacuumCmd(a),
	)

	return cmd
}

func newImagesPutCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "put <id> <file>",
		Short: "Store a file as an image data URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return errors.Wrapf(err, "could not read %s", args[1])
			}

			opts := options.Put()
			if cmd.Flags().Changed("name") {
				opts.SetName(name)
			}

			return a.store().Put(cmd.Context(), args[0], DataURL(raw), opts)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name of the image")
	return cmd
}

// DataURL encodes raw as a base64 data URL with a sniffed media type.
func DataURL(raw []byte) string {
	mime := http.DetectContentType(raw)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func newImagesGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print an image record as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.store().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if rec == nil {
				return errors.Wrapf(errImageNotFound, "%q", args[0])
			}

			b, err := json.Marshal(rec)
			if err != nil {
				return errors.Wrap(err, "could not encode image record")
			}

			_, err = cmd.OutOrStdout().Write(pretty.Pretty(b))
			return err
		},
	}
}

func newImagesDataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "data <id>",
		Short: "Print only the data URL of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataURL, found, err := a.store().GetDataURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !found {
				return errors.Wrapf(errImageNotFound, "%q", args[0])
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), dataURL)
			return err
		},
	}
}

func newImagesRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store().Delete(cmd.Context(), args[0])
		},
	}
}

func newImagesLsCmd(a *app) *cobra.Command {
	var (
		prefix string
		desc   bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List image ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options.List().Prefix(prefix).SetLimit(limit)
			if desc {
				opts.SetOrder(options.Descend)
			}

			ids, err := a.store().Keys(cmd.Context(), opts)
			if err != nil {
				return err
			}

			for _, id := range ids {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only ids starting with prefix")
	cmd.Flags().BoolVar(&desc, "desc", false, "list in descending order")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of ids, 0 lists all")
	return cmd
}

func newImagesInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the image database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.store().Info(cmd.Context())
			if err != nil {
				return err
			}

			b, err := json.Marshal(info)
			if err != nil {
				return errors.Wrap(err, "could not encode database info")
			}

			_, err = cmd.OutOrStdout().Write(pretty.Pretty(b))
			return err
		},
	}
}

func newImagesVacuumCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the image database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store().Vacuum(cmd.Context())
		},
	}
}
