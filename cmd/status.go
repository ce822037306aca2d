package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-cli/internal/pipeline"
	"github.com/sells-group/geo-cli/internal/store"
)

var (
	statusResponses bool
	statusFormat    string
)

var statusCmd = &cobra.Command{
	Use:   "status <analysis-id>",
	Short: "Show an analysis with its scores, competitors and recommendations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rep, err := store.Report(ctx, st, args[0], statusResponses)
		if err != nil {
			return eris.Wrap(err, "load report")
		}

		switch statusFormat {
		case "text":
			fmt.Fprint(os.Stdout, pipeline.FormatReport(rep))
			return nil
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		default:
			return eris.Errorf("unknown --format %q (json, text)", statusFormat)
		}
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusResponses, "responses", false, "include every provider answer")
	statusCmd.Flags().StringVar(&statusFormat, "format", "json", "output format: json or text")
	rootCmd.AddCommand(statusCmd)
}
