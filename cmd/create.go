package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/crawl"
	"github.com/sells-group/geo-cli/internal/store"
)

var (
	createURL     string
	createBrand   string
	createUser    string
	createStart   bool
	createEnqueue bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending analysis for a website",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if createStart && createEnqueue {
			return eris.New("--start and --enqueue are mutually exclusive")
		}

		mode := "store"
		switch {
		case createStart:
			mode = "pipeline"
		case createEnqueue:
			mode = "worker"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		if _, err := crawl.NormalizeURL(createURL); err != nil {
			return eris.Wrap(err, "invalid --url")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := st.CreateAnalysis(ctx, store.NewAnalysis{UserID: createUser, URL: createURL, BrandName: createBrand})
		if err != nil {
			return eris.Wrap(err, "create analysis")
		}
		zap.L().Info("analysis created", zap.String("analysis_id", a.ID), zap.String("url", a.URL))

		switch {
		case createEnqueue:
			pub, err := initPublisher(ctx)
			if err != nil {
				return err
			}
			if err := pub.Publish(ctx, a.ID); err != nil {
				return err
			}
			zap.L().Info("analysis enqueued", zap.String("analysis_id", a.ID))
		case createStart:
			p, rdb, err := buildPipeline(st)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close() //nolint:errcheck
			}
			if _, err := p.Run(ctx, a.ID); err != nil {
				return eris.Wrap(err, "pipeline run")
			}
			if a, err = st.GetAnalysis(ctx, a.ID); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	},
}

func init() {
	createCmd.Flags().StringVar(&createURL, "url", "", "website URL (required)")
	createCmd.Flags().StringVar(&createBrand, "brand", "", "brand name (derived from the site when empty)")
	createCmd.Flags().StringVar(&createUser, "user", "", "owning user ID (selects the plan)")
	createCmd.Flags().BoolVar(&createStart, "start", false, "run the analysis immediately")
	createCmd.Flags().BoolVar(&createEnqueue, "enqueue", false, "send a start request to the worker queue")
	_ = createCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(createCmd)
}
