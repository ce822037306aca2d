package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-cli/internal/model"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage user subscription plans",
}

var (
	planUser string
	planTier string
)

var planSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the plan tier of a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		tier, err := parseTier(planTier)
		if err != nil {
			return err
		}
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SetUserPlan(ctx, planUser, tier); err != nil {
			return eris.Wrap(err, "set user plan")
		}
		limits := tier.Limits()
		fmt.Fprintf(os.Stdout, "%s: %s (max %d pages, %d recommendations)\n",
			planUser, tier, limits.MaxPages, limits.MaxRecommendations)
		return nil
	},
}

// parseTier accepts only the sold tiers; model.ParsePlanTier keeps unknown
// values so plans written by other tools still resolve.
func parseTier(s string) (model.PlanTier, error) {
	tier := model.ParsePlanTier(s)
	if strings.TrimSpace(s) == "" || !tier.Known() {
		return "", eris.Errorf("unknown plan tier %q (free, basic, pro, business)", s)
	}
	return tier, nil
}

func init() {
	planSetCmd.Flags().StringVar(&planUser, "user", "", "user ID (required)")
	planSetCmd.Flags().StringVar(&planTier, "tier", "", "plan tier: free, basic, pro or business (required)")
	_ = planSetCmd.MarkFlagRequired("user")
	_ = planSetCmd.MarkFlagRequired("tier")
	planCmd.AddCommand(planSetCmd)
	rootCmd.AddCommand(planCmd)
}
