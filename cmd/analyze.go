package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeInput shipmentInput

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze tariffs for a single shipment",
	Long: `Fetches the candidate tariff codes for an HTS classification and reports
which penalties, exclusions, and special programs apply to the shipment,
plus the aggregated duty rate and landed cost.

Examples:
  # Chinese-origin goods entering today by ocean
  tariff-cli analyze --hts 8708945000 --country CN --transport OCEAN --base-cost 25000

  # Entry and loading dates pinned for a historical evaluation
  tariff-cli analyze --hts 0101300000 --country AU --entry-date 2024-03-01 --loading-date 2024-02-10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := evaluate(cmd.Context(), newHTSClient(), analyzeInput)
		if err != nil {
			return err
		}

		zap.L().Info("analysis complete",
			zap.String("hts_code", analyzeInput.HTSCode),
			zap.String("country", result.Inputs.Country),
			zap.String("duty_rate", result.TotalRate.DutyRate),
			zap.Int("active_penalties", len(result.Data.OtherTariffs.ActivePenalties)),
			zap.Int("excluded_penalties", len(result.Data.OtherTariffs.ExcludedPenalties)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput.HTSCode, "hts", "", "HTS code, e.g. 0101300000 (required)")
	analyzeCmd.Flags().StringVar(&analyzeInput.Country, "country", "", "2-letter country of origin, e.g. CN (required)")
	analyzeCmd.Flags().StringVar(&analyzeInput.EntryDate, "entry-date", "", "entry date YYYY-MM-DD (default: today)")
	analyzeCmd.Flags().StringVar(&analyzeInput.LoadingDate, "loading-date", "", "loading date YYYY-MM-DD (optional)")
	analyzeCmd.Flags().StringVar(&analyzeInput.Transport, "transport", "ANY", "mode of transport: ANY, OCEAN, AIR, TRUCK, RAIL")
	analyzeCmd.Flags().Float64Var(&analyzeInput.BaseCost, "base-cost", 0, "shipment base cost for duty calculation")
	_ = analyzeCmd.MarkFlagRequired("hts")
	_ = analyzeCmd.MarkFlagRequired("country")
	rootCmd.AddCommand(analyzeCmd)
}
