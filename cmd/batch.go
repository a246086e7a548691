package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	batchCSV    string
	batchLimit  int
	batchOutput string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate shipments from a CSV file",
	Long: `Reads shipments from a CSV and evaluates them concurrently.

The CSV needs a header row with these columns (loading_date may be blank):
  hts_code,country,entry_date,loading_date,transport,base_cost`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(batchCSV)
		if err != nil {
			return eris.Wrap(err, "batch: open csv")
		}
		defer f.Close()

		shipments, err := parseShipmentsCSV(f)
		if err != nil {
			return eris.Wrap(err, "batch: parse csv")
		}
		zap.L().Info("parsed csv", zap.Int("shipments", len(shipments)))

		if batchLimit > 0 && len(shipments) > batchLimit {
			shipments = shipments[:batchLimit]
		}

		client := newHTSClient()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrent)

		results := make([]*evaluation, len(shipments))
		var mu sync.Mutex
		var succeeded, failed atomic.Int64

		for i, in := range shipments {
			i, in := i, in
			g.Go(func() error {
				log := zap.L().With(
					zap.Int("row", i+1),
					zap.String("hts_code", in.HTSCode),
				)

				result, err := evaluate(gctx, client, in)
				if err != nil {
					failed.Add(1)
					log.Error("evaluation failed", zap.Error(err))
					return nil // don't abort batch on individual failure
				}

				succeeded.Add(1)
				log.Info("evaluation complete", zap.String("duty_rate", result.TotalRate.DutyRate))
				mu.Lock()
				results[i] = result
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch: processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)

		// Drop failed rows; row numbers are in the logs.
		out := make([]*evaluation, 0, len(results))
		for _, r := range results {
			if r != nil {
				out = append(out, r)
			}
		}

		w := os.Stdout
		if batchOutput != "" {
			of, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "batch: create output file")
			}
			defer of.Close()
			w = of
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "CSV file of shipments (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of rows to process (0 = all)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write results to a file instead of stdout")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

// parseShipmentsCSV reads shipments from a CSV with a header row. Column
// order is free; unknown columns are ignored.
func parseShipmentsCSV(r io.Reader) ([]shipmentInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"hts_code", "country"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var shipments []shipmentInput
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read line %d", line)
		}

		in := shipmentInput{
			HTSCode:     field(row, "hts_code"),
			Country:     field(row, "country"),
			EntryDate:   field(row, "entry_date"),
			LoadingDate: field(row, "loading_date"),
			Transport:   field(row, "transport"),
		}
		if raw := field(row, "base_cost"); raw != "" {
			cost, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, eris.Errorf("line %d: invalid base_cost %q", line, raw)
			}
			in.BaseCost = cost
		}
		shipments = append(shipments, in)
	}

	return shipments, nil
}
