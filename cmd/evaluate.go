package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/tariff-cli/internal/duty"
	"github.com/sells-group/tariff-cli/internal/report"
	"github.com/sells-group/tariff-cli/internal/tariff"
	"github.com/sells-group/tariff-cli/pkg/hts"
)

// shipmentInput is one evaluation request as entered on the command line or
// read from a CSV row. Dates are YYYY-MM-DD strings.
type shipmentInput struct {
	HTSCode     string  `json:"hts_code"`
	Country     string  `json:"country"`
	EntryDate   string  `json:"entry_date"`
	LoadingDate string  `json:"loading_date,omitempty"`
	Transport   string  `json:"transport"`
	BaseCost    float64 `json:"base_cost"`
}

// evaluation is the full outcome for one shipment.
type evaluation struct {
	Inputs    shipmentInput   `json:"inputs"`
	Data      *report.Report  `json:"data"`
	TotalRate duty.Aggregated `json:"total_rate"`
}

func newHTSClient() hts.Client {
	return hts.NewClient(
		hts.WithBaseURL(cfg.HTS.BaseURL),
		hts.WithRateLimit(cfg.HTS.RateLimitPerSec),
	)
}

// evaluate runs the fetch-analyze-aggregate sequence for one shipment.
//
// This is the interactive boundary: an unknown transport mode is defaulted
// to ANY with a warning instead of rejected, and a missing entry date means
// today.
func evaluate(ctx context.Context, client hts.Client, in shipmentInput) (*evaluation, error) {
	in.HTSCode = strings.TrimSpace(in.HTSCode)
	if in.HTSCode == "" {
		return nil, eris.New("hts code is required")
	}

	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Country == "" {
		return nil, eris.New("country of origin is required")
	}

	if in.BaseCost < 0 {
		return nil, eris.New("base cost must be non-negative")
	}

	transport := tariff.TransportOrAny(in.Transport)
	if in.Transport != "" && transport == tariff.TransportAny && !strings.EqualFold(strings.TrimSpace(in.Transport), "ANY") {
		zap.L().Warn("invalid transport mode, defaulting to ANY",
			zap.String("transport", in.Transport),
		)
	}
	in.Transport = string(transport)

	if in.EntryDate == "" {
		in.EntryDate = time.Now().Format("2006-01-02")
	}
	entryDate, err := time.Parse("2006-01-02", in.EntryDate)
	if err != nil {
		return nil, eris.Errorf("invalid entry date %q, use YYYY-MM-DD", in.EntryDate)
	}

	var loadingDate *time.Time
	if in.LoadingDate != "" {
		ld, err := time.Parse("2006-01-02", in.LoadingDate)
		if err != nil {
			return nil, eris.Errorf("invalid loading date %q, use YYYY-MM-DD", in.LoadingDate)
		}
		loadingDate = &ld
	}

	codes, err := client.CandidateCodes(ctx, in.HTSCode)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch tariff data for %s", in.HTSCode)
	}

	analyzer := tariff.NewAnalyzer(zap.L())
	analysis, err := analyzer.Analyze(tariff.FromCandidates(codes), tariff.Shipment{
		Country:     in.Country,
		Transport:   transport,
		EntryDate:   entryDate,
		LoadingDate: loadingDate,
	})
	if err != nil {
		return nil, err
	}

	rep := report.Build(analysis, in.Country)
	agg := duty.Aggregate(rep, decimal.NewFromFloat(in.BaseCost))

	return &evaluation{
		Inputs:    in,
		Data:      rep,
		TotalRate: agg,
	}, nil
}
