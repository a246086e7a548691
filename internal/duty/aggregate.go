package duty

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sells-group/tariff-cli/internal/report"
)

// Aggregated is the combined duty outcome for one shipment.
//
// All rate contributions combine additively (no compounding). Money fields
// use decimal arithmetic on the caller-supplied base cost.
type Aggregated struct {
	BasicRate       float64         `json:"basic_rate"`
	NeutralRate     float64         `json:"neutral_exclusion_rate"`
	ActiveRate      float64         `json:"active_penalty_rate"`
	ExcludedRate    float64         `json:"excluded_penalty_rate"`
	DutyRate        string          `json:"duty_rate"`
	DutyRateValue   float64         `json:"duty_rate_value"`
	TotalDuties     decimal.Decimal `json:"total_duties"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	BasicRateSource string          `json:"basic_rate_source"`
}

// Basic-rate provenance values.
const (
	SourceSpecialProgram = "special_program"
	SourceColumn1        = "column_1"
)

// Aggregate combines a report's rate descriptions into one duty rate and
// cost. The basic rate comes from the first applicable special program when
// one exists, otherwise from the primary record's column-1 rate; only its
// first numeric token counts.
//
// Two accumulation choices are deliberate, if unusual: neutral exclusion
// tokens fold into the basic-rate accumulator, and an excluded penalty's own
// rate still feeds the duty total even though the penalty is neutralized.
// Changing either would silently change computed duty amounts.
func Aggregate(rep *report.Report, baseCost decimal.Decimal) Aggregated {
	agg := Aggregated{BasicRateSource: SourceColumn1}

	basicDesc := rep.PrimaryInfo.Column1Rate
	if len(rep.SpecialPrograms.ApplicablePrograms) > 0 {
		basicDesc = rep.SpecialPrograms.ApplicablePrograms[0].Rate
		agg.BasicRateSource = SourceSpecialProgram
	}
	agg.BasicRate = firstValue(basicDesc)

	for _, n := range rep.OtherTariffs.NeutralExclusions {
		agg.NeutralRate += sumValues(n.Rate)
	}

	for _, p := range rep.OtherTariffs.ActivePenalties {
		agg.ActiveRate += sumValues(p.Rate)
	}

	for _, ep := range rep.OtherTariffs.ExcludedPenalties {
		agg.ExcludedRate += sumValues(ep.PenaltyRate)
	}

	agg.DutyRateValue = agg.BasicRate + agg.NeutralRate + agg.ActiveRate + agg.ExcludedRate
	agg.DutyRate = fmt.Sprintf("%.2f%%", agg.DutyRateValue)

	agg.TotalDuties = baseCost.Mul(decimal.NewFromFloat(agg.DutyRateValue)).Div(decimal.NewFromInt(100))
	agg.TotalCost = agg.TotalDuties.Add(baseCost)

	return agg
}
