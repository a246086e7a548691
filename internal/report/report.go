// Package report converts a tariff analysis into the presentation structure
// returned to CLI and HTTP callers.
package report

import (
	"github.com/sells-group/tariff-cli/internal/tariff"
)

// Column 2 rates are not part of the candidate-codes feed; the constant
// values below come from USITC data.
const (
	column2Rate = "15% (Rate applies to Cuba & North Korea)"
	column2Note = "Column 2 rate is not in the candidate-codes feed, it was retrieved from USITC data."
)

const (
	noProgramsMessage     = "No special trade programs (e.g., GSP, FTAs) found for this country."
	noOtherTariffsMessage = "No other tariffs (e.g., Section 301, IEEPA) found matching your criteria."
)

// Report is the presentation-ready analysis.
type Report struct {
	PrimaryInfo     PrimaryInfo     `json:"primary_info"`
	SpecialPrograms SpecialPrograms `json:"special_programs"`
	OtherTariffs    OtherTariffs    `json:"other_tariffs"`
}

// PrimaryInfo holds the main HTS code details.
type PrimaryInfo struct {
	HTSCode     string `json:"hts_code"`
	Description string `json:"description"`
	Column1Rate string `json:"column_1_rate"`
	Column2Rate string `json:"column_2_rate"`
	Column2Note string `json:"column_2_note"`
}

// SpecialPrograms lists preferential programs applicable to the country.
type SpecialPrograms struct {
	Country            string    `json:"country"`
	Message            string    `json:"message,omitempty"`
	ApplicablePrograms []Program `json:"applicable_programs"`
}

// Program is one applicable special trade program.
type Program struct {
	ProgramName string `json:"program_name"`
	SPI         string `json:"spi"`
	Rate        string `json:"rate"`
}

// OtherTariffs groups the non-primary tariff outcomes.
type OtherTariffs struct {
	ActivePenalties   []PenaltyLine     `json:"active_penalties"`
	ExcludedPenalties []ExcludedPenalty `json:"excluded_penalties"`
	NeutralExclusions []ExclusionLine   `json:"neutral_exclusions"`
	Message           string            `json:"message,omitempty"`
}

// PenaltyLine is one active penalty entry.
type PenaltyLine struct {
	Label string `json:"label"`
	Code  string `json:"code"`
	Rate  string `json:"rate"`
}

// ExclusionLine is one exclusion entry.
type ExclusionLine struct {
	Label          string `json:"label"`
	Code           string `json:"code"`
	Rate           string `json:"rate"`
	RequiresChoice bool   `json:"requires_choice"`
}

// ExcludedPenalty is a penalty neutralized by at least one exclusion.
type ExcludedPenalty struct {
	PenaltyLabel        string          `json:"penalty_label"`
	PenaltyCode         string          `json:"penalty_code"`
	PenaltyRate         string          `json:"penalty_rate"`
	PotentialExclusions []ExclusionLine `json:"potential_exclusions"`
}

// Build shapes an analysis into a Report. Slices are always non-nil so the
// JSON encoding emits [] rather than null.
func Build(analysis *tariff.Analysis, country string) *Report {
	return &Report{
		PrimaryInfo:     buildPrimaryInfo(analysis.Primary),
		SpecialPrograms: buildSpecialPrograms(analysis.SpecialPrograms, country),
		OtherTariffs:    buildOtherTariffs(analysis),
	}
}

func buildPrimaryInfo(primary tariff.Record) PrimaryInfo {
	return PrimaryInfo{
		HTSCode:     primary.Code,
		Description: primary.Description,
		Column1Rate: primary.RateDescription,
		Column2Rate: column2Rate,
		Column2Note: column2Note,
	}
}

func buildSpecialPrograms(programs []tariff.SpecialProgram, country string) SpecialPrograms {
	sp := SpecialPrograms{
		Country:            country,
		ApplicablePrograms: make([]Program, 0, len(programs)),
	}
	if len(programs) == 0 {
		sp.Message = noProgramsMessage
		return sp
	}
	for _, p := range programs {
		sp.ApplicablePrograms = append(sp.ApplicablePrograms, Program{
			ProgramName: p.ProgramName,
			SPI:         p.SPI,
			Rate:        p.RateDescription,
		})
	}
	return sp
}

func buildOtherTariffs(analysis *tariff.Analysis) OtherTariffs {
	ot := OtherTariffs{
		ActivePenalties:   make([]PenaltyLine, 0, len(analysis.ActivePenalties)),
		ExcludedPenalties: make([]ExcludedPenalty, 0, len(analysis.ExcludedPenalties)),
		NeutralExclusions: make([]ExclusionLine, 0, len(analysis.NeutralExclusions)),
	}

	if len(analysis.ActivePenalties) == 0 &&
		len(analysis.ExcludedPenalties) == 0 &&
		len(analysis.NeutralExclusions) == 0 {
		ot.Message = noOtherTariffsMessage
		return ot
	}

	for _, p := range analysis.ActivePenalties {
		ot.ActivePenalties = append(ot.ActivePenalties, PenaltyLine{
			Label: p.Label,
			Code:  p.Code,
			Rate:  p.RateDescription,
		})
	}

	for _, ep := range analysis.ExcludedPenalties {
		entry := ExcludedPenalty{
			PenaltyLabel:        ep.Penalty.Label,
			PenaltyCode:         ep.Code,
			PenaltyRate:         ep.Penalty.RateDescription,
			PotentialExclusions: make([]ExclusionLine, 0, len(ep.Exclusions)),
		}
		for _, e := range ep.Exclusions {
			entry.PotentialExclusions = append(entry.PotentialExclusions, exclusionLine(e))
		}
		ot.ExcludedPenalties = append(ot.ExcludedPenalties, entry)
	}

	for _, e := range analysis.NeutralExclusions {
		ot.NeutralExclusions = append(ot.NeutralExclusions, exclusionLine(e))
	}

	return ot
}

func exclusionLine(r tariff.Record) ExclusionLine {
	return ExclusionLine{
		Label:          r.Label,
		Code:           r.Code,
		Rate:           r.RateDescription,
		RequiresChoice: r.RequiresUserChoice,
	}
}
