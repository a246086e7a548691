package tariff

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrMissingPrimary is returned when a snapshot has no COMMODITY_CODE record.
var ErrMissingPrimary = eris.New("tariff: no primary COMMODITY_CODE record found")

// ExcludedPenalty pairs a neutralized penalty with every exclusion record
// that matched one of its excluded-by codes.
type ExcludedPenalty struct {
	Code       string
	Penalty    Record
	Exclusions []Record
}

// Analysis is the outcome of resolving one snapshot against one shipment.
type Analysis struct {
	Primary           Record
	SpecialPrograms   []SpecialProgram
	ActivePenalties   []Record
	ExcludedPenalties []ExcludedPenalty
	NeutralExclusions []Record
}

// Analyzer evaluates tariff snapshots. It holds no state between calls; the
// logger is an explicit sink for per-record diagnostics.
type Analyzer struct {
	log *zap.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger disables diagnostics.
func NewAnalyzer(log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{log: log}
}

// Analyze filters and structures all tariff information relevant to the
// shipment. It returns ErrMissingPrimary when the snapshot carries no
// commodity-code record; every other anomaly degrades to a single
// inapplicable record.
func (a *Analyzer) Analyze(records []Record, s Shipment) (*Analysis, error) {
	var primary *Record
	for i := range records {
		if records[i].Kind == KindCommodityCode {
			primary = &records[i]
			break
		}
	}
	if primary == nil {
		return nil, ErrMissingPrimary
	}

	// Special programs are selected by country membership only; they are
	// assumed valid for the whole analysis rather than time-boxed per
	// shipment.
	var programs []SpecialProgram
	for _, sp := range primary.SpecialRates {
		if containsCountry(sp.Countries, s.Country) {
			programs = append(programs, sp)
		}
	}

	var others []Record
	for _, r := range records {
		if r.Kind == KindCommodityCode {
			continue
		}
		if a.isApplicable(r, s) {
			others = append(others, r)
		}
	}

	sort.SliceStable(others, func(i, j int) bool {
		return others[i].Priority < others[j].Priority
	})

	analysis := a.resolve(others)
	analysis.Primary = *primary
	analysis.SpecialPrograms = programs

	return analysis, nil
}

// resolve partitions the applicable non-primary records into penalties and
// exclusions, then classifies every penalty as active or excluded and every
// exclusion as matched or neutral.
func (a *Analyzer) resolve(records []Record) *Analysis {
	var penalties, exclusions []Record
	for _, r := range records {
		if r.PenaltyRate > 0 {
			penalties = append(penalties, r)
		} else {
			exclusions = append(exclusions, r)
		}
	}

	// Code -> exclusion records lookup, built once per evaluation. Several
	// exclusion records may share a code; a match collects all of them.
	exclusionsByCode := make(map[string][]Record, len(exclusions))
	for _, e := range exclusions {
		exclusionsByCode[e.Code] = append(exclusionsByCode[e.Code], e)
	}

	usedCodes := make(map[string]bool)

	result := &Analysis{}
	for _, p := range penalties {
		var matched []Record
		for _, code := range p.ExcludedBy {
			group, ok := exclusionsByCode[code]
			if !ok {
				continue
			}
			matched = append(matched, group...)
			usedCodes[code] = true
		}
		if len(matched) > 0 {
			result.ExcludedPenalties = append(result.ExcludedPenalties, ExcludedPenalty{
				Code:       p.Code,
				Penalty:    p,
				Exclusions: matched,
			})
		} else {
			result.ActivePenalties = append(result.ActivePenalties, p)
		}
	}

	for _, e := range exclusions {
		if !usedCodes[e.Code] {
			result.NeutralExclusions = append(result.NeutralExclusions, e)
		}
	}

	return result
}
