package tariff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func primaryRecord() Record {
	return Record{
		Kind:            KindCommodityCode,
		Code:            "0101300000",
		Description:     "Live asses",
		RateDescription: "6.8%",
		SpecialRates: []SpecialProgram{
			{ProgramName: "GSP", SPI: "A", RateDescription: "Free", Countries: []string{"BR", "TH"}},
			{ProgramName: "USMCA", SPI: "S", RateDescription: "Free", Countries: []string{"MX", "CA"}},
		},
	}
}

func penalty(code string, rate float64, excludedBy ...string) Record {
	return Record{
		Kind:            "SECTION_301",
		Code:            code,
		Label:           "Section 301",
		RateDescription: "25%",
		PenaltyRate:     rate,
		EffectiveFrom:   "2020-01-01",
		EffectiveTo:     "2030-12-31",
		ExcludedBy:      excludedBy,
		Priority:        DefaultPriority,
	}
}

func exclusion(code string) Record {
	return Record{
		Kind:            "SECTION_301_EXCLUSION",
		Code:            code,
		Label:           "Exclusion",
		RateDescription: "Free",
		EffectiveFrom:   "2020-01-01",
		EffectiveTo:     "2030-12-31",
		Priority:        DefaultPriority,
	}
}

func TestAnalyze_MissingPrimary(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	_, err := a.Analyze([]Record{penalty("99038803", 25)}, baseShipment())
	assert.ErrorIs(t, err, ErrMissingPrimary)

	_, err = a.Analyze(nil, baseShipment())
	assert.ErrorIs(t, err, ErrMissingPrimary)
}

func TestAnalyze_SpecialProgramsByCountryOnly(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	s := baseShipment()
	s.Country = "MX"
	analysis, err := a.Analyze([]Record{primaryRecord()}, s)
	require.NoError(t, err)
	require.Len(t, analysis.SpecialPrograms, 1)
	assert.Equal(t, "USMCA", analysis.SpecialPrograms[0].ProgramName)

	s.Country = "CN"
	analysis, err = a.Analyze([]Record{primaryRecord()}, s)
	require.NoError(t, err)
	assert.Empty(t, analysis.SpecialPrograms)
}

func TestAnalyze_ActivePenaltyWithoutExclusion(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	analysis, err := a.Analyze([]Record{
		primaryRecord(),
		penalty("99038803", 25, "99038804"),
	}, baseShipment())
	require.NoError(t, err)

	require.Len(t, analysis.ActivePenalties, 1)
	assert.Equal(t, "99038803", analysis.ActivePenalties[0].Code)
	assert.Empty(t, analysis.ExcludedPenalties)
	assert.Empty(t, analysis.NeutralExclusions)
}

// A penalty whose excludedByCodes matches an exclusion record in the
// snapshot lands only under excluded penalties, never under active ones.
func TestAnalyze_PenaltyNeutralizedByExclusion(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	analysis, err := a.Analyze([]Record{
		primaryRecord(),
		penalty("99038803", 25, "99038804"),
		exclusion("99038804"),
	}, baseShipment())
	require.NoError(t, err)

	assert.Empty(t, analysis.ActivePenalties)
	require.Len(t, analysis.ExcludedPenalties, 1)
	assert.Equal(t, "99038803", analysis.ExcludedPenalties[0].Code)
	require.Len(t, analysis.ExcludedPenalties[0].Exclusions, 1)
	assert.Equal(t, "99038804", analysis.ExcludedPenalties[0].Exclusions[0].Code)
	assert.Empty(t, analysis.NeutralExclusions)
}

// Every exclusion record sharing the referenced code is collected, not
// merely the first match.
func TestAnalyze_AllExclusionsSharingCodeCollected(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	ex1 := exclusion("99038804")
	ex1.Label = "Exclusion batch 1"
	ex2 := exclusion("99038804")
	ex2.Label = "Exclusion batch 2"

	analysis, err := a.Analyze([]Record{
		primaryRecord(),
		penalty("99038803", 25, "99038804"),
		ex1,
		ex2,
	}, baseShipment())
	require.NoError(t, err)

	require.Len(t, analysis.ExcludedPenalties, 1)
	assert.Len(t, analysis.ExcludedPenalties[0].Exclusions, 2)
}

// An exclusion whose code no penalty references stays informational.
func TestAnalyze_NeutralExclusion(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	analysis, err := a.Analyze([]Record{
		primaryRecord(),
		penalty("99038803", 25, "99038899"),
		exclusion("99038804"),
	}, baseShipment())
	require.NoError(t, err)

	require.Len(t, analysis.ActivePenalties, 1)
	require.Len(t, analysis.NeutralExclusions, 1)
	assert.Equal(t, "99038804", analysis.NeutralExclusions[0].Code)
}

// The union of active penalties, excluded penalties, and matched + neutral
// exclusions partitions the applicable record set with no overlap.
func TestAnalyze_PartitionInvariant(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	records := []Record{
		primaryRecord(),
		penalty("P1", 25, "E1"),
		penalty("P2", 7.5),
		penalty("P3", 10, "E9"), // dangling reference
		exclusion("E1"),
		exclusion("E2"),
	}

	analysis, err := a.Analyze(records, baseShipment())
	require.NoError(t, err)

	seen := map[string]int{}
	for _, p := range analysis.ActivePenalties {
		seen[p.Code]++
	}
	for _, ep := range analysis.ExcludedPenalties {
		seen[ep.Code]++
		for _, e := range ep.Exclusions {
			seen[e.Code]++
		}
	}
	for _, e := range analysis.NeutralExclusions {
		seen[e.Code]++
	}

	assert.Equal(t, map[string]int{"P1": 1, "P2": 1, "P3": 1, "E1": 1, "E2": 1}, seen)
}

func TestAnalyze_SortsByPriorityStable(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	p1 := penalty("P1", 25)
	p1.Priority = 50
	p2 := penalty("P2", 10) // no explicit priority: 99
	p3 := penalty("P3", 5)
	p3.Priority = 1
	p4 := penalty("P4", 10) // ties with P2 keep original order

	analysis, err := a.Analyze([]Record{primaryRecord(), p1, p2, p3, p4}, baseShipment())
	require.NoError(t, err)

	var order []string
	for _, p := range analysis.ActivePenalties {
		order = append(order, p.Code)
	}
	assert.Equal(t, []string{"P3", "P1", "P2", "P4"}, order)
}

func TestAnalyze_InapplicableRecordsDropOut(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer(nil)

	expired := penalty("P1", 25)
	expired.EffectiveTo = "2021-01-01"

	wrongCountry := penalty("P2", 25)
	wrongCountry.Countries = []string{"RU"}

	analysis, err := a.Analyze([]Record{primaryRecord(), expired, wrongCountry}, baseShipment())
	require.NoError(t, err)
	assert.Empty(t, analysis.ActivePenalties)
	assert.Empty(t, analysis.ExcludedPenalties)
	assert.Empty(t, analysis.NeutralExclusions)
}

func TestParseTransport(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"ANY", "ocean", " Air ", "TRUCK", "rail"} {
		got, err := ParseTransport(valid)
		assert.NoError(t, err, valid)
		assert.NotEmpty(t, got)
	}

	_, err := ParseTransport("BARGE")
	assert.Error(t, err)

	assert.Equal(t, TransportAny, TransportOrAny("BARGE"))
	assert.Equal(t, TransportOcean, TransportOrAny("ocean"))
}
