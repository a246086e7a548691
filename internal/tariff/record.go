// Package tariff implements the rule-evaluation core: applicability testing
// of tariff records against shipment facts and resolution of
// penalty/exclusion relationships.
package tariff

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tariff-cli/pkg/hts"
)

// KindCommodityCode marks the primary record of a snapshot. Every other
// record kind (Section 301, IEEPA, exclusions, ...) is a non-primary tariff.
const KindCommodityCode = "COMMODITY_CODE"

// DefaultPriority is assumed when a record carries no priority.
const DefaultPriority = 99

// Transport is a shipment's mode of transport.
type Transport string

const (
	TransportAny   Transport = "ANY"
	TransportOcean Transport = "OCEAN"
	TransportAir   Transport = "AIR"
	TransportTruck Transport = "TRUCK"
	TransportRail  Transport = "RAIL"
)

// ParseTransport validates a transport mode. Used by the service boundary,
// which rejects invalid values outright.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToUpper(strings.TrimSpace(s))); t {
	case TransportAny, TransportOcean, TransportAir, TransportTruck, TransportRail:
		return t, nil
	default:
		return "", eris.Errorf("tariff: invalid mode of transport %q (must be one of ANY, OCEAN, AIR, TRUCK, RAIL)", s)
	}
}

// TransportOrAny parses a transport mode leniently, falling back to ANY on
// invalid input. Used by the interactive CLI boundary.
func TransportOrAny(s string) Transport {
	t, err := ParseTransport(s)
	if err != nil {
		return TransportAny
	}
	return t
}

// FieldKey identifies what a condition tests.
type FieldKey string

const (
	FieldModeOfTransport FieldKey = "MODE_OF_TRANSPORT"
	FieldDateOfLoading   FieldKey = "DATE_OF_LOADING"
	FieldChosenSPIs      FieldKey = "CHOSEN_SPIS"
)

// ConditionKind distinguishes the date-comparison variants of a
// DATE_OF_LOADING condition.
type ConditionKind string

const (
	KindLess    ConditionKind = "LESS"
	KindGreater ConditionKind = "GREATER"
	KindBetween ConditionKind = "BETWEEN"
)

// Condition is one applicability test attached to a record. Date bounds stay
// raw strings; they are parsed fail-closed during evaluation.
type Condition struct {
	FieldKey         FieldKey
	Kind             ConditionKind
	FieldShouldEqual string
	Threshold        string
	LowerBound       string
	UpperBound       string
}

// SpecialProgram is a preferential rate tied to a trade program on the
// primary record.
type SpecialProgram struct {
	ProgramName     string
	SPI             string
	RateDescription string
	Countries       []string
}

// Record is one tariff rule from the snapshot.
type Record struct {
	Kind               string
	Code               string
	Label              string
	Description        string
	RateDescription    string
	PenaltyRate        float64
	EffectiveFrom      string
	EffectiveTo        string
	Countries          []string
	Conditions         []Condition
	ExcludedBy         []string
	Priority           int
	RequiresUserChoice bool
	SpecialRates       []SpecialProgram
}

// Shipment is the immutable evaluation input.
type Shipment struct {
	Country     string
	Transport   Transport
	EntryDate   time.Time
	LoadingDate *time.Time
}

// FromCandidates maps API candidate codes to domain records. The penalty
// rate arrives as a string and defaults to 0 when blank or unparsable;
// missing priority defaults to 99.
func FromCandidates(codes []hts.CandidateCode) []Record {
	records := make([]Record, 0, len(codes))
	for _, c := range codes {
		r := Record{
			Kind:               c.Type,
			Code:               c.CodeVariant.Code,
			Label:              c.Label,
			Description:        c.FullDescription,
			RateDescription:    c.RateDescription,
			EffectiveFrom:      c.EffectiveFrom,
			EffectiveTo:        c.EffectiveTo,
			Priority:           DefaultPriority,
			RequiresUserChoice: c.RequiresUserChoice,
		}
		if c.Priority != nil {
			r.Priority = *c.Priority
		}
		if pr, err := strconv.ParseFloat(strings.TrimSpace(c.RateInfo.PenaltyRate), 64); err == nil {
			r.PenaltyRate = pr
		}
		for _, co := range c.CountriesOfOrigin {
			r.Countries = append(r.Countries, co.USCustomsCountryCode)
		}
		for _, rc := range c.ApplicabilityConditions {
			r.Conditions = append(r.Conditions, conditionFromRaw(rc))
		}
		for _, ref := range c.ExcludedByCodes {
			r.ExcludedBy = append(r.ExcludedBy, ref.Code)
		}
		for _, sr := range c.SpecialRates {
			sp := SpecialProgram{
				ProgramName:     sr.ImportProgram.ProgramName,
				SPI:             sr.SPI,
				RateDescription: sr.RateDescription,
			}
			for _, co := range sr.ImportProgram.CountriesOfOrigin {
				sp.Countries = append(sp.Countries, co.USCustomsCountryCode)
			}
			r.SpecialRates = append(r.SpecialRates, sp)
		}
		records = append(records, r)
	}
	return records
}

func conditionFromRaw(rc hts.RawCondition) Condition {
	c := Condition{
		FieldKey:         FieldKey(rc.FieldKey),
		FieldShouldEqual: rc.FieldShouldEqual,
		Threshold:        rc.Threshold,
		LowerBound:       rc.LowerBound,
		UpperBound:       rc.UpperBound,
	}
	switch rc.Typename {
	case "CustomsTariffLess":
		c.Kind = KindLess
	case "CustomsTariffGreater":
		c.Kind = KindGreater
	case "CustomsTariffBetween":
		c.Kind = KindBetween
	}
	return c
}

// parseDay parses an RFC 3339 timestamp or a bare YYYY-MM-DD date and
// truncates it to a UTC calendar day. All record comparisons operate at day
// granularity.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("tariff: empty date")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, eris.Wrapf(err, "tariff: parse date %q", s)
		}
	}
	return Day(t), nil
}

// Day truncates a time to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
