package tariff

import (
	"time"

	"go.uber.org/zap"
)

// isApplicable decides whether a record is in force for the shipment. All
// sub-checks must pass; the first failure short-circuits. Malformed or
// missing dates fail closed with a diagnostic rather than aborting the
// evaluation.
func (a *Analyzer) isApplicable(r Record, s Shipment) bool {
	from, err := parseDay(r.EffectiveFrom)
	if err != nil {
		a.log.Warn("record has unusable effectiveFrom, treating as inapplicable",
			zap.String("code", r.Code),
			zap.String("effective_from", r.EffectiveFrom),
			zap.Error(err),
		)
		return false
	}
	to, err := parseDay(r.EffectiveTo)
	if err != nil {
		a.log.Warn("record has unusable effectiveTo, treating as inapplicable",
			zap.String("code", r.Code),
			zap.String("effective_to", r.EffectiveTo),
			zap.Error(err),
		)
		return false
	}

	entry := Day(s.EntryDate)
	if entry.Before(from) || entry.After(to) {
		return false
	}

	if len(r.Countries) > 0 && !containsCountry(r.Countries, s.Country) {
		return false
	}

	for _, c := range r.Conditions {
		if !a.checkCondition(r.Code, c, s) {
			return false
		}
	}

	return true
}

func containsCountry(countries []string, country string) bool {
	for _, c := range countries {
		if c == country {
			return true
		}
	}
	return false
}

// checkCondition evaluates a single applicability condition.
//
// CHOSEN_SPIS always passes: the caller wants to see every potentially
// eligible special program, not have them pre-filtered by an assumed program
// choice. Unrecognized field keys also pass.
func (a *Analyzer) checkCondition(code string, c Condition, s Shipment) bool {
	switch c.FieldKey {
	case FieldModeOfTransport:
		if s.Transport == TransportAny {
			return true
		}
		return c.FieldShouldEqual == string(s.Transport)

	case FieldDateOfLoading:
		return a.checkLoadingDate(code, c, s.LoadingDate)

	default:
		return true
	}
}

func (a *Analyzer) checkLoadingDate(code string, c Condition, loadingDate *time.Time) bool {
	if loadingDate == nil {
		// The rule requires a loading date and the shipment has none.
		return false
	}
	ld := Day(*loadingDate)

	switch c.Kind {
	case KindLess:
		threshold, err := parseDay(c.Threshold)
		if err != nil {
			a.logBadCondition(code, c, err)
			return false
		}
		return ld.Before(threshold)

	case KindGreater:
		threshold, err := parseDay(c.Threshold)
		if err != nil {
			a.logBadCondition(code, c, err)
			return false
		}
		return ld.After(threshold)

	case KindBetween:
		lower, err := parseDay(c.LowerBound)
		if err != nil {
			a.logBadCondition(code, c, err)
			return false
		}
		upper, err := parseDay(c.UpperBound)
		if err != nil {
			a.logBadCondition(code, c, err)
			return false
		}
		// Lower bound inclusive, upper bound exclusive.
		return !ld.Before(lower) && ld.Before(upper)

	default:
		return true
	}
}

func (a *Analyzer) logBadCondition(code string, c Condition, err error) {
	a.log.Warn("could not parse date condition, treating record as inapplicable",
		zap.String("code", code),
		zap.String("field_key", string(c.FieldKey)),
		zap.String("kind", string(c.Kind)),
		zap.Error(err),
	)
}
