// Package duty aggregates free-text rate descriptions into a single duty
// rate and cost figure.
package duty

import (
	"regexp"
	"strconv"
	"strings"
)

// numericToken matches an integer or decimal optionally followed by a
// percent sign, e.g. "10%", "0.52", "25".
var numericToken = regexp.MustCompile(`\d+\.?\d*%?`)

// ExtractValues returns every numeric token in a rate description, in
// left-to-right order. "10% + $0.52/kg" yields ["10%", "0.52"].
func ExtractValues(s string) []string {
	return numericToken.FindAllString(s, -1)
}

// tokenValue parses a token into a percentage value, stripping any trailing
// percent sign. Unparsable tokens report ok=false and are skipped by callers.
func tokenValue(tok string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sumValues adds up every parsable token extracted from a rate description.
func sumValues(desc string) float64 {
	var total float64
	for _, tok := range ExtractValues(desc) {
		if v, ok := tokenValue(tok); ok {
			total += v
		}
	}
	return total
}

// firstValue extracts the first numeric token of a rate description. A
// description of "free" (any letter case) contributes 0, as does a
// description with no numeric tokens.
func firstValue(desc string) float64 {
	if strings.EqualFold(strings.TrimSpace(desc), "free") {
		return 0
	}
	tokens := ExtractValues(desc)
	if len(tokens) == 0 {
		return 0
	}
	v, ok := tokenValue(tokens[0])
	if !ok {
		return 0
	}
	return v
}
