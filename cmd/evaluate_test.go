package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/pkg/hts"
)

type stubClient struct {
	codes []hts.CandidateCode
	err   error
}

func (s *stubClient) CandidateCodes(_ context.Context, _ string) ([]hts.CandidateCode, error) {
	return s.codes, s.err
}

func snapshot() []hts.CandidateCode {
	return []hts.CandidateCode{
		{
			Type:            "COMMODITY_CODE",
			CodeVariant:     hts.CodeVariant{Code: "0101300000"},
			FullDescription: "Live asses",
			RateDescription: "5%",
		},
		{
			Type:              "SECTION_301",
			Label:             "Section 301",
			CodeVariant:       hts.CodeVariant{Code: "99038803"},
			RateDescription:   "25%",
			EffectiveFrom:     "2020-01-01T00:00:00Z",
			EffectiveTo:       "2099-12-31T00:00:00Z",
			RateInfo:          hts.RateInfo{PenaltyRate: "25"},
			CountriesOfOrigin: []hts.Country{{USCustomsCountryCode: "CN"}},
		},
	}
}

func TestEvaluate_EndToEnd(t *testing.T) {
	result, err := evaluate(context.Background(), &stubClient{codes: snapshot()}, shipmentInput{
		HTSCode:   "0101300000",
		Country:   "cn",
		EntryDate: "2025-06-15",
		Transport: "OCEAN",
		BaseCost:  100,
	})
	require.NoError(t, err)

	assert.Equal(t, "CN", result.Inputs.Country)
	assert.Equal(t, "30.00%", result.TotalRate.DutyRate)
	assert.Equal(t, "130", result.TotalRate.TotalCost.String())
}

// The interactive boundary defaults an invalid transport to ANY instead of
// rejecting the request.
func TestEvaluate_InvalidTransportDefaultsToAny(t *testing.T) {
	result, err := evaluate(context.Background(), &stubClient{codes: snapshot()}, shipmentInput{
		HTSCode:   "0101300000",
		Country:   "CN",
		EntryDate: "2025-06-15",
		Transport: "BARGE",
	})
	require.NoError(t, err)
	assert.Equal(t, "ANY", result.Inputs.Transport)
}

func TestEvaluate_EntryDateDefaultsToToday(t *testing.T) {
	result, err := evaluate(context.Background(), &stubClient{codes: snapshot()}, shipmentInput{
		HTSCode: "0101300000",
		Country: "CN",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format("2006-01-02"), result.Inputs.EntryDate)
}

func TestEvaluate_InputValidation(t *testing.T) {
	client := &stubClient{codes: snapshot()}

	tests := []struct {
		name string
		in   shipmentInput
	}{
		{"missing hts code", shipmentInput{Country: "CN"}},
		{"missing country", shipmentInput{HTSCode: "0101300000"}},
		{"negative base cost", shipmentInput{HTSCode: "0101300000", Country: "CN", BaseCost: -1}},
		{"bad entry date", shipmentInput{HTSCode: "0101300000", Country: "CN", EntryDate: "June 2025"}},
		{"bad loading date", shipmentInput{HTSCode: "0101300000", Country: "CN", LoadingDate: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluate(context.Background(), client, tt.in)
			assert.Error(t, err)
		})
	}
}

func TestEvaluate_NotFoundPropagates(t *testing.T) {
	_, err := evaluate(context.Background(), &stubClient{err: hts.ErrNotFound}, shipmentInput{
		HTSCode: "9999999999",
		Country: "CN",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, hts.ErrNotFound))
}
