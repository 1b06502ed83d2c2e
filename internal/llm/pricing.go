package llm

import "strings"

// Pricing is USD per 1M tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

var modelPricing = map[string]Pricing{
	"gpt-4o":                 {InputPerM: 2.50, OutputPerM: 10.00},
	"gpt-4o-mini":            {InputPerM: 0.15, OutputPerM: 0.60},
	"gpt-4.1":                {InputPerM: 2.00, OutputPerM: 8.00},
	"gpt-4.1-mini":           {InputPerM: 0.40, OutputPerM: 1.60},
	"claude-sonnet-4-0":      {InputPerM: 3.00, OutputPerM: 15.00},
	"claude-3-5-haiku-latest": {InputPerM: 0.80, OutputPerM: 4.00},
	"text-embedding-3-small": {InputPerM: 0.02},
	"text-embedding-3-large": {InputPerM: 0.13},
}

// ResolvePricing returns the price entry for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return modelPricing[strings.TrimSpace(model)]
}

// ComputeCost converts token usage to USD.
func ComputeCost(model string, usage Usage) float64 {
	p := ResolvePricing(model)
	return p.InputPerM*float64(usage.InputTokens)/1_000_000.0 + p.OutputPerM*float64(usage.OutputTokens)/1_000_000.0
}
