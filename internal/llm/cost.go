package llm

import "strings"

// CostService prices a completion call by provider/model and token counts.
// Adapted from the teacher's services/cost_service.go — same per-1M-token
// table-driven shape, extended with the sentiment/salience rubric calls'
// (tiny) token counts in mind.
type CostService interface {
	CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64
}

type costService struct{}

// NewCostService returns the default table-driven cost calculator.
func NewCostService() CostService {
	return &costService{}
}

var costPerMillionTokens = map[string]struct{ input, output float64 }{
	"gpt-5":                    {input: 1.25, output: 10.00},
	"gpt-5-mini":               {input: 0.25, output: 2.00},
	"gpt-4.1":                  {input: 3.00, output: 12.00},
	"gpt-4.1-mini":             {input: 0.80, output: 3.20},
	"gpt-4o-2024-08-06":        {input: 2.50, output: 10.00},
	"claude-sonnet-4-20250514": {input: 3.00, output: 15.00},
	"claude-3-5-haiku-20241022": {input: 0.80, output: 4.00},
}

var costPerThousandWebSearches = map[string]float64{
	"openai":    35.00,
	"anthropic": 10.00,
}

func (s *costService) CalculateCost(provider, model string, inputTokens, outputTokens int, webSearch bool) float64 {
	modelCost, ok := costPerMillionTokens[model]
	if !ok {
		modelCost = costPerMillionTokens["gpt-4.1"]
	}

	total := (float64(inputTokens)/1_000_000.0)*modelCost.input +
		(float64(outputTokens)/1_000_000.0)*modelCost.output

	if webSearch {
		if searchCost, ok := costPerThousandWebSearches[providerKey(provider)]; ok {
			total += searchCost / 1000.0
		}
	}

	return total
}

func providerKey(provider string) string {
	p := strings.ToLower(provider)
	switch {
	case strings.Contains(p, "anthropic") || strings.Contains(p, "claude"):
		return "anthropic"
	default:
		return "openai"
	}
}
