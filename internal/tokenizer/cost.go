// Package tokenizer holds the token usage and cost accounting used by live
// estimates and by finished comparisons. Everything here is pure.
package tokenizer

import "fmt"

// TokenUsage is the UI-facing token breakdown of one strategy.
// PromptTokens is BaseTokens+PromptPartTokens and excludes the wrapper tokens
// the server counts for the combined prompt.
type TokenUsage struct {
	BaseTokens       int `json:"base_tokens"`
	PromptPartTokens int `json:"prompt_part_tokens"`
	OutputTokens     int `json:"output_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewTokenUsage derives the prompt and total counts. Negative inputs count as zero.
func NewTokenUsage(base, promptPart, output int) TokenUsage {
	base, promptPart, output = nonNeg(base), nonNeg(promptPart), nonNeg(output)
	prompt := base + promptPart
	return TokenUsage{
		BaseTokens:       base,
		PromptPartTokens: promptPart,
		OutputTokens:     output,
		PromptTokens:     prompt,
		TotalTokens:      prompt + output,
	}
}

// PricingTable holds USD prices per million tokens.
type PricingTable struct {
	InputPer1M  float64 `json:"input_per_1m"`
	OutputPer1M float64 `json:"output_per_1m"`
}

// DefaultPricing is the flash-model list price.
var DefaultPricing = PricingTable{InputPer1M: 0.075, OutputPer1M: 0.30}

// EstimateCost returns tokens/1M * pricePer1M.
func EstimateCost(tokens int, pricePer1M float64) float64 {
	return float64(tokens) / 1_000_000 * pricePer1M
}

// TotalCost is the input cost of the prompt tokens plus the output cost of the output tokens.
func TotalCost(u TokenUsage, p PricingTable) float64 {
	return EstimateCost(u.PromptTokens, p.InputPer1M) + EstimateCost(u.OutputTokens, p.OutputPer1M)
}

// FormatCost renders a cost with fixed 6-decimal precision.
func FormatCost(cost float64) string {
	return fmt.Sprintf("%.6f", cost)
}

// CostBreakdown is the rendered cost of one strategy's result.
type CostBreakdown struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Total  string `json:"total"`
}

// Breakdown renders the input, output and total cost of u.
func (p PricingTable) Breakdown(u TokenUsage) CostBreakdown {
	in := EstimateCost(u.PromptTokens, p.InputPer1M)
	out := EstimateCost(u.OutputTokens, p.OutputPer1M)
	return CostBreakdown{
		Input:  FormatCost(in),
		Output: FormatCost(out),
		Total:  FormatCost(in + out),
	}
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
