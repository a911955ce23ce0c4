package workflow

import (
	"fmt"
	"strings"

	"github.com/ahrav/bizcase/internal/domain"
)

// Analysis phases, executed strictly in this order. Later phases consume
// earlier phases' outputs, so there is no fan-out within a run.
const (
	PhaseEnrichment      = "enrichment"
	PhaseROICalculation  = "roi_calculation"
	PhaseRecommendation  = "recommendation"
	PhaseMarketContext   = "market_context_analysis"
	PhaseFinalSynthesis  = "final_synthesis"
	PhaseDataStructuring = "data_structuring"
)

// phaseSpec describes one phase: its prompt construction, its deterministic
// fallback, and whether the research cache applies.
type phaseSpec struct {
	name     string
	message  string
	percent  int
	cached   bool
	local    bool
	prompt   func(input domain.BusinessInput, prior map[string]domain.PhaseResult) string
	fallback func(input domain.BusinessInput, prior map[string]domain.PhaseResult) domain.PhaseResult
}

// phases returns the ordered phase table. A fresh slice per run keeps the
// table immutable from the orchestrator's perspective.
func phases() []phaseSpec {
	return []phaseSpec{
		{
			name:     PhaseEnrichment,
			message:  "researching company profile",
			percent:  10,
			cached:   true,
			prompt:   enrichmentPrompt,
			fallback: enrichmentFallback,
		},
		{
			name:     PhaseROICalculation,
			message:  "computing return on investment",
			percent:  30,
			local:    true,
			fallback: roiFallback,
		},
		{
			name:     PhaseRecommendation,
			message:  "drafting recommendation",
			percent:  50,
			prompt:   recommendationPrompt,
			fallback: recommendationFallback,
		},
		{
			name:     PhaseMarketContext,
			message:  "analyzing market context",
			percent:  65,
			cached:   true,
			prompt:   marketContextPrompt,
			fallback: marketContextFallback,
		},
		{
			name:     PhaseFinalSynthesis,
			message:  "synthesizing business case",
			percent:  80,
			prompt:   synthesisPrompt,
			fallback: synthesisFallback,
		},
		{
			name:     PhaseDataStructuring,
			message:  "structuring report data",
			percent:  95,
			prompt:   structuringPrompt,
			fallback: structuringFallback,
		},
	}
}

func enrichmentPrompt(input domain.BusinessInput, _ map[string]domain.PhaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the company %q operating in the %s industry", input.Company, input.Industry)
	if input.Segment != "" {
		fmt.Fprintf(&b, " (segment: %s)", input.Segment)
	}
	b.WriteString(".\n")
	if input.Description != "" {
		fmt.Fprintf(&b, "Context provided by the user: %s\n", input.Description)
	}
	b.WriteString("Return a JSON object with keys company, industry, segment, profile, " +
		"key_challenges (array of strings), and growth_drivers (array of strings).")
	return b.String()
}

func enrichmentFallback(input domain.BusinessInput, _ map[string]domain.PhaseResult) domain.PhaseResult {
	profile := fmt.Sprintf("%s operates in the %s industry", input.Company, input.Industry)
	if input.Segment != "" {
		profile += fmt.Sprintf(", serving the %s segment", input.Segment)
	}
	profile += "."
	return domain.PhaseResult{
		Phase:   PhaseEnrichment,
		Content: profile,
		Data: map[string]any{
			"company":  input.Company,
			"industry": input.Industry,
			"segment":  input.Segment,
			"profile":  profile,
		},
		Fallback: true,
	}
}

func roiFallback(input domain.BusinessInput, _ map[string]domain.PhaseResult) domain.PhaseResult {
	data := map[string]any{
		"annual_revenue":   input.AnnualRevenue,
		"head_count":       input.HeadCount,
		"investment_cents": input.InvestmentCents,
		"estimated":        true,
	}
	return domain.PhaseResult{
		Phase:    PhaseROICalculation,
		Content:  "Return-on-investment figures could not be computed; user-supplied inputs are carried forward unadjusted.",
		Data:     data,
		Fallback: true,
	}
}

func recommendationPrompt(input domain.BusinessInput, prior map[string]domain.PhaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following company profile, recommend whether %s should proceed with the proposed investment.\n\n", input.Company)
	if enrichment, ok := prior[PhaseEnrichment]; ok && enrichment.Content != "" {
		fmt.Fprintf(&b, "Profile: %s\n\n", enrichment.Content)
	}
	if roi, ok := prior[PhaseROICalculation]; ok && len(roi.Data) > 0 {
		fmt.Fprintf(&b, "ROI figures: %v\n\n", roi.Data)
	}
	b.WriteString("Return a JSON object with keys recommendation (proceed|defer|decline), rationale, and risks (array of strings).")
	return b.String()
}

func recommendationFallback(input domain.BusinessInput, _ map[string]domain.PhaseResult) domain.PhaseResult {
	rationale := fmt.Sprintf(
		"A recommendation for %s requires further analysis; the figures provided did not support an automated assessment.",
		input.Company)
	return domain.PhaseResult{
		Phase:   PhaseRecommendation,
		Content: rationale,
		Data: map[string]any{
			"recommendation": "defer",
			"rationale":      rationale,
		},
		Fallback: true,
	}
}

func marketContextPrompt(input domain.BusinessInput, _ map[string]domain.PhaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the current market context for the %s industry", input.Industry)
	if input.Segment != "" {
		fmt.Fprintf(&b, ", %s segment", input.Segment)
	}
	b.WriteString(".\nReturn a JSON object with keys market_size, trends (array of strings), and competitive_pressure (low|medium|high).")
	return b.String()
}

func marketContextFallback(input domain.BusinessInput, _ map[string]domain.PhaseResult) domain.PhaseResult {
	content := fmt.Sprintf("Market context for the %s industry is unavailable; conclusions rely on company-specific data only.", input.Industry)
	return domain.PhaseResult{
		Phase:   PhaseMarketContext,
		Content: content,
		Data: map[string]any{
			"industry": input.Industry,
			"segment":  input.Segment,
		},
		Fallback: true,
	}
}

func synthesisPrompt(input domain.BusinessInput, prior map[string]domain.PhaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive summary of the business case for %s.\n\n", input.Company)
	for _, name := range []string{PhaseEnrichment, PhaseROICalculation, PhaseRecommendation, PhaseMarketContext} {
		if pr, ok := prior[name]; ok && pr.Content != "" {
			fmt.Fprintf(&b, "%s: %s\n\n", name, pr.Content)
		}
	}
	b.WriteString("Respond with two to four paragraphs of prose. Do not invent figures beyond those given.")
	return b.String()
}

func synthesisFallback(input domain.BusinessInput, prior map[string]domain.PhaseResult) domain.PhaseResult {
	parts := []string{fmt.Sprintf("Business case summary for %s.", input.Company)}
	for _, name := range []string{PhaseEnrichment, PhaseRecommendation, PhaseMarketContext} {
		if pr, ok := prior[name]; ok && pr.Content != "" {
			parts = append(parts, pr.Content)
		}
	}
	return domain.PhaseResult{
		Phase:    PhaseFinalSynthesis,
		Content:  strings.Join(parts, " "),
		Fallback: true,
	}
}

func structuringPrompt(input domain.BusinessInput, prior map[string]domain.PhaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assemble the final report data for %s as a single JSON object with keys "+
		"company, industry, profile, roi, recommendation, market_context, and summary.\n\n", input.Company)
	for _, name := range []string{
		PhaseEnrichment,
		PhaseROICalculation,
		PhaseRecommendation,
		PhaseMarketContext,
		PhaseFinalSynthesis,
	} {
		if pr, ok := prior[name]; ok && pr.Content != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, pr.Content)
		}
	}
	b.WriteString("\nReturn only the JSON object.")
	return b.String()
}

func structuringFallback(input domain.BusinessInput, prior map[string]domain.PhaseResult) domain.PhaseResult {
	data := map[string]any{
		"company":  input.Company,
		"industry": input.Industry,
		"segment":  input.Segment,
	}
	if pr, ok := prior[PhaseEnrichment]; ok {
		data["profile"] = pr.Content
	}
	if pr, ok := prior[PhaseROICalculation]; ok {
		data["roi"] = pr.Data
	}
	if pr, ok := prior[PhaseRecommendation]; ok {
		data["recommendation"] = pr.Data
	}
	if pr, ok := prior[PhaseMarketContext]; ok {
		data["market_context"] = pr.Data
	}
	if pr, ok := prior[PhaseFinalSynthesis]; ok {
		data["summary"] = pr.Content
	}
	return domain.PhaseResult{
		Phase:    PhaseDataStructuring,
		Data:     data,
		Fallback: true,
	}
}
