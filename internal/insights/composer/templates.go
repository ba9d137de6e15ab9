package composer

import (
	"fmt"

	"pulse/internal/insights/models"
)

// text is the rendered wording of one record.
type text struct {
	title, short, details string
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func money(v float64) string {
	return fmt.Sprintf("$%.1fM", v)
}

func findingText(tier models.Tier, a IndustryAggregate) text {
	growth := ""
	if g, from, to, ok := a.YoYGrowth(); ok {
		growth = fmt.Sprintf(" Adoption moved %+.1f points from %d to %d.", g*100, from, to)
	}
	switch tier {
	case models.TierLeading:
		return text{
			title: fmt.Sprintf("%s leads GenAI adoption", a.Industry),
			short: fmt.Sprintf("%s leads with %s adoption", a.Industry, pct(a.AvgAdoption)),
			details: fmt.Sprintf("%s sits in the leading tier with an average adoption rate of %s backed by %s of investment "+
				"across %d use cases.%s", a.Industry, pct(a.AvgAdoption), money(a.TotalInvestment), a.UseCases, growth),
		}
	case models.TierEmerging:
		return text{
			title: fmt.Sprintf("%s is scaling GenAI adoption", a.Industry),
			short: fmt.Sprintf("%s is emerging at %s adoption", a.Industry, pct(a.AvgAdoption)),
			details: fmt.Sprintf("%s is the strongest emerging industry, averaging %s adoption on %s of investment "+
				"across %d use cases.%s", a.Industry, pct(a.AvgAdoption), money(a.TotalInvestment), a.UseCases, growth),
		}
	default:
		return text{
			title: fmt.Sprintf("%s is exploring GenAI", a.Industry),
			short: fmt.Sprintf("%s is early-stage at %s adoption", a.Industry, pct(a.AvgAdoption)),
			details: fmt.Sprintf("%s remains early-stage with an average adoption rate of %s and %s invested "+
				"across %d use cases.%s", a.Industry, pct(a.AvgAdoption), money(a.TotalInvestment), a.UseCases, growth),
		}
	}
}

func growthText(tier models.Tier, a IndustryAggregate, growth float64, from, to int) text {
	direction := "grew"
	if growth < 0 {
		direction = "declined"
	} else if growth == 0 {
		direction = "held flat"
	}
	var outlook string
	switch tier {
	case models.TierLeading:
		outlook = "Momentum at the top of the market"
	case models.TierEmerging:
		outlook = "Momentum among emerging adopters"
	default:
		outlook = "Momentum among early-stage adopters"
	}
	return text{
		title: fmt.Sprintf("%s adoption trend %d-%d", a.Industry, from, to),
		short: fmt.Sprintf("%s adoption %s %+.1f points year over year", a.Industry, direction, growth*100),
		details: fmt.Sprintf("%s: %s adoption %s from %s in %d to %s in %d.", outlook, a.Industry, direction,
			pct(a.AdoptionByYear[from]), from, pct(a.AdoptionByYear[to]), to),
	}
}

func recommendationText(tier models.Tier, a IndustryAggregate) text {
	perUseCase := money(a.InvestmentPerUseCase())
	switch tier {
	case models.TierLeading:
		return text{
			title: fmt.Sprintf("Scale production GenAI workloads in %s", a.Industry),
			short: fmt.Sprintf("Prioritize scaling proven use cases at %s per use case", perUseCase),
			details: fmt.Sprintf("With adoption at %s, %s should shift spend from experimentation to scaling and "+
				"governing production workloads. Current spend is %s per use case.", pct(a.AvgAdoption), a.Industry, perUseCase),
		}
	case models.TierEmerging:
		return text{
			title: fmt.Sprintf("Move %s pilots into production", a.Industry),
			short: fmt.Sprintf("Consolidate pilots and target higher return than %s per use case", perUseCase),
			details: fmt.Sprintf("%s has momentum at %s adoption. Concentrating investment on the pilots with measurable "+
				"returns should lift efficiency above the current %s per use case.", a.Industry, pct(a.AvgAdoption), perUseCase),
		}
	default:
		return text{
			title: fmt.Sprintf("Fund foundational GenAI pilots in %s", a.Industry),
			short: fmt.Sprintf("Start with low-risk pilots; current spend is %s per use case", perUseCase),
			details: fmt.Sprintf("At %s adoption, %s benefits most from small, well-scoped pilots and shared cloud "+
				"foundations before larger commitments. Current spend is %s per use case.", pct(a.AvgAdoption), a.Industry, perUseCase),
		}
	}
}

// negligibleCorrelation is the |r| below which no linear relationship is claimed.
const negligibleCorrelation = 0.1

func correlationText(r models.CorrelationResult) text {
	if r.Degenerate {
		return text{
			title: "No variation observed",
			short: "No variation observed between adoption and cloud usage",
			details: fmt.Sprintf("Across %d observations at least one measure is constant, so no correlation "+
				"between GenAI adoption and cloud usage can be claimed.", r.SampleSize),
		}
	}

	significance := "p-value unavailable for this sample size"
	if r.HasPValue() {
		significance = fmt.Sprintf("p=%.3f", r.PValue)
	}

	abs := max(r.Coefficient, -r.Coefficient)
	if abs < negligibleCorrelation {
		return text{
			title: "GenAI adoption and cloud usage correlation",
			short: fmt.Sprintf("No meaningful linear relationship (r=%.3f)", r.Coefficient),
			details: fmt.Sprintf("Across %d observations adoption and cloud usage show no meaningful linear relationship "+
				"(r=%.3f, %s, d=%.3f). Cloud service usage does not track GenAI adoption across industries.",
				r.SampleSize, r.Coefficient, significance, r.EffectSize),
		}
	}

	strength := "weak"
	switch {
	case abs > 0.7:
		strength = "strong"
	case abs > 0.3:
		strength = "moderate"
	}
	direction, tendency := "positive", "higher"
	if r.Coefficient < 0 {
		direction, tendency = "negative", "lower"
	}
	return text{
		title: "GenAI adoption and cloud usage correlation",
		short: fmt.Sprintf("%s %s correlation (r=%.3f)", capitalize(strength), direction, r.Coefficient),
		details: fmt.Sprintf("Across %d observations adoption and cloud usage show a %s %s correlation (r=%.3f, %s, d=%.3f). "+
			"Industries with higher GenAI adoption tend to show %s cloud service usage.",
			r.SampleSize, strength, direction, r.Coefficient, significance, r.EffectSize, tendency),
	}
}

func insufficientText(sampleSize int) text {
	return text{
		title: "Not enough data",
		short: "Not enough data to assess correlation",
		details: fmt.Sprintf("Correlation needs at least 2 aligned observations; %d matched the current filters. "+
			"Widen the year or industry filters to see an analysis.", sampleSize),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
