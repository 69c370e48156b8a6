package report

import (
	"strings"

	"github.com/medforge/medforge-backend/internal/platform/envutil"
)

// TierPricing is USD per million tokens for one model tier.
type TierPricing struct {
	PromptPerMTok     float64
	CompletionPerMTok float64
}

// Pricing maps model names to their token pricing; unknown models use the
// default tier so the estimate is never silently zero.
type Pricing struct {
	Tiers       map[string]TierPricing
	DefaultTier TierPricing
}

func PricingFromEnv() Pricing {
	p := Pricing{
		Tiers: map[string]TierPricing{},
		DefaultTier: TierPricing{
			PromptPerMTok:     envutil.Float("PRICING_DEFAULT_PROMPT_PER_MTOK", 1.25),
			CompletionPerMTok: envutil.Float("PRICING_DEFAULT_COMPLETION_PER_MTOK", 10.0),
		},
	}
	evalModel := envutil.Str("SWEEP_EVAL_MODEL", "")
	if evalModel != "" {
		p.Tiers[evalModel] = TierPricing{
			PromptPerMTok:     envutil.Float("PRICING_EVAL_PROMPT_PER_MTOK", 0.25),
			CompletionPerMTok: envutil.Float("PRICING_EVAL_COMPLETION_PER_MTOK", 2.0),
		}
	}
	fixModel := envutil.Str("SWEEP_FIX_MODEL", "")
	if fixModel != "" {
		p.Tiers[fixModel] = TierPricing{
			PromptPerMTok:     envutil.Float("PRICING_FIX_PROMPT_PER_MTOK", 1.25),
			CompletionPerMTok: envutil.Float("PRICING_FIX_COMPLETION_PER_MTOK", 10.0),
		}
	}
	return p
}

func (p Pricing) tierFor(model string) TierPricing {
	if tier, ok := p.Tiers[strings.TrimSpace(model)]; ok {
		return tier
	}
	return p.DefaultTier
}

// Cost estimates USD for a token count on the given model.
func (p Pricing) Cost(model string, promptTokens, completionTokens int) float64 {
	tier := p.tierFor(model)
	return float64(promptTokens)/1e6*tier.PromptPerMTok +
		float64(completionTokens)/1e6*tier.CompletionPerMTok
}
