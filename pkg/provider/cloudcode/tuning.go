package cloudcode

import (
	"strings"

	"github.com/modelgate/modelgate/pkg/provider/gemini"
	"github.com/modelgate/modelgate/pkg/unified"
)

// Thinking budgets for the coarse effort tiers. Unknown tiers fall back
// to the high budget.
const (
	budgetLow    = 8192
	budgetMedium = 16384
	budgetHigh   = 32768
)

// minThinkingOutputTokens is the floor applied to maxOutputTokens for
// thinking variants of third-party chat models. Those models count the
// reasoning stream against the output limit, so a small limit starves
// the visible answer.
const minThinkingOutputTokens = 64000

// splitTier strips a -low/-medium/-high effort suffix from a model name.
func splitTier(model string) (base, tier string) {
	for _, t := range []string{"low", "medium", "high"} {
		if strings.HasSuffix(model, "-"+t) {
			return strings.TrimSuffix(model, "-"+t), t
		}
	}
	return model, ""
}

func tierBudget(tier string) int {
	switch tier {
	case "low":
		return budgetLow
	case "medium":
		return budgetMedium
	default:
		return budgetHigh
	}
}

// applyModelDefaults resolves the tier-suffixed model name into the
// upstream model and fills in the thinking budget it implies. The
// request is copied, never mutated. An explicit numeric budget always
// wins over the tier.
func applyModelDefaults(req *unified.Request, model string) (*unified.Request, string) {
	base, tier := splitTier(model)

	thinking := req.Thinking
	switch {
	case tier != "":
		tc := unified.ThinkingConfig{Enabled: true, IncludeThoughts: true}
		if thinking != nil {
			tc = *thinking
			tc.Enabled = true
		}
		if tc.Budget == nil {
			b := tierBudget(tier)
			tc.Budget = &b
		}
		thinking = &tc

	case thinking != nil && thinking.Enabled && thinking.Budget == nil && thinking.Level != "":
		tc := *thinking
		b := tierBudget(string(thinking.Level))
		tc.Budget = &b
		thinking = &tc
	}

	if thinking == req.Thinking {
		return req, base
	}
	tuned := *req
	tuned.Thinking = thinking
	return &tuned, base
}

// tuneGenerationConfig enforces the output-token floors the upstream
// models need once a thinking budget is in play.
func tuneGenerationConfig(body *gemini.Request, upstreamModel, requestedModel string) {
	gc := body.GenerationConfig

	if gc != nil && gc.ThinkingConfig != nil && gc.ThinkingConfig.ThinkingBudget != nil {
		budget := *gc.ThinkingConfig.ThinkingBudget
		if gc.MaxOutputTokens != nil && *gc.MaxOutputTokens <= budget {
			raised := budget + 2048
			gc.MaxOutputTokens = &raised
		}
	}

	if !isThirdPartyThinking(upstreamModel, requestedModel) {
		return
	}
	if gc == nil {
		gc = &gemini.GenerationConfig{}
		body.GenerationConfig = gc
	}
	if gc.MaxOutputTokens == nil || *gc.MaxOutputTokens < minThinkingOutputTokens {
		floor := minThinkingOutputTokens
		gc.MaxOutputTokens = &floor
	}
}

// isThirdPartyThinking reports whether the request targets a thinking
// variant of a non-native chat model, either via an effort suffix or a
// "thinking" marker in the name.
func isThirdPartyThinking(upstreamModel, requestedModel string) bool {
	if strings.HasPrefix(upstreamModel, "gemini") {
		return false
	}
	return upstreamModel != requestedModel || strings.Contains(upstreamModel, "thinking")
}
