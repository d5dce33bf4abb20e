package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const visionPrompt = `Analyze this image from a musician's perspective.
Respond with JSON only:
{"description":"what the image shows","music_context":"how it relates to a music career","actionable_advice":"one concrete next step for the artist"}`

const analysisPlaceholder = "a shared image (analysis unavailable)"

// MediaAnalysis is the structured result of looking at one image.
type MediaAnalysis struct {
	Description      string `json:"description"`
	MusicContext     string `json:"music_context"`
	ActionableAdvice string `json:"actionable_advice"`
}

// Summary renders the analysis for inclusion in the chat prompt, capped so a
// verbose vision reply cannot crowd out the conversation.
func (a MediaAnalysis) Summary() string {
	desc := a.Description
	if desc == "" {
		desc = analysisPlaceholder
	}
	if len(desc) > 400 {
		desc = desc[:400] + "..."
	}
	if a.ActionableAdvice != "" {
		return fmt.Sprintf("%s Tip: %s", desc, a.ActionableAdvice)
	}
	return desc
}

// analyzeMedia runs the vision model over one resolved image reference.
// Failures degrade to a placeholder so the conversation keeps moving.
func (o *Orchestrator) analyzeMedia(ctx context.Context, imageRef string) MediaAnalysis {
	raw, err := o.llm.AnalyzeImage(ctx, o.visionModel, imageRef, visionPrompt)
	if err != nil {
		o.logger.Warn("image analysis failed", slog.String("error", err.Error()))
		return MediaAnalysis{Description: analysisPlaceholder}
	}
	return parseAnalysis(raw)
}

// parseAnalysis decodes the vision reply, tolerating fenced or slightly
// malformed JSON. Unstructured replies become the description verbatim.
func parseAnalysis(raw string) MediaAnalysis {
	payload := strings.TrimSpace(raw)
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(payload, "```")
	payload = strings.TrimSpace(payload)

	var out MediaAnalysis
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &out) != nil {
			return MediaAnalysis{Description: payload}
		}
	}
	if out.Description == "" && out.MusicContext == "" && out.ActionableAdvice == "" {
		return MediaAnalysis{Description: payload}
	}
	return out
}
