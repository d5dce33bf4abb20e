// Package orchestrator turns an inbound message into a reply: it gathers
// conversation context, extracted content, and image analysis, runs the chat
// model with function calling, and resolves the routing directive.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/dedup"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/directive"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/extract"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/intents"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/llm"
)

// maxImagesPerTurn bounds vision cost for attachment-heavy messages.
const maxImagesPerTurn = 3

// ChatClient is the slice of the LLM client the orchestrator needs.
type ChatClient interface {
	Chat(ctx context.Context, req llm.Request) (llm.Result, error)
	AnalyzeImage(ctx context.Context, model, imageURL, prompt string) (string, error)
}

// ContentExtractor finds and enriches shared links in message text.
type ContentExtractor interface {
	Extract(ctx context.Context, text string) []extract.Content
}

// MediaResolver turns media references into something a vision model can
// fetch. An empty result means the reference could not be resolved.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) string
}

// AnalysisGate decides whether images warrant a fresh vision pass.
type AnalysisGate interface {
	ShouldAnalyze(ctx context.Context, userID string, imageURLs []string, history []conversation.Turn) dedup.Decision
	MarkAnalyzed(ctx context.Context, userID string, hashes []string)
}

// ContextBuilder loads recent conversation turns for a user.
type ContextBuilder interface {
	Context(ctx context.Context, userID string) ([]conversation.Turn, conversation.TopicRun, error)
}

// Config selects the models the orchestrator drives.
type Config struct {
	ChatModel      string
	ReasoningModel string
	VisionModel    string
}

// Reply is the orchestrator's answer for one inbound message.
type Reply struct {
	// Text carries the full reply including the canonical [ACTION] block;
	// the delivery layer strips it before sending.
	Text      string
	Directive directive.Directive
	Model     string
	// Fallback is set when the reply is canned copy after an upstream error.
	Fallback bool
}

// Orchestrator coordinates one conversational turn end to end.
type Orchestrator struct {
	logger      *slog.Logger
	llm         ChatClient
	extractor   ContentExtractor
	resolver    MediaResolver
	gate        AnalysisGate
	context     ContextBuilder
	guidance    intents.GuidanceProvider
	profile     Profile
	chatModel   string
	reasonModel string
	visionModel string
}

// New wires the orchestrator. All collaborators are required except gate and
// resolver, which may be nil when media handling is disabled.
func New(
	log *slog.Logger,
	client ChatClient,
	cfg Config,
	extractor ContentExtractor,
	resolver MediaResolver,
	gate AnalysisGate,
	builder ContextBuilder,
	guidance intents.GuidanceProvider,
	profile Profile,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		logger:      log.With(slog.String("service", "orchestrator")),
		llm:         client,
		extractor:   extractor,
		resolver:    resolver,
		gate:        gate,
		context:     builder,
		guidance:    guidance,
		profile:     profile,
		chatModel:   cfg.ChatModel,
		reasonModel: cfg.ReasoningModel,
		visionModel: cfg.VisionModel,
	}
}

// Respond produces the reply for one inbound message. It never returns an
// error: upstream failures degrade to fallback copy so the user always hears
// back.
func (o *Orchestrator) Respond(ctx context.Context, userID, text string, attachments []string) Reply {
	history, _, err := o.context.Context(ctx, userID)
	if err != nil {
		o.logger.Warn("context load failed, replying without history",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}

	contents := o.extractor.Extract(ctx, text)
	imageRefs := o.collectImages(ctx, contents, attachments)
	analyses := o.runVision(ctx, userID, imageRefs, history)

	system := o.buildSystemPrompt(contents, analyses)
	messages := buildMessages(system, history, text)

	sel := llm.SelectModel(o.chatModel, o.reasonModel, text, false, len(contents) > 0 || len(imageRefs) > 0)
	req := llm.Request{
		Model:       sel.Model,
		Messages:    messages,
		MaxTokens:   600,
		Temperature: 0.7,
	}
	// Reasoning models skip function calling; routing still works through
	// the [ACTION] block in the reply text.
	if sel.Model == o.chatModel {
		req.Tools = chatTools()
	}

	result, err := o.llm.Chat(ctx, req)
	if err != nil {
		o.logger.Error("chat completion failed",
			slog.String("user_id", userID),
			slog.String("model", sel.Model),
			slog.String("error", err.Error()))
		return Reply{Text: o.fallbackFor(err), Model: sel.Model, Fallback: true}
	}

	return o.assemble(ctx, result, sel.Model)
}

// assemble merges the tool-call directive with any [ACTION] block the model
// wrote, fills in guidance, and renders the canonical reply text.
func (o *Orchestrator) assemble(ctx context.Context, result llm.Result, model string) Reply {
	var toolDir directive.Directive
	if len(result.ToolCalls) > 0 {
		call := result.ToolCalls[0]
		toolDir.Intent = intents.IntentForFunction(call.Function.Name)
		toolDir.Entities = call.ParsedArguments()
	}

	parsed, _ := directive.Parse(result.Content)
	merged := directive.Merge(toolDir, parsed)
	if merged.Intent == "" {
		merged.Intent = intents.IntentChatGeneric
	}

	var guided intents.Guidance
	if merged.DeepLink == "" {
		g, err := o.guidance.ProcessIntent(ctx, merged.Intent, merged.Entities)
		if err != nil {
			o.logger.Warn("intent guidance failed",
				slog.String("intent", merged.Intent),
				slog.String("error", err.Error()))
		} else {
			guided = g
			merged.DeepLink = g.DeepLink
		}
	}

	body := directive.Strip(result.Content)
	if body == "" {
		if guided.GuidanceMessage != "" {
			body = guided.GuidanceMessage
		} else {
			body = "Got it, I've set that up for you on your dashboard."
		}
	}
	return Reply{
		Text:      directive.Append(body, merged),
		Directive: merged,
		Model:     model,
	}
}

// collectImages merges attachment refs with image URLs from extracted
// content and resolves each through the media proxy. Videos are skipped,
// and a URL appearing both as an attachment and as extracted media is
// resolved once.
func (o *Orchestrator) collectImages(ctx context.Context, contents []extract.Content, attachments []string) []string {
	if o.resolver == nil {
		return nil
	}
	var refs []string
	refs = append(refs, attachments...)
	for _, c := range contents {
		if c.IsVideo {
			continue
		}
		refs = append(refs, c.MediaURLs...)
	}

	seen := make(map[string]bool, len(refs))
	resolved := make([]string, 0, len(refs))
	for _, ref := range refs {
		if len(resolved) >= maxImagesPerTurn {
			break
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		r := o.resolver.Resolve(ctx, ref)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		resolved = append(resolved, r)
	}
	return resolved
}

// runVision analyzes images the dedup gate admits, then records their
// hashes so repeats of the same media skip analysis.
func (o *Orchestrator) runVision(ctx context.Context, userID string, imageRefs []string, history []conversation.Turn) []MediaAnalysis {
	if len(imageRefs) == 0 || o.gate == nil {
		return nil
	}
	decision := o.gate.ShouldAnalyze(ctx, userID, imageRefs, history)
	if !decision.Analyze {
		o.logger.Debug("skipping repeat media analysis", slog.String("user_id", userID))
		return nil
	}

	analyses := make([]MediaAnalysis, 0, len(imageRefs))
	for _, ref := range imageRefs {
		analyses = append(analyses, o.analyzeMedia(ctx, ref))
	}
	o.gate.MarkAnalyzed(ctx, userID, decision.NewHashes)
	return analyses
}

func (o *Orchestrator) buildSystemPrompt(contents []extract.Content, analyses []MediaAnalysis) string {
	var b strings.Builder
	b.WriteString(o.profile.SystemPrompt)

	for _, c := range contents {
		b.WriteString("\n\nThe user shared ")
		b.WriteString(string(c.Type))
		b.WriteString(" content: ")
		b.WriteString(c.URL)
		if c.Title != "" {
			b.WriteString("\nTitle: ")
			b.WriteString(c.Title)
		}
		if c.Description != "" {
			b.WriteString("\nDescription: ")
			b.WriteString(c.Description)
		}
		if c.Err != "" {
			b.WriteString("\nNote: ")
			b.WriteString(c.Err)
		}
	}
	for _, a := range analyses {
		b.WriteString("\n\nImage analysis: ")
		b.WriteString(a.Summary())
		if a.MusicContext != "" {
			b.WriteString("\nMusic context: ")
			b.WriteString(a.MusicContext)
		}
	}
	return b.String()
}

func buildMessages(system string, history []conversation.Turn, userText string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range history {
		switch {
		case turn.IsUser():
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.UserText})
		case turn.IsAssistant():
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: directive.Strip(turn.AssistantText)})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userText})
	return messages
}

// fallbackFor picks canned copy matching the failure class so the user gets
// a hint about whether retrying can help.
func (o *Orchestrator) fallbackFor(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "401") ||
		strings.Contains(msg, "credential"):
		return o.profile.Fallbacks.Credential
	case strings.Contains(msg, "model"):
		return o.profile.Fallbacks.ModelCompat
	default:
		return o.profile.Fallbacks.Generic
	}
}
