package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/dedup"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/directive"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/extract"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/intents"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/llm"
)

type stubChat struct {
	result     llm.Result
	err        error
	requests   []llm.Request
	visionErr  error
	visionOut  string
	visionRefs []string
}

func (s *stubChat) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func (s *stubChat) AnalyzeImage(_ context.Context, _, imageURL, _ string) (string, error) {
	s.visionRefs = append(s.visionRefs, imageURL)
	return s.visionOut, s.visionErr
}

type stubExtractor struct{ contents []extract.Content }

func (s stubExtractor) Extract(context.Context, string) []extract.Content { return s.contents }

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, ref string) string { return ref }

type stubGate struct {
	decision dedup.Decision
	marked   []string
}

func (s *stubGate) ShouldAnalyze(context.Context, string, []string, []conversation.Turn) dedup.Decision {
	return s.decision
}

func (s *stubGate) MarkAnalyzed(_ context.Context, _ string, hashes []string) {
	s.marked = append(s.marked, hashes...)
}

type stubContext struct {
	turns []conversation.Turn
	topic conversation.TopicRun
}

func (s stubContext) Context(context.Context, string) ([]conversation.Turn, conversation.TopicRun, error) {
	return s.turns, s.topic, nil
}

func testProfile(t *testing.T) Profile {
	t.Helper()
	p, err := LoadProfile("")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestOrchestrator(t *testing.T, chat *stubChat, ex ContentExtractor, gate AnalysisGate) *Orchestrator {
	t.Helper()
	if ex == nil {
		ex = stubExtractor{}
	}
	return New(
		nil,
		chat,
		Config{ChatModel: "gpt-4o", ReasoningModel: "o1-mini", VisionModel: "gpt-4o"},
		ex,
		stubResolver{},
		gate,
		stubContext{},
		intents.NewStaticGuidance("https://app.nickloop.com/dashboard"),
		testProfile(t),
	)
}

func TestRespondPlainChat(t *testing.T) {
	t.Parallel()

	chat := &stubChat{result: llm.Result{Content: "Hey! Great to hear from you."}}
	o := newTestOrchestrator(t, chat, nil, nil)

	reply := o.Respond(context.Background(), "u1", "hello!", nil)
	if reply.Fallback {
		t.Fatal("unexpected fallback")
	}
	if reply.Directive.Intent != intents.IntentChatGeneric {
		t.Fatalf("intent = %q", reply.Directive.Intent)
	}
	if directive.Strip(reply.Text) != "Hey! Great to hear from you." {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestRespondResolvesToolCall(t *testing.T) {
	t.Parallel()

	result := llm.Result{Content: "Done, reminder is set!"}
	result.ToolCalls = []llm.ToolCall{{ID: "c1", Type: "function"}}
	result.ToolCalls[0].Function.Name = "create_reminder_task"
	result.ToolCalls[0].Function.Arguments = `{"title":"Finish the mix","due_date":"Friday"}`

	chat := &stubChat{result: result}
	o := newTestOrchestrator(t, chat, nil, nil)

	reply := o.Respond(context.Background(), "u1", "remind me to finish the mix by friday", nil)
	if reply.Directive.Intent != intents.IntentTaskCreate {
		t.Fatalf("intent = %q", reply.Directive.Intent)
	}
	if reply.Directive.Entities["title"] != "Finish the mix" {
		t.Fatalf("entities = %v", reply.Directive.Entities)
	}
	if reply.Directive.DeepLink != "https://app.nickloop.com/dashboard/tasks" {
		t.Fatalf("deep link = %q", reply.Directive.DeepLink)
	}

	parsed, ok := directive.Parse(reply.Text)
	if !ok || parsed.Intent != intents.IntentTaskCreate {
		t.Fatalf("canonical block missing: %q", reply.Text)
	}
}

func TestRespondMergesModelDirective(t *testing.T) {
	t.Parallel()

	chat := &stubChat{result: llm.Result{
		Content: "Saved!\n\n[ACTION]{\"intent\":\"moodboard.add\",\"deep_link\":\"https://x.test/custom\"}[/ACTION]",
	}}
	o := newTestOrchestrator(t, chat, nil, nil)

	reply := o.Respond(context.Background(), "u1", "save this", nil)
	if reply.Directive.Intent != intents.IntentMoodboardAdd {
		t.Fatalf("intent = %q", reply.Directive.Intent)
	}
	// The model's own deep link survives; guidance only fills gaps.
	if reply.Directive.DeepLink != "https://x.test/custom" {
		t.Fatalf("deep link = %q", reply.Directive.DeepLink)
	}
}

func TestRespondFallbacks(t *testing.T) {
	t.Parallel()

	profile := testProfile(t)
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "credential", err: errors.New("llm api key is not configured"), want: profile.Fallbacks.Credential},
		{name: "model compat", err: errors.New("chat backend error (invalid_request_error): The model gpt-x does not exist"), want: profile.Fallbacks.ModelCompat},
		{name: "generic", err: errors.New("connection reset by peer"), want: profile.Fallbacks.Generic},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chat := &stubChat{err: tc.err}
			o := newTestOrchestrator(t, chat, nil, nil)
			reply := o.Respond(context.Background(), "u1", "hello", nil)
			if !reply.Fallback {
				t.Fatal("expected fallback")
			}
			if reply.Text != tc.want {
				t.Fatalf("text = %q, want %q", reply.Text, tc.want)
			}
			if !reply.Directive.IsZero() {
				t.Fatalf("fallback carries directive %+v", reply.Directive)
			}
		})
	}
}

func TestRespondAnalyticalUsesReasoningModel(t *testing.T) {
	t.Parallel()

	chat := &stubChat{result: llm.Result{Content: "Your streams look steady."}}
	o := newTestOrchestrator(t, chat, nil, nil)

	o.Respond(context.Background(), "u1", "how are my streams and engagement stats trending", nil)
	if len(chat.requests) != 1 {
		t.Fatalf("requests = %d", len(chat.requests))
	}
	req := chat.requests[0]
	if req.Model != "o1-mini" {
		t.Fatalf("model = %q", req.Model)
	}
	if len(req.Tools) != 0 {
		t.Fatal("reasoning turns must not offer tools")
	}
}

func TestRespondContentPinsGeneralModel(t *testing.T) {
	t.Parallel()

	chat := &stubChat{result: llm.Result{Content: "Nice post!"}}
	ex := stubExtractor{contents: []extract.Content{{Type: extract.TypePost, URL: "https://www.instagram.com/p/ABC/"}}}
	o := newTestOrchestrator(t, chat, ex, nil)

	o.Respond(context.Background(), "u1", "analytics for https://www.instagram.com/p/ABC/", nil)
	req := chat.requests[0]
	if req.Model != "gpt-4o" {
		t.Fatalf("model = %q", req.Model)
	}
	if len(req.Tools) == 0 {
		t.Fatal("general turns offer tools")
	}
	system := req.Messages[0].Content
	if !strings.Contains(system, "https://www.instagram.com/p/ABC/") {
		t.Fatalf("system prompt missing content: %q", system)
	}
}

func TestRespondSkipsRepeatAnalysis(t *testing.T) {
	t.Parallel()

	chat := &stubChat{result: llm.Result{Content: "Looks familiar!"}}
	gate := &stubGate{decision: dedup.Decision{Analyze: false}}
	o := newTestOrchestrator(t, chat, nil, gate)

	o.Respond(context.Background(), "u1", "what about this one", []string{"https://cdn.test/a.jpg"})
	if len(chat.visionRefs) != 0 {
		t.Fatalf("vision invoked %d times for suppressed media", len(chat.visionRefs))
	}
}

func TestRespondAnalyzesAdmittedMedia(t *testing.T) {
	t.Parallel()

	chat := &stubChat{
		result:    llm.Result{Content: "Great studio shot!"},
		visionOut: `{"description":"a recording studio","music_context":"production","actionable_advice":"treat the room"}`,
	}
	gate := &stubGate{decision: dedup.Decision{Analyze: true, NewHashes: []string{"h1"}}}
	o := newTestOrchestrator(t, chat, nil, gate)

	o.Respond(context.Background(), "u1", "check this", []string{"https://cdn.test/a.jpg"})
	if len(chat.visionRefs) != 1 {
		t.Fatalf("vision calls = %d", len(chat.visionRefs))
	}
	if len(gate.marked) != 1 || gate.marked[0] != "h1" {
		t.Fatalf("marked = %v", gate.marked)
	}
	system := chat.requests[0].Messages[0].Content
	if !strings.Contains(system, "a recording studio") {
		t.Fatalf("system prompt missing analysis: %q", system)
	}
}

func TestRespondAnalyzesDuplicateURLOnce(t *testing.T) {
	t.Parallel()

	chat := &stubChat{
		result:    llm.Result{Content: "Love it!"},
		visionOut: `{"description":"a stage"}`,
	}
	ex := stubExtractor{contents: []extract.Content{{
		Type:      extract.TypePost,
		URL:       "https://www.instagram.com/p/ABC/",
		MediaURLs: []string{"https://cdn.test/a.jpg"},
	}}}
	gate := &stubGate{decision: dedup.Decision{Analyze: true, NewHashes: []string{"h1"}}}
	o := newTestOrchestrator(t, chat, ex, gate)

	// The same image arrives as an attachment and as extracted media.
	o.Respond(context.Background(), "u1", "https://www.instagram.com/p/ABC/", []string{"https://cdn.test/a.jpg"})
	if len(chat.visionRefs) != 1 {
		t.Fatalf("vision calls = %d for one unique URL %v", len(chat.visionRefs), chat.visionRefs)
	}
}

func TestRespondTopicRunStaysOutOfPrompt(t *testing.T) {
	t.Parallel()

	chat := &stubChat{result: llm.Result{Content: "More release thoughts."}}
	o := New(
		nil,
		chat,
		Config{ChatModel: "gpt-4o", ReasoningModel: "o1-mini", VisionModel: "gpt-4o"},
		stubExtractor{},
		stubResolver{},
		nil,
		stubContext{topic: conversation.TopicRun{CurrentTopic: "strategy.recommend", SameTopicCount: 5}},
		intents.NewStaticGuidance("https://app.nickloop.com/dashboard"),
		testProfile(t),
	)

	o.Respond(context.Background(), "u1", "tell me more", nil)
	system := chat.requests[0].Messages[0].Content
	if strings.Contains(system, "stayed on") || strings.Contains(system, "strategy.recommend") {
		t.Fatalf("topic run leaked into system prompt: %q", system)
	}
}

func TestParseAnalysis(t *testing.T) {
	t.Parallel()

	a := parseAnalysis("```json\n{\"description\":\"stage\",\"actionable_advice\":\"add lighting\"}\n```")
	if a.Description != "stage" || a.ActionableAdvice != "add lighting" {
		t.Fatalf("analysis = %+v", a)
	}

	loose := parseAnalysis(`{"description": "crowd shot",}`)
	if loose.Description != "crowd shot" {
		t.Fatalf("repaired analysis = %+v", loose)
	}

	plain := parseAnalysis("just a plain sentence about a venue")
	if plain.Description != "just a plain sentence about a venue" {
		t.Fatalf("plain analysis = %+v", plain)
	}
}
