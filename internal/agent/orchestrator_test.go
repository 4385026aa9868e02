package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ecommerce-support-agent/internal/catalog"
	"ecommerce-support-agent/internal/core"
	"ecommerce-support-agent/internal/sop"
	"ecommerce-support-agent/internal/vectorstore"
)

// fakeCompleter replays a scripted sequence of completions and records every
// request it receives.
type fakeCompleter struct {
	responses []*openai.ChatCompletion
	requests  []openai.ChatCompletionNewParams
}

func (f *fakeCompleter) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.requests = append(f.requests, body)
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func textCompletion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
	}
}

func toolCallCompletion(callID, name, arguments string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: "assistant",
				ToolCalls: []openai.ChatCompletionMessageToolCall{
					{
						ID: callID,
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      name,
							Arguments: arguments,
						},
					},
				},
			}},
		},
	}
}

// newTestOrchestrator wires a registry whose only reachable backend is a
// disconnected vector store, so knowledge-base tools fail cleanly and no
// database is needed.
func newTestOrchestrator(t *testing.T, llm chatCompleter) *Orchestrator {
	t.Helper()
	vs, err := vectorstore.New("", "", "knowledge_base", nil)
	if err != nil {
		t.Fatalf("vectorstore.New: %v", err)
	}
	registry := catalog.Build(core.NewStore(nil), vs)
	return &Orchestrator{
		llm:       llm,
		model:     openai.ChatModelGPT4o,
		registry:  registry,
		injector:  sop.New(nil),
		sessionID: "test-session",
		tools:     openAITools(registry.Schemas()),
	}
}

func TestChatPlainReply(t *testing.T) {
	fake := &fakeCompleter{responses: []*openai.ChatCompletion{textCompletion("Hello! How can I help?")}}
	o := newTestOrchestrator(t, fake)

	reply, trace, err := o.Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply != "Hello! How can I help?" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if len(trace) != 0 {
		t.Errorf("expected empty trace, got %d entries", len(trace))
	}
	if len(fake.requests) != 1 {
		t.Errorf("expected 1 LLM call, got %d", len(fake.requests))
	}
	if len(fake.requests[0].Tools) != 9 {
		t.Errorf("expected the 9 catalog tools on the request, got %d", len(fake.requests[0].Tools))
	}
}

func TestChatToolLoopFeedsResultsBack(t *testing.T) {
	fake := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion("call_1", "search_knowledge_base", `{"query": "return policy"}`),
		textCompletion("Here is what I found."),
	}}
	o := newTestOrchestrator(t, fake)

	reply, trace, err := o.Chat(context.Background(), "What is your return policy?")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply != "Here is what I found." {
		t.Errorf("unexpected reply: %q", reply)
	}
	if len(trace) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(trace))
	}
	if trace[0].Tool != "search_knowledge_base" {
		t.Errorf("unexpected tool in trace: %q", trace[0].Tool)
	}
	if success, _ := trace[0].Result["success"].(bool); success {
		t.Error("expected failure envelope from the disconnected vector store")
	}
	if trace[0].Arguments["query"] != "return policy" {
		t.Errorf("arguments not captured in trace: %v", trace[0].Arguments)
	}

	// The second request must carry the assistant tool-call message and the
	// tool result on top of the first request's messages.
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", len(fake.requests))
	}
	if len(fake.requests[1].Messages) != len(fake.requests[0].Messages)+2 {
		t.Errorf("expected tool exchange appended to outgoing messages: first=%d second=%d",
			len(fake.requests[0].Messages), len(fake.requests[1].Messages))
	}
}

func TestChatUnknownToolGetsFailureEnvelope(t *testing.T) {
	fake := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion("call_1", "teleport_package", `{}`),
		textCompletion("Sorry, I can't do that."),
	}}
	o := newTestOrchestrator(t, fake)

	_, trace, err := o.Chat(context.Background(), "teleport my package")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if len(trace) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(trace))
	}
	errMsg, _ := trace[0].Result["error"].(string)
	if !strings.Contains(errMsg, "unknown tool") {
		t.Errorf("expected unknown-tool failure, got %v", trace[0].Result)
	}
}

func TestChatMalformedArgumentsAreNotDispatched(t *testing.T) {
	fake := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion("call_1", "search_knowledge_base", `{"query":`),
		textCompletion("Let me try that differently."),
	}}
	o := newTestOrchestrator(t, fake)

	_, trace, err := o.Chat(context.Background(), "What is your return policy?")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if len(trace) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(trace))
	}
	if trace[0].Arguments != nil {
		t.Errorf("malformed arguments must not be recorded as parsed: %v", trace[0].Arguments)
	}
	errMsg, _ := trace[0].Result["error"].(string)
	if !strings.Contains(errMsg, "not valid JSON") {
		t.Errorf("expected invalid-JSON failure, got %v", trace[0].Result)
	}
}

func TestChatIterationCap(t *testing.T) {
	fake := &fakeCompleter{responses: []*openai.ChatCompletion{
		toolCallCompletion("call_x", "search_knowledge_base", `{"query": "loop"}`),
	}}
	o := newTestOrchestrator(t, fake)

	reply, trace, err := o.Chat(context.Background(), "keep searching forever")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply != apologyExhausted {
		t.Errorf("expected the exhausted apology, got %q", reply)
	}
	if len(fake.requests) != maxIterations {
		t.Errorf("expected %d LLM calls, got %d", maxIterations, len(fake.requests))
	}
	if len(trace) != maxIterations {
		t.Errorf("expected %d trace entries, got %d", maxIterations, len(trace))
	}
}

func TestChatWithoutClientIsAnErrorStub(t *testing.T) {
	vs, _ := vectorstore.New("", "", "knowledge_base", nil)
	registry := catalog.Build(core.NewStore(nil), vs)
	o := New(nil, openai.ChatModelGPT4o, registry, sop.New(nil), "s1")

	reply, trace, err := o.Chat(context.Background(), "hello")
	if err == nil {
		t.Error("expected configuration error")
	}
	if !strings.Contains(reply, "OPENAI_API_KEY") {
		t.Errorf("expected configuration message, got %q", reply)
	}
	if len(trace) != 0 {
		t.Errorf("expected no trace, got %d entries", len(trace))
	}
}

func TestTranscriptAccumulatesAcrossTurns(t *testing.T) {
	fake := &fakeCompleter{responses: []*openai.ChatCompletion{
		textCompletion("First answer."),
		textCompletion("Second answer."),
	}}
	o := newTestOrchestrator(t, fake)

	if _, _, err := o.Chat(context.Background(), "first question"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, _, err := o.Chat(context.Background(), "second question"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	// Turn 2's outgoing prompt: system + user1 + assistant1 + user2.
	if got := len(fake.requests[1].Messages); got != 4 {
		t.Errorf("expected 4 outgoing messages on turn 2, got %d", got)
	}
}
