// Package agent implements the conversational orchestrator: it owns one
// session's transcript, assembles the prompt (system message, injected
// procedures, history), drives the LLM tool loop against the closed tool
// catalog, and returns the final reply together with a machine-readable
// trace of every tool invocation.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ecommerce-support-agent/internal/catalog"
	"ecommerce-support-agent/internal/sop"
)

const (
	// maxIterations bounds LLM round-trips per user turn. A policy ceiling
	// for latency and cost, not a correctness requirement.
	maxIterations = 5

	// llmTimeout applies to each chat-completions call individually.
	llmTimeout = 60 * time.Second
)

// ToolCall is one trace record: which tool ran, with what arguments, and
// what envelope it returned.
type ToolCall struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result"`
}

// chatCompleter is the single OpenAI endpoint the orchestrator depends on,
// satisfied by *openai.ChatCompletionService.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Orchestrator runs one session's conversation. It is not safe for
// concurrent use; callers serialize turns per session. Process-wide state is
// limited to the shared HTTP client inside the OpenAI SDK, the connection
// pool behind the tool registry, and the registry itself, which is
// immutable.
type Orchestrator struct {
	llm       chatCompleter
	model     openai.ChatModel
	registry  *catalog.Registry
	injector  *sop.Injector
	sessionID string

	transcript []openai.ChatCompletionMessageParamUnion
	tools      []openai.ChatCompletionToolParam
}

// New builds a session orchestrator. client may be nil (no API key
// configured); Chat then returns a configuration-error reply instead of
// calling out.
func New(client *openai.Client, model openai.ChatModel, registry *catalog.Registry, injector *sop.Injector, sessionID string) *Orchestrator {
	o := &Orchestrator{
		model:     model,
		registry:  registry,
		injector:  injector,
		sessionID: sessionID,
		tools:     openAITools(registry.Schemas()),
	}
	if client != nil {
		o.llm = &client.Chat.Completions
	}
	return o
}

// openAITools converts the catalog's declarations into the chat-completions
// tool-definition wire shape.
func openAITools(schemas []catalog.ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.Parameters),
			},
		})
	}
	return out
}

// Chat processes one user turn: append the message to the transcript, build
// the outgoing prompt (system message, then any injected procedures, then
// history), and loop LLM call → tool dispatch → feed results back, until the
// model answers in plain text or the iteration cap is hit.
//
// The reply string is always user-presentable, including on error; err is
// non-nil only for upstream LLM failures and for a missing OpenAI client, so
// callers can log them while still showing the reply.
func (o *Orchestrator) Chat(ctx context.Context, userMessage string) (string, []ToolCall, error) {
	if o.llm == nil {
		return "Error: OPENAI_API_KEY is not configured, so I can't process requests right now.",
			nil, errors.New("agent: openai client not configured")
	}

	o.transcript = append(o.transcript, openai.UserMessage(userMessage))

	outgoing := make([]openai.ChatCompletionMessageParamUnion, 0, len(o.transcript)+2)
	outgoing = append(outgoing, openai.SystemMessage(systemPrompt))
	if o.injector != nil {
		if sopMsg, found := o.injector.BuildSystemMessage(ctx, o.sessionID, userMessage); found {
			outgoing = append(outgoing, openai.SystemMessage(sopMsg))
		}
	}
	outgoing = append(outgoing, o.transcript...)

	var trace []ToolCall

	for iteration := 0; iteration < maxIterations; iteration++ {
		completion, err := o.complete(ctx, outgoing)
		if err != nil {
			return apologyLLMFailure, trace, fmt.Errorf("agent: chat completion failed: %w", err)
		}
		if len(completion.Choices) == 0 {
			return apologyLLMFailure, trace, errors.New("agent: completion returned no choices")
		}
		msg := completion.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			reply := msg.Content
			if reply == "" {
				reply = apologyEmptyReply
			}
			o.transcript = append(o.transcript, openai.AssistantMessage(reply))
			return reply, trace, nil
		}

		assistantMsg := msg.ToParam()
		o.transcript = append(o.transcript, assistantMsg)
		outgoing = append(outgoing, assistantMsg)

		// Tool calls run sequentially, in the order the model emitted them.
		for _, tc := range msg.ToolCalls {
			record := o.executeToolCall(ctx, tc)
			trace = append(trace, record)

			resultJSON, err := json.Marshal(record.Result)
			if err != nil {
				resultJSON = []byte(`{"success": false, "error": "internal: failed to serialize tool result"}`)
			}
			toolMsg := openai.ToolMessage(string(resultJSON), tc.ID)
			o.transcript = append(o.transcript, toolMsg)
			outgoing = append(outgoing, toolMsg)
		}
	}

	return apologyExhausted, trace, nil
}

// executeToolCall parses and dispatches one tool call. Malformed argument
// JSON is reported as a failure envelope without invoking anything; the
// registry handles unknown names and schema violations the same way, so no
// path out of here raises.
func (o *Orchestrator) executeToolCall(ctx context.Context, tc openai.ChatCompletionMessageToolCall) ToolCall {
	record := ToolCall{
		ID:   uuid.NewString(),
		Tool: tc.Function.Name,
	}

	raw := json.RawMessage(tc.Function.Arguments)
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		log.Printf("agent: tool %s called with malformed arguments: %v", tc.Function.Name, err)
		record.Result = map[string]any{
			"success": false,
			"error":   fmt.Sprintf("invalid arguments for %s: not valid JSON", tc.Function.Name),
		}
		return record
	}
	record.Arguments = args

	log.Printf("agent: tool call %s session=%s", tc.Function.Name, o.sessionID)
	record.Result = o.registry.Dispatch(ctx, tc.Function.Name, raw)
	if success, _ := record.Result["success"].(bool); !success {
		log.Printf("agent: tool %s failed: %v", tc.Function.Name, record.Result["error"])
	}
	return record
}

// complete issues one chat-completions call with the tool catalog attached
// and a per-call deadline.
func (o *Orchestrator) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*openai.ChatCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	return o.llm.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: messages,
		Tools:    o.tools,
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		},
	})
}
