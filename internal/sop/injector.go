// Package sop implements the Standard Operating Procedure injector: a
// keyword heuristic that guesses which tools a user message is about to
// need, looks up a matching procedure document in the vector retriever, and
// formats it as an extra system message for the orchestrator to splice into
// the outgoing prompt.
package sop

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ecommerce-support-agent/internal/vectorstore"
)

// keywordRule pairs a set of trigger phrases with the tool names they imply.
// Order matters: DetectLikelyTools dedups by first occurrence, so rules
// earlier in this list win ties in the returned order.
type keywordRule struct {
	phrases []string
	tools   []string
}

var keywordRules = []keywordRule{
	{
		phrases: []string{"order", "place order", "buy", "purchase", "want to order"},
		tools:   []string{"draft_order", "create_order"},
	},
	{
		phrases: []string{"order status", "track", "where is my", "order #", "order number"},
		tools:   []string{"order_status"},
	},
	{
		phrases: []string{"return", "refund", "send back", "defective"},
		tools:   []string{"order_status", "initiate_return"},
	},
	{
		phrases: []string{"browse", "show me", "looking for", "available", "products", "catalog"},
		tools:   []string{"product_catalog"},
	},
	{
		phrases: []string{"shipping", "delivery", "ship to", "how much to ship"},
		tools:   []string{"estimate_shipping"},
	},
}

// DetectLikelyTools guesses which catalog tools a user message is about to
// need, purely from keyword matching — no LLM call involved. Duplicates are
// removed while preserving first-occurrence order.
func DetectLikelyTools(userMessage string) []string {
	lower := strings.ToLower(userMessage)

	var likely []string
	seen := make(map[string]bool)
	add := func(tool string) {
		if !seen[tool] {
			seen[tool] = true
			likely = append(likely, tool)
		}
	}

	for _, rule := range keywordRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				for _, tool := range rule.tools {
					add(tool)
				}
				break
			}
		}
	}
	return likely
}

// Searcher is the one vector-retriever operation the injector needs. It is
// satisfied by *vectorstore.Store.
type Searcher interface {
	SearchByText(ctx context.Context, query string, limit int, scoreThreshold *float32) ([]vectorstore.Hit, error)
}

// Injector looks up and formats SOPs for likely tools, caching hits per
// session so repeated turns in the same conversation don't re-query the
// vector store for a procedure it already has.
type Injector struct {
	store Searcher

	mu    sync.Mutex
	cache map[string]map[string]string // sessionID -> toolName -> formatted SOP
}

// New builds an Injector backed by store.
func New(store Searcher) *Injector {
	return &Injector{
		store: store,
		cache: make(map[string]map[string]string),
	}
}

// BuildSystemMessage returns the formatted "RELEVANT PROCEDURES" system
// message content for userMessage within sessionID, and whether any
// procedure was found. A cache miss that still finds nothing (no matching
// document, wrong audience/doc_type, or a retrieval error) contributes
// nothing and is not cached, so the next turn retries the lookup.
func (inj *Injector) BuildSystemMessage(ctx context.Context, sessionID, userMessage string) (string, bool) {
	likelyTools := DetectLikelyTools(userMessage)
	if len(likelyTools) == 0 {
		return "", false
	}

	inj.mu.Lock()
	sessionCache, ok := inj.cache[sessionID]
	if !ok {
		sessionCache = make(map[string]string)
		inj.cache[sessionID] = sessionCache
	}
	inj.mu.Unlock()

	var sopContents []string
	for _, toolName := range likelyTools {
		inj.mu.Lock()
		cached, hit := sessionCache[toolName]
		inj.mu.Unlock()
		if hit {
			sopContents = append(sopContents, cached)
			continue
		}

		formatted, found := inj.lookupSOP(ctx, toolName)
		if !found {
			continue
		}
		sopContents = append(sopContents, formatted)

		inj.mu.Lock()
		sessionCache[toolName] = formatted
		inj.mu.Unlock()
	}

	if len(sopContents) == 0 {
		return "", false
	}
	return "RELEVANT PROCEDURES:\n\n" + strings.Join(sopContents, "\n\n"), true
}

// lookupSOP searches the knowledge base for toolName's procedure document.
// A retrieval error, an empty result, or a document that isn't a
// agent-audience SOP are all treated as "not found" — the injector never
// surfaces vector-store failures to the orchestrator.
func (inj *Injector) lookupSOP(ctx context.Context, toolName string) (string, bool) {
	if inj.store == nil {
		return "", false
	}
	threshold := vectorstore.DefaultScoreThreshold()
	hits, err := inj.store.SearchByText(ctx, vectorstore.SOPQuery(toolName), 1, &threshold)
	if err != nil || len(hits) == 0 {
		return "", false
	}

	payload := hits[0].Payload
	if asString(payload["audience"]) != "agent" || asString(payload["doc_type"]) != "sop" {
		return "", false
	}

	title := asString(payload["title"])
	if title == "" {
		title = fmt.Sprintf("%s SOP", toolName)
	}
	content := asString(payload["content"])

	return fmt.Sprintf("=== %s ===\n%s", title, content), true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
