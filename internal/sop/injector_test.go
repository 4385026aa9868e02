package sop

import (
	"context"
	"errors"
	"testing"

	"ecommerce-support-agent/internal/vectorstore"
)

// fakeSearcher scripts per-query results and counts how many times each
// query was issued.
type fakeSearcher struct {
	results map[string][]vectorstore.Hit
	err     error
	queries map[string]int
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: make(map[string][]vectorstore.Hit),
		queries: make(map[string]int),
	}
}

func (f *fakeSearcher) SearchByText(_ context.Context, query string, _ int, _ *float32) ([]vectorstore.Hit, error) {
	f.queries[query]++
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func agentSOPHit(title, content string) []vectorstore.Hit {
	return []vectorstore.Hit{{
		ID:    "1",
		Score: 0.91,
		Payload: map[string]any{
			"audience": "agent",
			"doc_type": "sop",
			"title":    title,
			"content":  content,
		},
	}}
}

func TestDetectLikelyToolsOrdering(t *testing.T) {
	cases := []struct {
		message string
		want    []string
	}{
		{"I want to place an order for a laptop", []string{"draft_order", "create_order"}},
		{"Where is my order #1042, I want to track it", []string{"draft_order", "create_order", "order_status"}},
		{"I want to return this, it arrived defective and I want a refund", []string{"order_status", "initiate_return"}},
		{"Can you show me what's available in the catalog", []string{"product_catalog"}},
		{"How much to ship this to Texas", []string{"estimate_shipping"}},
		{"Hello there", nil},
	}
	for _, c := range cases {
		got := DetectLikelyTools(c.message)
		if !equalStrings(got, c.want) {
			t.Errorf("DetectLikelyTools(%q) = %v, want %v", c.message, got, c.want)
		}
	}
}

func TestDetectLikelyToolsDedupesAcrossRules(t *testing.T) {
	// "order" triggers draft_order + create_order; "track" triggers
	// order_status; "return" triggers order_status + initiate_return.
	// order_status must appear exactly once, in its first-seen position.
	got := DetectLikelyTools("I want to track and then return my order")
	want := []string{"draft_order", "create_order", "order_status", "initiate_return"}
	if !equalStrings(got, want) {
		t.Errorf("DetectLikelyTools(...) = %v, want %v", got, want)
	}
}

func TestBuildSystemMessageFormatsAndJoins(t *testing.T) {
	fake := newFakeSearcher()
	fake.results[vectorstore.SOPQuery("draft_order")] = agentSOPHit("Draft Order SOP", "Collect all fields first.")
	fake.results[vectorstore.SOPQuery("create_order")] = agentSOPHit("Create Order SOP", "Only after drafting.")
	inj := New(fake)

	msg, found := inj.BuildSystemMessage(context.Background(), "s1", "I want to place an order")
	if !found {
		t.Fatal("expected SOPs to be found")
	}
	want := "RELEVANT PROCEDURES:\n\n=== Draft Order SOP ===\nCollect all fields first.\n\n=== Create Order SOP ===\nOnly after drafting."
	if msg != want {
		t.Errorf("unexpected message:\n%q\nwant:\n%q", msg, want)
	}
}

func TestBuildSystemMessageCachesPerSession(t *testing.T) {
	fake := newFakeSearcher()
	fake.results[vectorstore.SOPQuery("draft_order")] = agentSOPHit("Draft Order SOP", "x")
	fake.results[vectorstore.SOPQuery("create_order")] = agentSOPHit("Create Order SOP", "y")
	inj := New(fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, found := inj.BuildSystemMessage(ctx, "s1", "I want to order something"); !found {
			t.Fatalf("turn %d: expected SOPs", i+1)
		}
	}
	if n := fake.queries[vectorstore.SOPQuery("draft_order")]; n != 1 {
		t.Errorf("expected exactly 1 draft_order lookup across turns, got %d", n)
	}

	// A different session has its own cache and queries again.
	if _, found := inj.BuildSystemMessage(ctx, "s2", "I want to order something"); !found {
		t.Fatal("expected SOPs for second session")
	}
	if n := fake.queries[vectorstore.SOPQuery("draft_order")]; n != 2 {
		t.Errorf("expected a fresh lookup for the new session, got %d total", n)
	}
}

func TestBuildSystemMessageRejectsWrongAudienceOrDocType(t *testing.T) {
	fake := newFakeSearcher()
	fake.results[vectorstore.SOPQuery("draft_order")] = []vectorstore.Hit{{
		ID:      "1",
		Score:   0.95,
		Payload: map[string]any{"audience": "customer", "doc_type": "sop", "title": "t", "content": "c"},
	}}
	fake.results[vectorstore.SOPQuery("create_order")] = []vectorstore.Hit{{
		ID:      "2",
		Score:   0.95,
		Payload: map[string]any{"audience": "agent", "doc_type": "policy", "title": "t", "content": "c"},
	}}
	inj := New(fake)

	if msg, found := inj.BuildSystemMessage(context.Background(), "s1", "I want to order"); found {
		t.Errorf("expected no injection for wrong audience/doc_type, got %q", msg)
	}
}

func TestBuildSystemMessageSwallowsRetrievalErrors(t *testing.T) {
	fake := newFakeSearcher()
	fake.err = errors.New("vector index down")
	inj := New(fake)

	if msg, found := inj.BuildSystemMessage(context.Background(), "s1", "I want to order"); found {
		t.Errorf("expected no injection on retrieval failure, got %q", msg)
	}

	// Failures are not cached: the next turn tries again.
	fake.err = nil
	fake.results[vectorstore.SOPQuery("draft_order")] = agentSOPHit("Draft Order SOP", "x")
	if _, found := inj.BuildSystemMessage(context.Background(), "s1", "I want to order"); !found {
		t.Error("expected a retry to succeed once the index is back")
	}
}

func TestBuildSystemMessageNoLikelyToolsIsNoOp(t *testing.T) {
	inj := New(nil)
	msg, found := inj.BuildSystemMessage(context.Background(), "session-1", "hello, how are you?")
	if found || msg != "" {
		t.Errorf("expected no SOP injection for an unrelated message, got %q", msg)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
