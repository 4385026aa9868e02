// Package vectorstore embeds text queries with a fixed embedding model and
// issues cosine-similarity search against a Qdrant collection of
// knowledge-base chunks, returning scored payloads or typed failures the
// orchestrator and SOP injector treat as non-fatal.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	qdrant "github.com/qdrant/go-client/qdrant"
)

// embeddingModel and embeddingDim are fixed for the collection; the loader
// that populates it uses the same pairing, so query vectors always match the
// collection width.
const (
	embeddingModel = openai.EmbeddingModelTextEmbedding3Small
	embeddingDim   = 1536
)

// defaultScoreThreshold is the relevance floor callers opt into. When a
// caller passes nil, no threshold is applied here — thresholding is a caller
// decision. SOP lookups, which need a confident single hit, use this default
// explicitly.
const defaultScoreThreshold = float32(0.7)

// Hit is one scored result of SearchByText: a chunk id, its cosine score,
// and its opaque payload map (title, content, audience, doc_type, category,
// product_id, tags, url — whatever the bootstrap loader wrote).
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo is the health-check summary of the knowledge collection.
type CollectionInfo struct {
	Status      string
	Name        string
	PointsCount uint64
}

// Store is the vector retriever. It is read-only and reentrant — safe to
// share across sessions. A nil client (unconfigured
// QDRANT_URL/QDRANT_API_KEY) is a valid state: SearchByText returns
// KindNotConnected and CollectionInfo reports status "disconnected" with no
// error, instead of panicking.
type Store struct {
	client         *qdrant.Client
	embedder       *openai.Client
	collectionName string
}

// New connects to Qdrant at qdrantURL with apiKey and wires embedder (the
// same OpenAI client the agent orchestrator uses for chat completions) for
// query-text embedding. If qdrantURL or apiKey is empty, it returns a
// disconnected Store rather than an error (searches report KindNotConnected),
// so the orchestrator keeps running without KB search.
func New(qdrantURL, apiKey, collectionName string, embedder *openai.Client) (*Store, error) {
	if qdrantURL == "" || apiKey == "" {
		return &Store{collectionName: collectionName, embedder: embedder}, nil
	}

	host, port, useTLS, err := parseQdrantURL(qdrantURL)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to connect to qdrant: %w", err)
	}

	return &Store{client: client, embedder: embedder, collectionName: collectionName}, nil
}

func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid QDRANT_URL %q: %w", raw, err)
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port in QDRANT_URL %q: %w", raw, err)
		}
	} else if useTLS {
		port = 6334
	} else {
		port = 6334
	}
	return host, port, useTLS, nil
}

// embed turns query text into a dense vector via the OpenAI embeddings
// endpoint. Returns KindNotConnected when no embedding client is configured
// and KindEmbeddingFailed on any other failure.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, newErr(KindNotConnected, "embedding client not configured", nil)
	}
	resp, err := s.embedder.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          embeddingModel,
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Dimensions:     openai.Int(embeddingDim),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, newErr(KindEmbeddingFailed, "failed to embed query text", err)
	}
	if len(resp.Data) == 0 {
		return nil, newErr(KindEmbeddingFailed, "embedding response contained no vectors", nil)
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

// SearchByText embeds query, runs a cosine-similarity search against the
// knowledge collection, and drops results below scoreThreshold when it is
// non-nil. Callers pass limit explicitly.
func (s *Store) SearchByText(ctx context.Context, query string, limit int, scoreThreshold *float32) ([]Hit, error) {
	if s.client == nil {
		return nil, newErr(KindNotConnected, "vector store not connected", nil)
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if scoreThreshold != nil {
		req.ScoreThreshold = scoreThreshold
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, newErr(KindSearchFailed, "qdrant query failed", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			ID:      pointIDString(p.GetId()),
			Score:   p.GetScore(),
			Payload: payloadToMap(p.GetPayload()),
		})
	}
	return hits, nil
}

// CollectionInfo reports connection status and point count, the health
// check behind the readiness surface.
func (s *Store) CollectionInfo(ctx context.Context) (CollectionInfo, error) {
	if s.client == nil {
		return CollectionInfo{Status: "disconnected"}, nil
	}
	info, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		return CollectionInfo{Status: "error"}, newErr(KindSearchFailed, "failed to fetch collection info", err)
	}
	var count uint64
	if info.GetPointsCount() != 0 {
		count = info.GetPointsCount()
	}
	return CollectionInfo{Status: "connected", Name: s.collectionName, PointsCount: count}, nil
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// payloadToMap flattens Qdrant's protobuf Value payload map into plain Go
// values suitable for JSON serialization in tool-result envelopes.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetIntegerValue() != 0:
		return v.GetIntegerValue()
	case v.GetDoubleValue() != 0:
		return v.GetDoubleValue()
	case v.GetBoolValue():
		return true
	case v.GetListValue() != nil:
		list := v.GetListValue().GetValues()
		out := make([]any, len(list))
		for i, lv := range list {
			out[i] = valueToAny(lv)
		}
		return out
	case v.GetStructValue() != nil:
		return payloadToMap(v.GetStructValue().GetFields())
	default:
		return nil
	}
}

// SOPQuery builds the SOP lookup key used by internal/sop, exported here so
// the format lives next to the store that executes it.
func SOPQuery(toolName string) string {
	return "agent-sop-" + strings.TrimSpace(toolName)
}

// DefaultScoreThreshold exposes defaultScoreThreshold for callers
// (internal/sop) that need the shared relevance floor.
func DefaultScoreThreshold() float32 { return defaultScoreThreshold }
