// Package httpapi exposes the orchestrator over a minimal JSON API: one chat
// endpoint plus a health check. Presentation belongs to the front-end; this
// layer only creates sessions, serializes turns per session, and relays the
// reply and tool trace.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecommerce-support-agent/internal/agent"
	"ecommerce-support-agent/internal/vectorstore"
)

// sessionTTL is how long an idle session's transcript and SOP cache are kept
// before eviction.
const sessionTTL = 30 * time.Minute

// turnTimeout is the overall per-turn deadline; an in-progress tool is
// cancelled through the request context when it expires.
const turnTimeout = 2 * time.Minute

// session pairs one orchestrator with a lock that serializes its turns and
// a last-used stamp for TTL eviction.
type session struct {
	mu       sync.Mutex
	orc      *agent.Orchestrator
	lastUsed time.Time
}

// sessionStore is a thread-safe in-memory session registry with TTL expiry.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

// getOrCreate returns the session for id, minting a fresh id and
// orchestrator when id is empty or unknown/expired.
func (s *sessionStore) getOrCreate(id string, newOrchestrator func(sessionID string) *agent.Orchestrator) (string, *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok && time.Since(sess.lastUsed) <= sessionTTL {
			sess.lastUsed = time.Now()
			return id, sess
		}
	}

	id = uuid.NewString()
	sess := &session{orc: newOrchestrator(id), lastUsed: time.Now()}
	s.sessions[id] = sess
	return id, sess
}

// startPurge evicts expired sessions every five minutes until ctx ends.
func (s *sessionStore) startPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				for id, sess := range s.sessions {
					if time.Since(sess.lastUsed) > sessionTTL {
						delete(s.sessions, id)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Handler holds the session store and the shared backends the health check
// inspects.
type Handler struct {
	sessions        *sessionStore
	newOrchestrator func(sessionID string) *agent.Orchestrator
	pool            *pgxpool.Pool
	vs              *vectorstore.Store
	router          chi.Router
}

// NewHandler wires the chi router. newOrchestrator is called once per fresh
// session so each conversation gets its own transcript and SOP cache.
func NewHandler(newOrchestrator func(sessionID string) *agent.Orchestrator, pool *pgxpool.Pool, vs *vectorstore.Store, allowedOrigins string) http.Handler {
	h := &Handler{
		sessions:        newSessionStore(),
		newOrchestrator: newOrchestrator,
		pool:            pool,
		vs:              vs,
	}
	h.sessions.startPurge(context.Background())

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)
	r.Post("/api/chat", h.chat)

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string           `json:"session_id"`
	Reply     string           `json:"reply"`
	ToolCalls []agent.ToolCall `json:"tool_calls"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, "message is required", http.StatusBadRequest)
		return
	}

	id, sess := h.sessions.getOrCreate(req.SessionID, h.newOrchestrator)

	// Turns within a session are strictly serialized.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	reply, trace, err := sess.orc.Chat(ctx, req.Message)
	if err != nil {
		log.Printf("chat turn failed session=%s: %v", id, err)
	}
	if trace == nil {
		trace = []agent.ToolCall{}
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: id, Reply: reply, ToolCalls: trace})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "ok"
	if h.pool == nil {
		dbStatus = "unconfigured"
	} else if err := h.pool.Ping(ctx); err != nil {
		dbStatus = "error"
	}

	kbStatus := "unconfigured"
	var points uint64
	if h.vs != nil {
		info, err := h.vs.CollectionInfo(ctx)
		kbStatus = info.Status
		points = info.PointsCount
		if err != nil {
			kbStatus = "error"
		}
	}

	status := http.StatusOK
	if dbStatus == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"database":        dbStatus,
		"knowledge_base":  kbStatus,
		"kb_points_count": points,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]any{"error": msg})
}
