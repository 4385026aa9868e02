package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ecommerce-support-agent/internal/agent"
	"ecommerce-support-agent/internal/catalog"
	"ecommerce-support-agent/internal/core"
	"ecommerce-support-agent/internal/db"
	"ecommerce-support-agent/internal/httpapi"
	"ecommerce-support-agent/internal/sop"
	"ecommerce-support-agent/internal/vectorstore"
)

const kbCollection = "knowledge_base"

func main() {
	_ = godotenv.Load()

	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	apiKey := os.Getenv("OPENAI_API_KEY")
	var openaiClient *openai.Client
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set; chat turns will return a configuration error")
	} else {
		c := openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(3),
		)
		openaiClient = &c
	}

	vs, err := vectorstore.New(os.Getenv("QDRANT_URL"), os.Getenv("QDRANT_API_KEY"), kbCollection, openaiClient)
	if err != nil {
		log.Fatalf("vector store: %v", err)
	}
	if info, err := vs.CollectionInfo(ctx); err != nil {
		log.Printf("Warning: knowledge base unreachable: %v", err)
	} else {
		log.Printf("knowledge base %q: %s, %d points", kbCollection, info.Status, info.PointsCount)
	}

	store := core.NewStore(pool)
	registry := catalog.Build(store, vs)
	injector := sop.New(vs)

	newOrchestrator := func(sessionID string) *agent.Orchestrator {
		return agent.New(openaiClient, openai.ChatModelGPT4o, registry, injector, sessionID)
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	handler := httpapi.NewHandler(newOrchestrator, pool, vs, os.Getenv("ALLOWED_ORIGINS"))

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
