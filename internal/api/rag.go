package api

import (
	"context"
	"net/http"
	"strings"

	"gwi.com/assistant-console/internal/store"
)

type RAGQuery struct {
	Query         string `json:"query"`
	ChatSessionID string `json:"chatSessionId,omitempty"`
}

// QueryRAG asks the retrieval pipeline directly, outside any chat flow.
func (c *Client) QueryRAG(ctx context.Context, q RAGQuery) (*store.RAGResponse, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, &ValidationError{Field: "query", Message: "Query cannot be empty"}
	}
	body, err := jsonBody(q)
	if err != nil {
		return nil, err
	}
	var w wireRAGResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/rag-query", body: body, op: "Failed to query RAG system"}, &w); err != nil {
		return nil, err
	}
	return &store.RAGResponse{
		Response: w.Response,
		Metadata: store.RAGMetadata{
			OriginalQuery: w.Metadata.OriginalQuery,
			RefinedQuery:  w.Metadata.RefinedQuery,
			Confidence:    w.Metadata.Confidence,
			ResponseType:  w.Metadata.ResponseType,
			Sources:       toSources(w.Metadata.Sources),
		},
	}, nil
}
