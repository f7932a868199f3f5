package core

import (
	"context"
	"log/slog"
	"strings"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/observability"
	"gwi.com/assistant-console/internal/store"
)

const (
	NumDisplayedSources = 3   // Sources shown under a direct answer
	ConfidenceThreshold = 0.7 // Answers below this are flagged as low confidence
)

// RAGRemote is the direct-query endpoint of the retrieval pipeline.
type RAGRemote interface {
	QueryRAG(ctx context.Context, q api.RAGQuery) (*store.RAGResponse, error)
}

// RAGService asks the retrieval pipeline directly, outside the chat thread.
// Nothing it does is added to the thread.
type RAGService struct {
	remote   RAGRemote
	sessions *SessionList
	log      *slog.Logger
}

func NewRAGService(remote RAGRemote, sessions *SessionList) *RAGService {
	return &RAGService{
		remote:   remote,
		sessions: sessions,
		log:      observability.WithFields("component", "rag"),
	}
}

// Ask sends query, scoped to the current session when inSession is set and
// a session is selected. The answer's sources are deduplicated and capped.
func (s *RAGService) Ask(ctx context.Context, query string, inSession bool) (*store.RAGResponse, error) {
	q := api.RAGQuery{Query: strings.TrimSpace(query)}
	if inSession && s.sessions != nil {
		q.ChatSessionID = s.sessions.Current()
	}
	resp, err := s.remote.QueryRAG(ctx, q)
	if err != nil {
		if !api.IsValidation(err) {
			s.log.Error("Error querying RAG system", "error", err)
		}
		return nil, err
	}
	resp.Metadata.Sources = RelevantSources(resp.Metadata.Sources, NumDisplayedSources)
	s.log.Debug("RAG answer received", "confidence", resp.Metadata.Confidence, "sources", len(resp.Metadata.Sources))
	return resp, nil
}

// LowConfidence reports whether an answer should carry a warning.
func LowConfidence(confidence float64) bool {
	return confidence < ConfidenceThreshold
}

// RelevantSources drops repeated page/section pairs, keeping the first of
// each, and returns at most limit sources in the order given.
func RelevantSources(sources []store.Source, limit int) []store.Source {
	if limit <= 0 {
		return nil
	}
	type key struct{ page, section string }
	seen := make(map[key]bool, len(sources))
	out := make([]store.Source, 0, min(len(sources), limit))
	for _, src := range sources {
		if len(out) == limit {
			break
		}
		k := key{src.PageNumber, strings.TrimSpace(src.Section)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, src)
	}
	return out
}
