package analysis

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"

	"stackpilot/internal/embedding"
	apperrors "stackpilot/internal/errors"
)

const reportsCollection = "analysis-reports"

// Store persists analysis reports. Every successful analyze call writes one
// markdown file under the analysis directory, written once and never mutated.
// When a chromem database is provided, reports are additionally indexed for
// semantic recall.
type Store struct {
	dir   string
	db    *chromem.DB
	embed chromem.EmbeddingFunc
}

// NewStore creates a report store rooted at dir. db may be nil, in which case
// only markdown persistence is performed.
func NewStore(dir string, db *chromem.DB) *Store {
	return &Store{
		dir:   dir,
		db:    db,
		embed: embedding.CreateChromemEmbeddingFunc(),
	}
}

// Save writes the report to a timestamped markdown file and returns its path
func (s *Store) Save(projectName string, report *Report) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperrors.NewIOError("failed to create analysis directory", err)
	}

	timestamp := report.GeneratedAt.Format("20060102_150405")
	filename := fmt.Sprintf("%s_analysis_%s.md", projectName, timestamp)
	path := filepath.Join(s.dir, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "# Pulumi Copilot Analysis for %s\n\n", projectName)
	fmt.Fprintf(&b, "Generated on: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(report.Categories, ", "))
	b.WriteString("## Analysis\n\n")
	b.WriteString(report.Content)
	b.WriteString("\n")

	// O_EXCL enforces write-once: a report file is never overwritten.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperrors.NewIOError("failed to write analysis report", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return "", apperrors.NewIOError("failed to write analysis report", err)
	}
	if err := f.Close(); err != nil {
		return "", apperrors.NewIOError("failed to write analysis report", err)
	}

	if s.db != nil {
		if err := s.index(projectName, report); err != nil {
			// Indexing is best-effort; the markdown file is the source of truth.
			log.Printf("⚠️  Failed to index analysis report for %s: %v", projectName, err)
		}
	}

	return path, nil
}

// index stores the report in the vector database for later recall
func (s *Store) index(projectName string, report *Report) error {
	collection, err := s.db.GetOrCreateCollection(reportsCollection,
		map[string]string{"type": "analysis-report"}, s.embed)
	if err != nil {
		return fmt.Errorf("failed to get or create collection: %w", err)
	}

	ctx := context.Background()
	docID := fmt.Sprintf("report_%s_%d", projectName, report.GeneratedAt.Unix())

	vector, err := s.embed(ctx, report.Content)
	if err != nil {
		return fmt.Errorf("failed to embed report: %w", err)
	}

	metadata := map[string]string{
		"project":      projectName,
		"categories":   strings.Join(report.Categories, ","),
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
	}
	if report.ConversationID != "" {
		metadata["conversation_id"] = report.ConversationID
	}

	return collection.Add(ctx,
		[]string{docID},
		[][]float32{vector},
		[]map[string]string{metadata},
		[]string{report.Content})
}

// SearchResult is one semantic search hit over stored reports
type SearchResult struct {
	Project    string  `json:"project"`
	Snippet    string  `json:"snippet"`
	Similarity float32 `json:"similarity"`
}

// Search runs a semantic query over previously stored reports. Returns an
// empty slice when no vector database is configured.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if s.db == nil {
		return nil, nil
	}

	collection := s.db.GetCollection(reportsCollection, s.embed)
	if collection == nil {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection size
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	results, err := collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("report search failed: %w", err)
	}

	hits := make([]SearchResult, 0, len(results))
	for _, r := range results {
		snippet := r.Content
		if len(snippet) > 240 {
			snippet = snippet[:240] + "..."
		}
		hits = append(hits, SearchResult{
			Project:    r.Metadata["project"],
			Snippet:    snippet,
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}
