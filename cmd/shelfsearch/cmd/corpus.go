package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shelfsearch/shelfsearch/internal/backend"
	"github.com/shelfsearch/shelfsearch/internal/config"
	"github.com/shelfsearch/shelfsearch/internal/search"
)

// corpusDocument is one entry of a JSON corpus file.
type corpusDocument struct {
	ID                 string   `json:"id"`
	Content            string   `json:"content"`
	ClassificationCode string   `json:"classification,omitempty"`
	ContentType        string   `json:"type,omitempty"`
	Language           string   `json:"language,omitempty"`
	ReadStatus         string   `json:"read_status,omitempty"`
	Subjects           []string `json:"subjects,omitempty"`
	Snippet            string   `json:"snippet,omitempty"`
}

// loadCorpus reads a JSON array of documents from path.
func loadCorpus(path string) ([]corpusDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	var docs []corpusDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus file %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus file %s contains no documents", path)
	}
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("corpus document %d has no id", i)
		}
	}
	return docs, nil
}

// buildEngine indexes the corpus into the reference backends and assembles a
// ready-to-search engine. The caller must Close it.
func buildEngine(ctx context.Context, cfg *config.Config, docs []corpusDocument, opts ...search.EngineOption) (*search.Engine, error) {
	lexical, err := backend.NewBleveLexicalIndex()
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	embedder := backend.NewStaticEmbedder()
	dense, err := backend.NewHNSWDenseIndex(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("create dense index: %w", err)
	}

	sparseEncoder := backend.NewStaticSparseEncoder()
	sparse := backend.NewMemSparseIndex()

	metadata, err := backend.NewSQLiteMetadataStore(":memory:")
	if err != nil {
		return nil, fmt.Errorf("create metadata store: %w", err)
	}

	if err := indexCorpus(ctx, docs, lexical, dense, sparse, embedder, sparseEncoder, metadata); err != nil {
		return nil, err
	}

	engineConfig := search.EngineConfig{
		DefaultLimit:    cfg.Search.DefaultLimit,
		MaxLimit:        cfg.Search.MaxLimit,
		TopN:            cfg.Search.TopN,
		RRFConstant:     cfg.Search.RRFConstant,
		LexicalBudget:   cfg.Search.LexicalBudget,
		DenseBudget:     cfg.Search.DenseBudget,
		SparseBudget:    cfg.Search.SparseBudget,
		RerankWindow:    cfg.Rerank.Window,
		RerankBudget:    cfg.Rerank.Budget,
		MetadataWorkers: cfg.Facets.MetadataWorkers,
		DefaultWeights: search.MethodWeights{
			Lexical: cfg.Search.LexicalWeight,
			Dense:   cfg.Search.DenseWeight,
			Sparse:  cfg.Search.SparseWeight,
		},
	}

	opts = append(opts, search.WithWeightEstimator(search.NewHeuristicEstimator(corpusVocabulary(docs))))

	return search.NewEngine(lexical, dense, sparse, embedder, sparseEncoder, metadata, engineConfig, opts...)
}

func indexCorpus(
	ctx context.Context,
	docs []corpusDocument,
	lexical *backend.BleveLexicalIndex,
	dense *backend.HNSWDenseIndex,
	sparse *backend.MemSparseIndex,
	embedder *backend.StaticEmbedder,
	sparseEncoder *backend.StaticSparseEncoder,
	metadata *backend.SQLiteMetadataStore,
) error {
	lexDocs := make([]*backend.Document, 0, len(docs))
	metaDocs := make([]*backend.DocumentMeta, 0, len(docs))
	ids := make([]string, 0, len(docs))
	vectors := make([][]float32, 0, len(docs))

	for _, d := range docs {
		lexDocs = append(lexDocs, &backend.Document{ID: d.ID, Content: d.Content})

		snippet := d.Snippet
		if snippet == "" {
			snippet = firstWords(d.Content, 30)
		}
		metaDocs = append(metaDocs, &backend.DocumentMeta{
			ID:                 d.ID,
			ClassificationCode: d.ClassificationCode,
			ContentType:        d.ContentType,
			Language:           d.Language,
			ReadStatus:         d.ReadStatus,
			Subjects:           d.Subjects,
			Snippet:            snippet,
		})

		vec, err := embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", d.ID, err)
		}
		ids = append(ids, d.ID)
		vectors = append(vectors, vec)

		weights, err := sparseEncoder.Encode(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", d.ID, err)
		}
		if err := sparse.Add(ctx, d.ID, weights); err != nil {
			return fmt.Errorf("index document %s: %w", d.ID, err)
		}
	}

	if err := lexical.Index(ctx, lexDocs); err != nil {
		return fmt.Errorf("index lexical corpus: %w", err)
	}
	if err := dense.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index dense corpus: %w", err)
	}
	if err := metadata.SaveDocuments(ctx, metaDocs); err != nil {
		return fmt.Errorf("save corpus metadata: %w", err)
	}
	return nil
}

// corpusVocabulary collects the corpus terms for rare-token detection.
func corpusVocabulary(docs []corpusDocument) []string {
	seen := make(map[string]struct{})
	var vocab []string
	for _, d := range docs {
		for _, tok := range strings.Fields(strings.ToLower(d.Content)) {
			tok = strings.Trim(tok, ".,;:!?\"'()[]")
			if tok == "" {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			vocab = append(vocab, tok)
		}
	}
	return vocab
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ") + " …"
}
