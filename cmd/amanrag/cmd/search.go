package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/embed"
	"github.com/Aman-CERP/amanrag/internal/retrieve"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode          string
	topK          int
	tenant        string
	operator      string
	fuzzy         bool
	minMatchCount int
	format        string // "json", "text"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search the indexed documents in one of six retrieval modes.

Modes: semantic, keyword, hybrid, fulltext, text_match, phrase_match.
Semantic and hybrid require a configured embedding provider.

Examples:
  amanrag search "embedding cache invalidation"
  amanrag search --mode keyword --top-k 5 "debounce window"
  amanrag search --mode text_match --fuzzy "connection pool"
  amanrag search --mode phrase_match "exactly this phrase"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Retrieval mode (default from config)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant partition to search")
	cmd.Flags().StringVar(&opts.operator, "operator", "", "Term combination for fulltext mode: or, and")
	cmd.Flags().BoolVar(&opts.fuzzy, "fuzzy", false, "Substring matching for text_match mode instead of exact equality")
	cmd.Flags().IntVar(&opts.minMatchCount, "min-match-count", 0, "Minimum token occurrences for keyword mode")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format: json, text")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode := retrieve.Mode(cfg.Retrieval.Mode)
	if opts.mode != "" {
		mode = retrieve.Mode(opts.mode)
	}

	stores, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer stores.close()

	registry := retrieve.NewRegistry(stores.vectors, stores.text, stores.meta, fusionFrom(cfg), slog.Default())
	source, err := registry.Get(mode)
	if err != nil {
		return err
	}

	req := retrieve.Request{
		Query:         query,
		TopK:          opts.topK,
		Tenant:        cfg.Retrieval.DefaultTenant,
		Operator:      store.MatchOperator(opts.operator),
		Fuzzy:         opts.fuzzy,
		MinMatchCount: opts.minMatchCount,
	}
	if opts.tenant != "" {
		req.Tenant = opts.tenant
	}

	// Embedding happens here, at the process boundary; the pipeline only
	// ever sees a precomputed query vector.
	if mode == retrieve.ModeSemantic || mode == retrieve.ModeHybrid {
		vector, err := embedQuery(ctx, cfg, query)
		if err != nil {
			return err
		}
		req.QueryVector = vector
	}

	pipeline := retrieve.NewPipeline(pipelineConfigFrom(cfg), rerankerFrom(cfg), slog.Default())
	resp, err := pipeline.Run(ctx, source, req)
	if err != nil {
		return err
	}

	return printResults(cmd, query, resp, opts.format)
}

// embedQuery computes the query embedding with the configured provider.
func embedQuery(ctx context.Context, cfg *config.Config, query string) ([]float32, error) {
	embedder, err := embed.NewFromConfig(ctx, cfg.Embeddings, slog.Default())
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("semantic retrieval requires an embedding provider; set embeddings.provider in config")
	}
	defer func() { _ = embedder.Close() }()

	return embedder.Embed(ctx, query)
}

func fusionFrom(cfg *config.Config) retrieve.FusionFunc {
	f := cfg.Fusion
	if f.Method == "weighted" {
		return retrieve.NewWeightedFusion(f.SemanticWeight, f.KeywordWeight)
	}
	return retrieve.NewRRFFusion(f.RRFK, f.SemanticWeight, f.KeywordWeight)
}

func rerankerFrom(cfg *config.Config) retrieve.Reranker {
	if !cfg.Rerank.Enabled {
		return nil
	}
	return retrieve.NewHTTPReranker(cfg.Rerank.Endpoint, cfg.Rerank.Model)
}

func pipelineConfigFrom(cfg *config.Config) retrieve.PipelineConfig {
	r := cfg.Retrieval
	return retrieve.PipelineConfig{
		TopK:                r.TopK,
		SimilarityThreshold: r.SimilarityThreshold,
		CandidateMultiplier: r.CandidateMultiplier,
		RerankEnabled:       cfg.Rerank.Enabled,
	}
}

func printResults(cmd *cobra.Command, query string, resp *retrieve.Response, format string) error {
	if format == "text" {
		out := cmd.OutOrStdout()
		if len(resp.Results) == 0 {
			fmt.Fprintf(out, "No results for %q\n", query)
			return nil
		}
		for i, r := range resp.Results {
			fmt.Fprintf(out, "%d. [%.4f] %s\n", i+1, r.Score, r.ChunkID)
			fmt.Fprintf(out, "   %s\n", firstLine(r.Content))
		}
		return nil
	}

	payload := struct {
		Query   string             `json:"query"`
		Results []*retrieve.Result `json:"results"`
		Warning string             `json:"warning,omitempty"`
	}{Query: query, Results: resp.Results}
	if resp.SourceErr != nil {
		payload.Warning = resp.SourceErr.Error()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
