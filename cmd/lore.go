package cmd

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/aethel/internal/config"
	"github.com/Yates-Labs/aethel/internal/rag"
	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/spf13/cobra"
)

var (
	topK         int
	forceReindex bool
	batchSize    int
	verbose      bool
)

var loreCmd = &cobra.Command{
	Use:   "lore",
	Short: "Index and search the campaign lore",
	Long: `Lore recall splits lore.html into passages, embeds them with OpenAI and
stores them in Milvus so that passages can be looked up by meaning.

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)`,
}

var loreIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index lore.html into the vector store",
	Long: `Read lore.html from the story store and index its passages. Passages that
are already indexed are skipped unless --force is given.

Examples:
  aethel lore index
  aethel lore index --force --verbose`,
	Args: cobra.NoArgs,
	RunE: runLoreIndex,
}

var loreSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find lore passages similar to a query",
	Long: `Search the indexed lore.

Examples:
  aethel lore search "Who rules the northern wastes?"
  aethel lore search "violet skies" --topk 5`,
	Args: cobra.ExactArgs(1),
	RunE: runLoreSearch,
}

func init() {
	rootCmd.AddCommand(loreCmd)
	loreCmd.AddCommand(loreIndexCmd, loreSearchCmd)

	loreIndexCmd.Flags().BoolVar(&forceReindex, "force", false, "Drop the index and re-embed every passage")
	loreIndexCmd.Flags().IntVar(&batchSize, "batch", rag.DefaultIndexOptions().BatchSize, "Passages per embedding request")
	loreIndexCmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed progress")
	loreSearchCmd.Flags().IntVar(&topK, "topk", 3, "Number of passages to return")
}

// openRecall connects the embedder and the Milvus lore collection.
func openRecall(ctx context.Context, cfg *config.Config) (rag.Embedder, *rag.MilvusStore, error) {
	embedder, err := rag.NewOpenAIEmbedder(rag.EmbedderConfig{
		Model:   cfg.EmbeddingModel,
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	mc := rag.DefaultMilvusConfig()
	mc.Address = cfg.MilvusAddress
	mc.CollectionName = cfg.LoreCollection
	mc.Dimension = embedder.Dimension()

	vs, err := rag.NewMilvusStore(ctx, mc)
	if err != nil {
		return nil, nil, err
	}
	return embedder, vs, nil
}

func runLoreIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger := app.cfg, app.logger
	out := cmd.OutOrStdout()

	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	doc, err := s.Read(ctx, store.LoreFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", store.LoreFile, err)
	}

	if verbose {
		fmt.Fprintln(out, systemStyle.Render("→ Connecting to Milvus at "+cfg.MilvusAddress+"..."))
	}
	embedder, vs, err := openRecall(ctx, cfg)
	if err != nil {
		return err
	}
	defer vs.Close()

	opts := rag.DefaultIndexOptions()
	opts.BatchSize = batchSize
	opts.ForceReindex = forceReindex

	if verbose || forceReindex {
		fmt.Fprintln(out, systemStyle.Render("→ Indexing lore passages..."))
	}
	stats, err := rag.IndexLore(ctx, doc.Content, embedder, vs, opts)
	if err != nil {
		return err
	}

	logger.Info("lore indexed", "sections", stats.Sections, "chunks", stats.Chunks, "indexed", stats.Indexed, "skipped", stats.Skipped)
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Indexed %d of %d passages from %d sections (%d already indexed)",
		stats.Indexed, stats.Chunks, stats.Sections, stats.Skipped)))
	return nil
}

func runLoreSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	embedder, vs, err := openRecall(ctx, app.cfg)
	if err != nil {
		return err
	}
	defer vs.Close()

	r, err := rag.NewRetriever(embedder, vs)
	if err != nil {
		return err
	}
	results, err := r.Search(ctx, args[0], topK)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("Lore:"))
	fmt.Fprintln(out, narratorStyle.Render(rag.FormatResults(results)))
	fmt.Fprintln(out)
	return nil
}

// loreLookup returns the /lore handler for a play session. Each query opens
// its own connection so a session without Milvus still starts.
func loreLookup(cfg *config.Config) func(ctx context.Context, query string) (string, error) {
	if cfg.OpenAIAPIKey == "" || cfg.MilvusAddress == "" {
		return nil
	}
	return func(ctx context.Context, query string) (string, error) {
		embedder, vs, err := openRecall(ctx, cfg)
		if err != nil {
			return "", err
		}
		defer vs.Close()

		r, err := rag.NewRetriever(embedder, vs)
		if err != nil {
			return "", err
		}
		results, err := r.Search(ctx, query, 3)
		if err != nil {
			return "", err
		}
		return rag.FormatResults(results), nil
	}
}
