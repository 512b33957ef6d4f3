//go:build ignore

// Package main generates a synthetic document corpus for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"retrieval", "indexing", "chunking", "embedding", "fusion",
	"caching", "storage", "watching", "parsing", "ranking",
	"migration", "deployment", "monitoring", "debugging", "testing",
}

var nouns = []string{
	"pipeline", "index", "document", "chunk", "vector", "query",
	"partition", "tenant", "batch", "store", "cache", "registry",
	"threshold", "candidate", "score", "token", "phrase", "window",
}

var verbs = []string{
	"normalizes", "segments", "embeds", "ranks", "filters", "merges",
	"debounces", "persists", "replaces", "tokenizes", "truncates",
	"coalesces", "validates", "partitions", "queries", "rebuilds",
}

var sectionTitles = []string{
	"Overview", "Design", "Configuration", "Failure Modes",
	"Performance Notes", "Edge Cases", "Operational Guidance",
}

func sentence(rng *rand.Rand) string {
	return fmt.Sprintf("The %s %s the %s before the %s %s each %s.",
		nouns[rng.Intn(len(nouns))],
		verbs[rng.Intn(len(verbs))],
		nouns[rng.Intn(len(nouns))],
		nouns[rng.Intn(len(nouns))],
		verbs[rng.Intn(len(verbs))],
		nouns[rng.Intn(len(nouns))])
}

func paragraph(rng *rand.Rand) string {
	n := 3 + rng.Intn(4)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentence(rng)
	}
	return strings.Join(parts, " ")
}

func document(rng *rand.Rand, topic string, idx int) string {
	var b strings.Builder

	title := strings.ToUpper(topic[:1]) + topic[1:]
	fmt.Fprintf(&b, "---\ntitle: %s notes %d\ntopic: %s\n---\n\n", title, idx, topic)
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", title, paragraph(rng))

	sections := 2 + rng.Intn(4)
	for i := 0; i < sections; i++ {
		fmt.Fprintf(&b, "## %s\n\n", sectionTitles[rng.Intn(len(sectionTitles))])
		paras := 1 + rng.Intn(3)
		for j := 0; j < paras; j++ {
			fmt.Fprintf(&b, "%s\n\n", paragraph(rng))
		}
	}

	return b.String()
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", *outputDir, err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		dir := filepath.Join(*outputDir, topic)
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-%04d.md", topic, i))
		if err := os.WriteFile(path, []byte(document(rng, topic, i)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d documents under %s\n", *numFiles, *outputDir)
}
