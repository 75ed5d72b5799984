//go:build ignore

// Generates a synthetic library corpus for manual testing and benchmarks.
// Usage: go run scripts/generate-corpus.go -docs 500 -output testdata/corpus.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numDocs = flag.Int("docs", 500, "Number of documents to generate")
	output  = flag.String("output", "testdata/corpus.json", "Output file")
	seed    = flag.Int64("seed", 42, "Random seed for reproducibility")
)

type document struct {
	ID             string   `json:"id"`
	Content        string   `json:"content"`
	Classification string   `json:"classification,omitempty"`
	ContentType    string   `json:"type,omitempty"`
	Language       string   `json:"language,omitempty"`
	ReadStatus     string   `json:"read_status,omitempty"`
	Subjects       []string `json:"subjects,omitempty"`
}

var (
	classifications = []string{"005", "330", "599", "741", "813", "820", "863", "940"}
	contentTypes    = []string{"book", "article", "thesis", "report"}
	languages       = []string{"en", "es", "fr", "de", ""}
	readStatuses    = []string{"read", "unread", "reading", ""}
	subjects        = []string{
		"programming", "compilers", "marine biology", "medieval history",
		"economics", "sea stories", "historical fiction", "illustration",
		"naval warfare", "type systems",
	}
	nouns = []string{
		"voyage", "cathedral", "compiler", "whale", "monastery", "empire",
		"market", "manuscript", "harbor", "archive", "expedition", "treatise",
	}
	adjectives = []string{
		"forgotten", "medieval", "modern", "coastal", "annotated", "rare",
		"definitive", "illustrated", "concise", "monumental",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	docs := make([]document, 0, *numDocs)
	for i := 0; i < *numDocs; i++ {
		subjectCount := 1 + rng.Intn(3)
		docSubjects := make([]string, 0, subjectCount)
		for len(docSubjects) < subjectCount {
			s := subjects[rng.Intn(len(subjects))]
			if !contains(docSubjects, s) {
				docSubjects = append(docSubjects, s)
			}
		}

		docs = append(docs, document{
			ID:             fmt.Sprintf("doc-%05d", i),
			Content:        sentence(rng, 20+rng.Intn(60)),
			Classification: classifications[rng.Intn(len(classifications))],
			ContentType:    contentTypes[rng.Intn(len(contentTypes))],
			Language:       languages[rng.Intn(len(languages))],
			ReadStatus:     readStatuses[rng.Intn(len(readStatuses))],
			Subjects:       docSubjects,
		})
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal corpus: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write corpus: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d documents to %s\n", len(docs), *output)
}

func sentence(rng *rand.Rand, words int) string {
	out := ""
	for i := 0; i < words; i++ {
		if i > 0 {
			out += " "
		}
		if rng.Intn(3) == 0 {
			out += adjectives[rng.Intn(len(adjectives))]
		} else {
			out += nouns[rng.Intn(len(nouns))]
		}
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
