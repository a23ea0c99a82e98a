package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	searchK     int
	ingestBrand string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestBrand, "brand", "", "Brand metadata for the documents")
	searchCmd.Flags().IntVar(&searchK, "k", 5, "Number of passages to return")
}

// ingestCmd loads files into a corpus
var ingestCmd = &cobra.Command{
	Use:   "ingest <corpus-id> <file>...",
	Short: "Load text files into a corpus",
	Long: `Load text files into a corpus. Each file becomes one document whose id
is the file name.

Examples:
  bfctl ingest vs_6911c045ad7c8191b0577294e4474116 concepts/*.md --brand Ebbinge`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

// searchCmd queries a corpus
var searchCmd = &cobra.Command{
	Use:   "search <corpus-id> <query>",
	Short: "Search a corpus",
	Args:  cobra.ExactArgs(2),
	RunE:  runSearch,
}

// Document matches internal/retrieval Document
type Document struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestRequest matches internal/http IngestRequest
type IngestRequest struct {
	Documents []Document `json:"documents"`
}

// IngestResponse matches internal/http IngestResponse
type IngestResponse struct {
	Corpus string   `json:"corpus"`
	IDs    []string `json:"ids"`
}

// SearchResponse matches internal/http SearchResponse
type SearchResponse struct {
	Corpus   string `json:"corpus"`
	Passages []struct {
		ID      string  `json:"id"`
		Content string  `json:"content"`
		Score   float32 `json:"score"`
	} `json:"passages"`
}

func readDocuments(files []string, brand string) ([]Document, error) {
	docs := make([]Document, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", f, err)
		}
		if len(content) == 0 {
			continue
		}
		doc := Document{
			ID:       filepath.Base(f),
			Content:  string(content),
			Metadata: map[string]string{"source": f},
		}
		if brand != "" {
			doc.Metadata["brand"] = brand
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no content to ingest")
	}
	return docs, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	docs, err := readDocuments(args[1:], ingestBrand)
	if err != nil {
		return err
	}

	var resp IngestResponse
	path := "/api/v1/corpora/" + args[0] + "/documents"
	if err := doJSON(http.MethodPost, path, IngestRequest{Documents: docs}, http.StatusCreated, 5*time.Minute, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d document(s) into %s\n", len(resp.IDs), resp.Corpus)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	var resp SearchResponse
	path := fmt.Sprintf("/api/v1/corpora/%s/search?q=%s&k=%d", args[0], url.QueryEscape(args[1]), searchK)
	if err := doJSON(http.MethodGet, path, nil, http.StatusOK, 30*time.Second, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tID\tCONTENT")
	for _, p := range resp.Passages {
		fmt.Fprintf(w, "%.3f\t%s\t%s\n", p.Score, p.ID, truncate(p.Content, 60))
	}
	return w.Flush()
}

// truncate shortens s to maxLen runes, adding an ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
