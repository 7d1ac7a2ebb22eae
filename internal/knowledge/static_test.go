package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleSnippets() []Snippet {
	return []Snippet{
		{
			Title:    "orders overview",
			Content:  "Order rows are one per line item.",
			Keywords: []string{"order", "line item"},
			Datasets: []string{"orders"},
		},
		{
			Title:    "currency note",
			Content:  "All monetary values are stored in cents.",
			Keywords: []string{"price", "revenue", "sales"},
		},
		{
			Title:   "general help",
			Content: "Column names are lower_snake_case.",
		},
	}
}

func TestStaticProviderDatasetBinding(t *testing.T) {
	provider := NewStaticProvider(sampleSnippets(), 5)

	results := provider.Query("how many order rows?", "orders")
	if len(results) != 2 {
		t.Fatalf("expected dataset snippet and general snippet, got %d", len(results))
	}

	results = provider.Query("how many order rows?", "inventory")
	for _, snippet := range results {
		if snippet.Title == "orders overview" {
			t.Fatal("dataset-bound snippet leaked into another dataset")
		}
	}
}

func TestStaticProviderKeywordMatch(t *testing.T) {
	provider := NewStaticProvider(sampleSnippets(), 5)

	results := provider.Query("total revenue by month", "")
	found := false
	for _, snippet := range results {
		if snippet.Title == "currency note" {
			found = true
		}
	}
	if !found {
		t.Fatalf("keyword match failed: %+v", results)
	}
}

func TestStaticProviderMaxResults(t *testing.T) {
	provider := NewStaticProvider(sampleSnippets(), 1)
	results := provider.Query("order revenue", "orders")
	if len(results) != 1 {
		t.Fatalf("expected results capped at 1, got %d", len(results))
	}
}

func TestStaticProviderRegister(t *testing.T) {
	provider := NewStaticProvider(nil, 5)
	if got := provider.Query("inventory levels", ""); len(got) != 0 {
		t.Fatalf("empty provider should return nothing, got %+v", got)
	}

	provider.Register(
		Snippet{Title: "inventory", Content: "Stock counts refresh nightly.", Keywords: []string{"inventory"}},
		Snippet{},
	)
	results := provider.Query("current inventory levels", "")
	if len(results) != 1 || results[0].Title != "inventory" {
		t.Fatalf("registered snippet not found: %+v", results)
	}
}

func TestLoadStaticProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.json")
	payload := `[{"title":"orders","content":"one row per line item","keywords":["order"],"datasets":["orders"]}]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	provider, err := LoadStaticProvider(path, 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	results := provider.Query("order volume", "orders")
	if len(results) != 1 {
		t.Fatalf("expected one snippet, got %d", len(results))
	}

	if _, err := LoadStaticProvider("", 3); err == nil {
		t.Fatal("empty path must fail")
	}
	if _, err := LoadStaticProvider(filepath.Join(dir, "missing.json"), 3); err == nil {
		t.Fatal("missing file must fail")
	}
}
