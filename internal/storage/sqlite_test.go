package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/masahif/tiendacrawl/internal/model"
)

func sampleResult(runID string, started time.Time) *model.CrawlResult {
	return &model.CrawlResult{
		RunID:      runID,
		BaseURL:    "https://shop.example",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Products: []model.ProductRecord{
			{
				Name:        "Remera Azul",
				Price:       "$ 12.500",
				Description: "Algodón 100%",
				URL:         "https://shop.example/productos/remera-azul/",
				Images:      []string{"products/images/Remera_Azul_1a2b3c4d_1.jpg", "https://cdn.example/2.jpg"},
			},
			{
				Name:   "Gorra",
				URL:    "https://shop.example/productos/gorra/",
				Images: []string{},
			},
		},
		Failures: []model.Failure{
			{URL: "https://shop.example/productos/buzo/", Kind: model.FailureHTTPStatus, Message: "unexpected status 500", OccurredAt: started},
		},
		Stats: model.CrawlStats{
			PagesVisited: 2,
			ItemsSeen:    3,
			Products:     2,
			ItemFailures: 1,
			ImagesSaved:  1,
			StopReason:   "no_more_pages",
		},
	}
}

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test_crawler.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestSQLiteStorage(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	result := sampleResult("run-1", time.Now().UTC())

	if err := storage.SaveRun(ctx, result); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	t.Run("LoadProducts", func(t *testing.T) {
		products, err := storage.LoadProducts(ctx, "run-1")
		if err != nil {
			t.Fatalf("Failed to load products: %v", err)
		}
		if !reflect.DeepEqual(products, result.Products) {
			t.Errorf("Loaded products differ:\n got %+v\nwant %+v", products, result.Products)
		}
	})

	t.Run("LoadFailures", func(t *testing.T) {
		failures, err := storage.LoadFailures(ctx, "run-1")
		if err != nil {
			t.Fatalf("Failed to load failures: %v", err)
		}
		if len(failures) != 1 {
			t.Fatalf("Expected 1 failure, got %d", len(failures))
		}
		if failures[0].Kind != model.FailureHTTPStatus || failures[0].URL != "https://shop.example/productos/buzo/" {
			t.Errorf("Unexpected failure %+v", failures[0])
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		runs, err := storage.ListRuns(ctx)
		if err != nil {
			t.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("Expected 1 run, got %d", len(runs))
		}
		r := runs[0]
		if r.ID != "run-1" || r.Pages != 2 || r.Products != 2 || r.Failures != 1 || r.StopReason != "no_more_pages" {
			t.Errorf("Unexpected run summary %+v", r)
		}
	})

	t.Run("DuplicateRunRejected", func(t *testing.T) {
		if err := storage.SaveRun(ctx, result); err == nil {
			t.Error("Saving the same run twice should fail")
		}
		products, _ := storage.LoadProducts(ctx, "run-1")
		if len(products) != 2 {
			t.Errorf("Failed save must not add rows, got %d products", len(products))
		}
	})
}

func TestSQLiteStorageRunsAreIndependent(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := storage.SaveRun(ctx, sampleResult("older", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	second := sampleResult("newer", now)
	second.Products = second.Products[:1]
	if err := storage.SaveRun(ctx, second); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	products, err := storage.LoadProducts(ctx, "newer")
	if err != nil {
		t.Fatalf("Failed to load products: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("Expected 1 product in newer run, got %d", len(products))
	}

	runs, err := storage.ListRuns(ctx)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "newer" {
		t.Errorf("Expected newest run first, got %+v", runs)
	}
}

func TestSQLiteStorageRejectsDuplicateProduct(t *testing.T) {
	storage := newTestStorage(t)
	result := sampleResult("dup", time.Now().UTC())
	result.Products = append(result.Products, result.Products[0])

	if err := storage.SaveRun(context.Background(), result); err == nil {
		t.Error("A run with the same product URL twice should be rejected")
	}

	runs, _ := storage.ListRuns(context.Background())
	if len(runs) != 0 {
		t.Errorf("Rejected run must be rolled back, found %d runs", len(runs))
	}
}

func TestSQLiteStorageNilResult(t *testing.T) {
	storage := newTestStorage(t)
	if err := storage.SaveRun(context.Background(), nil); err == nil {
		t.Error("Expected error for nil result")
	}
}

func TestLoadProductsUnknownRun(t *testing.T) {
	storage := newTestStorage(t)
	products, err := storage.LoadProducts(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("Expected no products, got %d", len(products))
	}
}
