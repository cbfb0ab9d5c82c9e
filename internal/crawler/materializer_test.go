package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func imageServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMaterializeCachesByExistence(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second)
	defer client.Close()

	dir := filepath.Join(t.TempDir(), "images")
	m := NewImageMaterializer(client, nil, dir, 5*time.Second)
	ctx := context.Background()
	imgURL := server.URL + "/static/remera-1.jpg"

	path1, cached, err := m.Materialize(ctx, imgURL, "Remera Azul")
	if err != nil {
		t.Fatalf("First Materialize failed: %v", err)
	}
	if cached {
		t.Error("First call should not be cached")
	}

	data, err := os.ReadFile(path1)
	if err != nil {
		t.Fatalf("Image file not written: %v", err)
	}
	if string(data) != "jpeg:/static/remera-1.jpg" {
		t.Errorf("Unexpected image content %q", data)
	}

	path2, cached, err := m.Materialize(ctx, imgURL, "Remera Azul")
	if err != nil {
		t.Fatalf("Second Materialize failed: %v", err)
	}
	if !cached {
		t.Error("Second call should be served from the existing file")
	}
	if path1 != path2 {
		t.Errorf("Expected same path, got %s and %s", path1, path2)
	}

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected exactly one network fetch, got %d", n)
	}
}

func TestMaterializeDownloadError(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second)
	defer client.Close()

	dir := t.TempDir()
	m := NewImageMaterializer(client, nil, dir, 5*time.Second)
	imgURL := server.URL + "/static/missing.jpg"

	_, _, err := m.Materialize(context.Background(), imgURL, "Remera")

	var me *MaterializeError
	if !errors.As(err, &me) {
		t.Fatalf("Expected *MaterializeError, got %T (%v)", err, err)
	}
	if me.Op != OpDownload {
		t.Errorf("Expected op %s, got %s", OpDownload, me.Op)
	}
	if me.URL != imgURL {
		t.Errorf("Expected URL %s, got %s", imgURL, me.URL)
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Errorf("Expected wrapped 404 FetchError, got %v", err)
	}

	if _, err := os.Stat(m.Path(imgURL, "Remera")); !errors.Is(err, os.ErrNotExist) {
		t.Error("Failed download must not leave a file behind")
	}
}

func TestMaterializeWriteError(t *testing.T) {
	var hits int32
	server := imageServer(t, &hits)

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second)
	defer client.Close()

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	m := NewImageMaterializer(client, nil, filepath.Join(blocker, "images"), 5*time.Second)
	_, _, err := m.Materialize(context.Background(), server.URL+"/static/a.jpg", "Remera")

	var me *MaterializeError
	if !errors.As(err, &me) {
		t.Fatalf("Expected *MaterializeError, got %T (%v)", err, err)
	}
	if me.Op != OpWrite {
		t.Errorf("Expected op %s, got %s", OpWrite, me.Op)
	}
}

func TestImageFileName(t *testing.T) {
	name := ImageFileName("https://cdn.example/stores/1/products/foto-1.jpg?v=2", "Remera Azul/Roja")

	if !strings.HasPrefix(name, "Remera_Azul_Roja_") {
		t.Errorf("Expected sanitized owner prefix, got %s", name)
	}
	if !strings.HasSuffix(name, "_foto-1.jpg") {
		t.Errorf("Expected remote base name suffix without query, got %s", name)
	}
	if strings.ContainsAny(name, " /\\") {
		t.Errorf("File name contains unsafe characters: %s", name)
	}

	// owner_ + 8 hex + _ + base
	digest := strings.TrimSuffix(strings.TrimPrefix(name, "Remera_Azul_Roja_"), "_foto-1.jpg")
	if len(digest) != 8 {
		t.Errorf("Expected 8 character digest, got %q", digest)
	}
}

func TestImageFileNameDeterministic(t *testing.T) {
	a := ImageFileName("https://cdn.example/a/foto.jpg", "Buzo")
	b := ImageFileName("https://cdn.example/a/foto.jpg", "Buzo")
	if a != b {
		t.Errorf("Same inputs gave different names: %s, %s", a, b)
	}

	c := ImageFileName("https://cdn.example/b/foto.jpg", "Buzo")
	if a == c {
		t.Errorf("Different URLs with the same base name collided: %s", a)
	}
}

func TestImageFileNameTruncatesOwner(t *testing.T) {
	owner := strings.Repeat("ñ", 80)
	name := ImageFileName("https://cdn.example/x.png", owner)

	prefix := strings.SplitN(name, "_", 2)[0]
	if n := utf8.RuneCountInString(prefix); n != MaxOwnerPrefix {
		t.Errorf("Expected %d rune prefix, got %d", MaxOwnerPrefix, n)
	}
	if !utf8.ValidString(name) {
		t.Error("Truncation produced invalid UTF-8")
	}
}

func TestImageFileNameEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		owner  string
		suffix string
		prefix string
	}{
		{"empty owner", "https://cdn.example/x.png", "", "_x.png", ""},
		{"no base name", "https://cdn.example/", "Gorra", "_image", "Gorra_"},
		{"NFD owner", "https://cdn.example/x.png", "Camio\u0301n", "_x.png", "Cami\u00f3n_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImageFileName(tt.url, tt.owner)
			if !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("Expected suffix %s, got %s", tt.suffix, got)
			}
			if tt.prefix != "" && !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("Expected prefix %s, got %s", tt.prefix, got)
			}
			if tt.prefix == "" && strings.HasPrefix(got, "_") {
				t.Errorf("Empty owner should not leave a leading separator: %s", got)
			}
		})
	}
}
