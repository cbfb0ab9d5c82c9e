package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MaxOwnerPrefix is how many runes of the owner's name start an image filename
const MaxOwnerPrefix = 50

// ImageMaterializer downloads product images into a local directory. A file
// that already exists at the target path is never fetched again.
type ImageMaterializer struct {
	fetcher Fetcher
	pacer   *Pacer
	dir     string
	timeout time.Duration
}

// NewImageMaterializer creates a materializer writing into dir. pacer may be
// nil.
func NewImageMaterializer(fetcher Fetcher, pacer *Pacer, dir string, timeout time.Duration) *ImageMaterializer {
	return &ImageMaterializer{
		fetcher: fetcher,
		pacer:   pacer,
		dir:     dir,
		timeout: timeout,
	}
}

// Path returns where imageURL for owner is stored
func (m *ImageMaterializer) Path(imageURL, owner string) string {
	return filepath.Join(m.dir, ImageFileName(imageURL, owner))
}

// Materialize implements Materializer
func (m *ImageMaterializer) Materialize(ctx context.Context, imageURL, owner string) (string, bool, error) {
	target := m.Path(imageURL, owner)

	if _, err := os.Stat(target); err == nil {
		return target, true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, &MaterializeError{URL: imageURL, Op: OpWrite, Err: err}
	}

	if m.pacer != nil {
		if err := m.pacer.WaitRequest(ctx, imageURL); err != nil {
			return "", false, &MaterializeError{URL: imageURL, Op: OpDownload, Err: err}
		}
	}

	resp, err := m.fetcher.GetWithTimeout(ctx, imageURL, m.timeout)
	if err != nil {
		return "", false, &MaterializeError{URL: imageURL, Op: OpDownload, Err: err}
	}

	if err := writeFileAtomic(target, resp.Body); err != nil {
		return "", false, &MaterializeError{URL: imageURL, Op: OpWrite, Err: err}
	}

	return target, false, nil
}

// writeFileAtomic writes data next to target and renames it into place so a
// partial file never satisfies the existence check.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".img-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// ImageFileName derives the local filename for an image: the owner's name
// (NFC, at most MaxOwnerPrefix runes, separators and spaces replaced), a
// short digest of the full URL, and the URL's base name.
func ImageFileName(imageURL, owner string) string {
	prefix := []rune(norm.NFC.String(strings.TrimSpace(owner)))
	if len(prefix) > MaxOwnerPrefix {
		prefix = prefix[:MaxOwnerPrefix]
	}

	sum := sha256.Sum256([]byte(imageURL))
	digest := hex.EncodeToString(sum[:4])

	parts := []string{digest, imageBaseName(imageURL)}
	if len(prefix) > 0 {
		parts = append([]string{safeName(string(prefix))}, parts...)
	}
	return strings.Join(parts, "_")
}

func imageBaseName(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}

	base := path.Base(p)
	if base == "" || base == "." || base == "/" {
		return "image"
	}
	return safeName(base)
}

var unsafeReplacer = strings.NewReplacer(
	" ", "_",
	"/", "_",
	"\\", "_",
	"\t", "_",
	"\n", "_",
	"\x00", "_",
)

func safeName(s string) string {
	return unsafeReplacer.Replace(s)
}
