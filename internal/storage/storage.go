// Package storage keeps uploaded attachments and generated PDFs in a bucket
// directory served by the web server under a public prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/evidenceledger/docgen/internal/errl"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Object is a stored file.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Bucket is a filesystem directory holding stored objects.
type Bucket struct {
	root   string
	prefix string
	now    func() time.Time
}

// NewBucket creates root if needed. Objects are addressed as prefix + "/" + key.
func NewBucket(root, prefix string) (*Bucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errl.Errorf("creating bucket %s: %w", root, err)
	}
	return &Bucket{root: root, prefix: strings.TrimSuffix(prefix, "/"), now: time.Now}, nil
}

// Root is the directory of the bucket.
func (b *Bucket) Root() string {
	return b.root
}

// Put stores the content of r under a key built from the current time in
// milliseconds and the sanitized name.
func (b *Bucket) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	clean := SanitizeName(name)

	var f *os.File
	var key string
	ms := b.now().UnixMilli()
	for {
		key = fmt.Sprintf("%d_%s", ms, clean)
		var err error
		f, err = os.OpenFile(filepath.Join(b.root, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return Object{}, errl.Errorf("creating %s: %w", key, err)
		}
		ms++
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return Object{}, errl.Errorf("writing %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return Object{}, errl.Errorf("closing %s: %w", key, err)
	}

	return Object{Key: key, URL: b.prefix + "/" + key}, nil
}

// Delete removes an object. A missing object is not an error.
func (b *Bucket) Delete(key string) error {
	err := os.Remove(filepath.Join(b.root, filepath.Base(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errl.Error(err)
	}
	return nil
}

// SanitizeName folds accents and replaces anything outside [A-Za-z0-9._-]
// with an underscore. Runs of underscores are collapsed.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		ok := r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-')
		if ok {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "arquivo"
	}
	return out
}
