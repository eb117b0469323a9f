package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

const extractionBucketName = "extractions"

// Extraction is a cached extraction result
type Extraction struct {
	Path        string    `json:"path"`
	Text        string    `json:"text"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// TextCache stores extracted text keyed by a hash of the file contents
type TextCache interface {
	// Get returns the cached extraction for key, or nil if there is none
	Get(key string) (*Extraction, error)

	// Put stores an extraction under key
	Put(key string, extraction *Extraction) error

	// Close closes the cache
	Close() error
}

// BoltCache implements TextCache using BoltDB
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache opens or creates the cache database at path
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(extractionBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Get retrieves an extraction by key
func (b *BoltCache) Get(key string) (*Extraction, error) {
	var extraction *Extraction
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(extractionBucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &extraction)
	})
	if err != nil {
		return nil, fmt.Errorf("reading extraction: %w", err)
	}
	return extraction, nil
}

// Put saves an extraction under key
func (b *BoltCache) Put(key string, extraction *Extraction) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(extraction)
		if err != nil {
			return fmt.Errorf("marshaling extraction: %w", err)
		}
		return tx.Bucket([]byte(extractionBucketName)).Put([]byte(key), data)
	})
}

// Close closes the database
func (b *BoltCache) Close() error {
	return b.db.Close()
}

// CachedExtractor serves repeat extractions of the same file contents from a cache
type CachedExtractor struct {
	extractor Extractor
	cache     TextCache
	now       func() time.Time
}

// NewCachedExtractor wraps extractor with cache
func NewCachedExtractor(extractor Extractor, cache TextCache) *CachedExtractor {
	return &CachedExtractor{
		extractor: extractor,
		cache:     cache,
		now:       time.Now,
	}
}

// ExtractText returns cached text when the file contents were seen before,
// and otherwise extracts and caches it. Cache failures are logged and ignored.
func (c *CachedExtractor) ExtractText(path string) (string, error) {
	resolved, err := ValidatePDF(path)
	if err != nil {
		return "", err
	}

	key, err := contentKey(resolved)
	if err != nil {
		return "", err
	}

	if cached, err := c.cache.Get(key); err != nil {
		slog.Warn("Failed to read extraction cache", "path", resolved, "error", err)
	} else if cached != nil {
		slog.Debug("Extraction cache hit", "path", resolved, "extracted_at", cached.ExtractedAt)
		return cached.Text, nil
	}

	text, err := c.extractor.ExtractText(resolved)
	if err != nil {
		return "", err
	}

	extraction := &Extraction{Path: resolved, Text: text, ExtractedAt: c.now()}
	if err := c.cache.Put(key, extraction); err != nil {
		slog.Warn("Failed to write extraction cache", "path", resolved, "error", err)
	}
	return text, nil
}

// contentKey hashes the file at path
func contentKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
