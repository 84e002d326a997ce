// Package store provides a thin bbolt wrapper for forecast's local data store.
//
// The store is an explicit accumulator: series are written by load, fetch and
// clean, evaluation results by train and compare. Nothing expires.
//
// Buckets:
//
//	series:  named series with their source and observations
//	results: evaluation results keyed by series, training time and run ID
//	_meta:   internal: schema version, created_at
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/forecast/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketSeries   = []byte("series")
	bucketResults  = []byte("results")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"series", "results"}

// ErrNotFound is returned when a named entry does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSeries, bucketResults, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Series ───────────────────────────────────────────────────────────────────

// SeriesInfo describes a stored series without its observations.
type SeriesInfo struct {
	Name    string    `json:"name"`
	Source  string    `json:"source"`
	Points  int       `json:"points"`
	Missing int       `json:"missing"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
	SavedAt time.Time `json:"saved_at"`
}

// storedSeries is the on-disk envelope. Observation encodes missing values
// as JSON null, so NaN never reaches encoding/json.
type storedSeries struct {
	SeriesInfo
	Obs []model.Observation `json:"observations"`
}

// PutSeries stores ts under its name, replacing any previous version.
// source records where it came from (a file path, fred:<ID>, clean:<name>).
func (s *Store) PutSeries(ts model.TimeSeries, source string) error {
	if ts.Name == "" {
		return fmt.Errorf("put series: name is required")
	}
	env := storedSeries{
		SeriesInfo: SeriesInfo{
			Name:    ts.Name,
			Source:  source,
			Points:  ts.Len(),
			Missing: ts.MissingCount(),
			First:   ts.First(),
			Last:    ts.Last(),
			SavedAt: time.Now().UTC(),
		},
		Obs: ts.Obs,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding series %s: %w", ts.Name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeries).Put([]byte(ts.Name), b)
	})
}

// GetSeries retrieves a series by name.
// Returns (series, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetSeries(name string) (model.TimeSeries, bool, error) {
	var env storedSeries
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSeries).Get([]byte(name))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &env)
	})
	if err != nil || !found {
		return model.TimeSeries{}, false, err
	}
	ts, err := model.NewTimeSeries(env.Name, env.Obs)
	if err != nil {
		return model.TimeSeries{}, false, fmt.Errorf("decoding series %s: %w", name, err)
	}
	return ts, true, nil
}

// ListSeries returns the info of every stored series, sorted by name.
func (s *Store) ListSeries() ([]SeriesInfo, error) {
	var infos []SeriesInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeries).ForEach(func(k, v []byte) error {
			var env storedSeries
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("decoding series %s: %w", k, err)
			}
			infos = append(infos, env.SeriesInfo)
			return nil
		})
	})
	return infos, err
}

// DeleteSeries removes a series and every result recorded against it.
// It returns ErrNotFound when no such series exists.
func (s *Store) DeleteSeries(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSeries)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("series %q: %w", name, ErrNotFound)
		}
		if err := b.Delete([]byte(name)); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(bucketResults), resultPrefix(name))
	})
}

// ─── Results ──────────────────────────────────────────────────────────────────

// ResultKey builds the canonical key for an evaluation result.
// Format: <series>\x00<trained_at RFC3339Nano>\x00<run_id>
// Keys sort by series, then training time.
func ResultKey(r model.EvaluationResult) string {
	return string(resultPrefix(r.Series)) + r.TrainedAt.UTC().Format(time.RFC3339Nano) + "\x00" + r.RunID
}

func resultPrefix(series string) []byte {
	return []byte(series + "\x00")
}

// PutResult stores an evaluation result.
func (s *Store) PutResult(r model.EvaluationResult) error {
	if r.Series == "" || r.RunID == "" {
		return fmt.Errorf("put result: series and run id are required")
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", r.RunID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResults).Put([]byte(ResultKey(r)), b)
	})
}

// ListResults returns the results for a series in training order.
// Pass series="" to list every result.
func (s *Store) ListResults(series string) ([]model.EvaluationResult, error) {
	var prefix []byte
	if series != "" {
		prefix = resultPrefix(series)
	}
	var out []model.EvaluationResult
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketResults).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r model.EvaluationResult
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decoding result %q: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// GetResult finds a result by run ID.
func (s *Store) GetResult(runID string) (model.EvaluationResult, error) {
	all, err := s.ListResults("")
	if err != nil {
		return model.EvaluationResult{}, err
	}
	for _, r := range all {
		if r.RunID == runID {
			return r, nil
		}
	}
	return model.EvaluationResult{}, fmt.Errorf("result %q: %w", runID, ErrNotFound)
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all user buckets,
// in AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var size int64
			if err := b.ForEach(func(k, v []byte) error {
				count++
				size += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: size})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
