// Package cache is a content-addressed store of recommendation results keyed
// by the semantic content of their hard constraints. Equivalent requests,
// however their lists are ordered, normalize to the same key and never
// recompute.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mhartmann/staffing-recommender-go/pkg/metrics"
	"github.com/mhartmann/staffing-recommender-go/pkg/models"
)

// Entry is one cached recommendation. HardConstraints holds the normalized
// form, not the raw input, so cache files stay inspectable and diffable.
type Entry struct {
	ConstraintHash  string                 `json:"constraint_hash"`
	HardConstraints models.HardConstraints `json:"hard_constraints"`
	Output          models.Output          `json:"output"`
	CachedAt        time.Time              `json:"cached_at"`
	LastAccess      time.Time              `json:"last_access"`
}

// Cache persists entries as a JSON list, newest at the end. The whole file is
// read on each access and rewritten on each mutation; fine at the expected
// entry count, shard by hash before this becomes the bottleneck.
type Cache struct {
	path string
	mu   sync.RWMutex
	log  zerolog.Logger
	now  func() time.Time
}

// New creates a cache backed by the JSON file at path
func New(path string, log zerolog.Logger) *Cache {
	return &Cache{
		path: path,
		log:  log.With().Str("component", "cache").Logger(),
		now:  time.Now,
	}
}

// Normalize returns the canonical form of a constraint set: pair elements
// sorted within each pair, every list sorted, empty lists collapsed to
// absent. Two requests differing only in ordering normalize identically.
func Normalize(hc models.HardConstraints) models.HardConstraints {
	var out models.HardConstraints
	out.ForcedAssignments = normalizePairs(hc.ForcedAssignments)
	out.BannedAssignments = normalizePairs(hc.BannedAssignments)
	if len(hc.ForcedEmployees) > 0 {
		out.ForcedEmployees = append([]string(nil), hc.ForcedEmployees...)
		sort.Strings(out.ForcedEmployees)
	}
	if len(hc.ForcedClients) > 0 {
		out.ForcedClients = append([]string(nil), hc.ForcedClients...)
		sort.Strings(out.ForcedClients)
	}
	return out
}

func normalizePairs(pairs [][2]string) [][2]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make([][2]string, len(pairs))
	for i, p := range pairs {
		if p[0] <= p[1] {
			out[i] = p
		} else {
			out[i] = [2]string{p[1], p[0]}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Hash returns the stable content hash of a constraint set's canonical form.
// A lookup key, not a security primitive.
func Hash(hc models.HardConstraints) string {
	canonical, _ := json.Marshal(Normalize(hc))
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached output for an equivalent constraint set. On a hit
// the entry's LastAccess advances and the entry moves to the most-recently
// used end of the store.
func (c *Cache) Lookup(hc models.HardConstraints) (models.Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := Hash(hc)
	entries := c.load()
	for i, entry := range entries {
		if entry.ConstraintHash == hash {
			entry.LastAccess = c.now()
			entries = append(append(entries[:i:i], entries[i+1:]...), entry)
			c.save(entries)
			return entry.Output, true
		}
	}
	return models.Output{}, false
}

// Store writes an output under its constraint set's hash. Idempotent: an
// existing entry keeps its CachedAt, gets the new output and LastAccess, and
// moves to the most-recently-used end; otherwise a new entry is appended.
func (c *Cache) Store(hc models.HardConstraints, output models.Output) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := Hash(hc)
	normalized := Normalize(hc)
	now := c.now()

	entries := c.load()
	for i, entry := range entries {
		if entry.ConstraintHash == hash {
			entry.Output = output
			entry.HardConstraints = normalized
			entry.LastAccess = now
			entries = append(append(entries[:i:i], entries[i+1:]...), entry)
			c.save(entries)
			return
		}
	}

	entries = append(entries, Entry{
		ConstraintHash:  hash,
		HardConstraints: normalized,
		Output:          output,
		CachedAt:        now,
		LastAccess:      now,
	})
	c.save(entries)
}

// History returns all entries in access order, newest at the end
func (c *Cache) History() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.load()
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.save([]Entry{})
}

// load reads the backing file. A missing file is an empty cache; an unreadable
// or malformed file is treated as empty too (fail open), but reported.
func (c *Cache) load() []Entry {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("cache file unreadable, treating as empty")
			metrics.CacheCorruptions.Inc()
		}
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("cache file malformed, treating as empty")
		metrics.CacheCorruptions.Inc()
		return []Entry{}
	}
	return entries
}

func (c *Cache) save(entries []Entry) {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.log.Error().Err(err).Str("path", c.path).Msg("could not create cache directory")
			return
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		c.log.Error().Err(err).Msg("could not encode cache")
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.log.Error().Err(err).Str("path", c.path).Msg("could not write cache file")
	}
}
