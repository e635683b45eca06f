package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"hooksmith/internal/hookerr"
	"hooksmith/internal/logging"
	"hooksmith/internal/observability"
)

const defaultCacheSize = 64

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Loader reads configuration documents and caches them keyed by resolved
// path. A cached entry stays valid while the file's content hash is
// unchanged, so repeated loads of an unchanged file never re-parse.
type Loader struct {
	mu         sync.Mutex
	cache      *lru.Cache[string, *Document]
	env        EnvLookup
	readFile   func(string) ([]byte, error)
	now        func() time.Time
	logger     logging.Logger
	metrics    *observability.Metrics
	parseCount atomic.Int64
}

// Option customises loader behaviour.
type Option func(*Loader)

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(l *Loader) { l.env = lookup }
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(l *Loader) { l.readFile = reader }
}

// WithLogger attaches a logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(l *Loader) { l.metrics = metrics }
}

// WithClock overrides the load timestamp source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// NewLoader constructs a Loader with an LRU document cache.
func NewLoader(opts ...Option) *Loader {
	cache, _ := lru.New[string, *Document](defaultCacheSize)
	loader := &Loader{
		cache:    cache,
		env:      DefaultEnvLookup,
		readFile: os.ReadFile,
		now:      time.Now,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

// ParseCount returns how many documents have actually been parsed, as
// opposed to served from cache.
func (l *Loader) ParseCount() int64 {
	return l.parseCount.Load()
}

// Load returns the document at path, from cache when its content is
// unchanged. Malformed syntax, a missing file, an include cycle or an
// unresolved required environment token yield a ConfigError.
func (l *Loader) Load(path string) (*Document, error) {
	return l.load(path, nil, false)
}

// LoadWithDefault behaves like Load but returns a document built from def
// when the file does not exist.
func (l *Loader) LoadWithDefault(path string, def map[string]any) (*Document, error) {
	return l.load(path, def, false)
}

// Reload bypasses the cache and re-parses the document at path.
func (l *Loader) Reload(path string) (*Document, error) {
	return l.load(path, nil, true)
}

func (l *Loader) load(path string, def map[string]any, force bool) (*Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, hookerr.NewConfigError(path, err)
	}

	data, err := l.readFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && def != nil {
			return &Document{Path: resolved, Data: def, LoadedAt: l.now()}, nil
		}
		return nil, hookerr.NewConfigError(resolved, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if !force {
		if cached, ok := l.cache.Get(resolved); ok && cached.Hash == hash {
			l.metrics.CacheHit()
			return cached, nil
		}
	}
	l.metrics.CacheMiss()

	mapping, err := l.parse(resolved, data, map[string]bool{resolved: true})
	if err != nil {
		return nil, err
	}

	doc := &Document{Path: resolved, Data: mapping, Hash: hash, LoadedAt: l.now()}
	l.cache.Add(resolved, doc)
	l.logger.Debug("loaded config %s (hash %.12s)", resolved, hash)
	return doc, nil
}

// parse unmarshals one document, resolves its include chain and interpolates
// environment tokens. visiting guards against include cycles.
func (l *Loader) parse(path string, data []byte, visiting map[string]bool) (map[string]any, error) {
	l.parseCount.Add(1)

	var mapping map[string]any
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, hookerr.NewConfigError(path, err)
	}
	if mapping == nil {
		mapping = map[string]any{}
	}

	if target, ok := mapping[IncludeKey]; ok {
		includePath, ok := target.(string)
		if !ok {
			return nil, hookerr.Configf(path, "%s must be a string, got %T", IncludeKey, target)
		}
		delete(mapping, IncludeKey)

		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(filepath.Dir(path), includePath)
		}
		includePath = filepath.Clean(includePath)
		if visiting[includePath] {
			return nil, hookerr.Configf(path, "include cycle through %s", includePath)
		}
		visiting[includePath] = true

		includeData, err := l.readFile(includePath)
		if err != nil {
			return nil, hookerr.NewConfigError(includePath, fmt.Errorf("include target: %w", err))
		}
		base, err := l.parse(includePath, includeData, visiting)
		if err != nil {
			return nil, err
		}
		// Current document wins over the included base.
		mapping = mergeUnder(base, mapping)
	}

	return interpolate(path, mapping, l.env)
}

// LoadDir loads every *.yaml / *.yml file in dir in lexical order and merges
// them into a single document, later files taking precedence. The merged
// document is not cached; its constituent files are.
func (l *Loader) LoadDir(dir string) (*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, hookerr.NewConfigError(dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	merged := map[string]any{}
	for _, name := range names {
		doc, err := l.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		merged = mergeUnder(merged, doc.Data)
	}
	return &Document{Path: dir, Data: merged, LoadedAt: l.now()}, nil
}
