package fixtures

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sumitdasdk/DRX-pro/internal/errs"
	"github.com/sumitdasdk/DRX-pro/internal/obs"
	"github.com/sumitdasdk/DRX-pro/internal/s3client"
)

// EnvTestData names the environment variable that points at the store.
const EnvTestData = "RX_TESTDATA"

// Source yields the raw bytes of a test data store.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads the store from a local path.
type FileSource string

func (f FileSource) Name() string { return string(f) }

func (f FileSource) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, errs.Wrap(errs.ConfigurationError, "read test data store", err)
	}
	return data, nil
}

// S3Source reads the store from an object in S3.
type S3Source struct {
	Client *s3client.Client
	Key    string
}

func (s S3Source) Name() string { return s.Client.ObjectURL(s.Key) }

func (s S3Source) Read(ctx context.Context) ([]byte, error) {
	data, err := s.Client.GetObject(ctx, s.Key)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigurationError, "fetch test data store "+s.Name(), err)
	}
	return data, nil
}

// OpenSource resolves a location into a Source. s3:// URIs require client.
func OpenSource(location string, client *s3client.Client) (Source, error) {
	if bucket, key, ok := s3client.ParseURI(location); ok {
		if client == nil {
			return nil, errs.New(errs.ConfigurationError, fmt.Sprintf("%s needs S3 settings (AWS_ENDPOINT_URL_S3 / AWS_REGION)", location))
		}
		return S3Source{Client: client.ForBucket(bucket), Key: key}, nil
	}
	if location == "" {
		location = DefaultPath()
	}
	return FileSource(location), nil
}

// Loader parses its Source at most once successfully and serves the cached Store.
// Failed loads are not cached, so a later call may retry.
type Loader struct {
	src   Source
	mu    sync.Mutex
	store *Store
	reads int
}

// NewLoader creates a loader for src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src}
}

// Load returns the cached store, reading and parsing the source on first use.
func (l *Loader) Load(ctx context.Context) (*Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, nil
	}

	l.reads++
	data, err := l.src.Read(ctx)
	if err != nil {
		return nil, err
	}
	store, err := Parse(l.src.Name(), data)
	if err != nil {
		return nil, err
	}
	obs.From(ctx).Info("test data store loaded",
		"source", l.src.Name(),
		"patient_fixtures", len(store.Patient),
		"prescription_fixtures", len(store.Prescription),
	)
	l.store = store
	return store, nil
}

// Reads reports how many times the source has been read.
func (l *Loader) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// Get loads the store if needed and returns the fixture for category/id.
func (l *Loader) Get(ctx context.Context, category Category, id string) (Fixture, error) {
	store, err := l.Load(ctx)
	if err != nil {
		return Fixture{}, err
	}
	return store.Get(category, id)
}

var (
	defaultMu     sync.Mutex
	defaultLoader *Loader
)

// Default returns the process-wide loader for RX_TESTDATA (or the bundled store).
func Default() *Loader {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLoader == nil {
		defaultLoader = NewLoader(FileSource(envOrDefaultPath()))
	}
	return defaultLoader
}

// DefaultPath is the store bundled with the repository.
func DefaultPath() string {
	return filepath.Join(repositoryRoot(), "test-data", "TestData.json")
}

func envOrDefaultPath() string {
	if p := os.Getenv(EnvTestData); p != "" {
		return p
	}
	return DefaultPath()
}

func repositoryRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot resolve repository root in internal/fixtures")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}
