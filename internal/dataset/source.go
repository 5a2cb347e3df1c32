package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/lamim/segmentiq/internal/logging"
)

// Source owns the table and model for the lifetime of the process. The table
// is replaced only when the file on disk changes; every replacement bumps the
// generation so derived views know to recompute.
type Source struct {
	path      string
	modelPath string
	log       logging.Logger
	wrap      func(r io.Reader, size int64) io.Reader
	onReload  func(rows int, err error)

	mu         sync.Mutex
	table      *Table
	model      *Model
	modTime    time.Time
	size       int64
	generation uint64
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for reload events.
func WithLogger(l logging.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReaderHook wraps the file reader on every load, e.g. to draw progress.
func WithReaderHook(fn func(r io.Reader, size int64) io.Reader) Option {
	return func(s *Source) { s.wrap = fn }
}

// WithReloadHook is called after every load attempt with the row count or error.
func WithReloadHook(fn func(rows int, err error)) Option {
	return func(s *Source) { s.onReload = fn }
}

// Open loads the dataset and the optional model. Any dataset error is returned;
// a missing model is tolerated.
func Open(path, modelPath string, opts ...Option) (*Source, error) {
	s := &Source{
		path:      path,
		modelPath: modelPath,
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dataset unavailable: %w", err)
	}
	table, err := s.load(info.Size())
	if err != nil {
		return nil, err
	}

	model, err := LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if model == nil {
		s.log.Info(ctx, "model artifact unavailable", logging.String("path", modelPath))
	} else {
		s.log.Info(ctx, "model artifact loaded",
			logging.String("path", modelPath),
			logging.Any("size", model.Size),
			logging.String("sha256", model.Digest))
	}

	s.table = table
	s.model = model
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.generation = 1
	return s, nil
}

// Path returns the dataset file path.
func (s *Source) Path() string { return s.path }

// Model returns the loaded model artifact or nil when unavailable.
func (s *Source) Model() *Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Current returns the table and its generation, reloading first if the file
// changed on disk. A failed reload keeps serving the previous table.
func (s *Source) Current(ctx context.Context) (*Table, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		s.log.Warn(ctx, "dataset stat failed, serving previous table", logging.Err(err))
		return s.table, s.generation
	}
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.table, s.generation
	}

	table, err := s.load(info.Size())
	if err != nil {
		s.log.Warn(ctx, "dataset reload failed, serving previous table", logging.Err(err))
		// Remember the broken version so it is not re-parsed on every request.
		s.modTime = info.ModTime()
		s.size = info.Size()
		return s.table, s.generation
	}

	s.table = table
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.generation++
	s.log.Info(ctx, "dataset reloaded",
		logging.Int("rows", table.Len()),
		logging.Uint64("generation", s.generation))
	return s.table, s.generation
}

func (s *Source) load(size int64) (*Table, error) {
	// #nosec G304 - dataset path comes from operator configuration
	f, err := os.Open(s.path)
	if err != nil {
		s.report(0, err)
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var r io.Reader = f
	if s.wrap != nil {
		r = s.wrap(f, size)
	}
	table, err := Read(r)
	if err != nil {
		s.report(0, err)
		return nil, fmt.Errorf("failed to parse dataset %s: %w", s.path, err)
	}
	s.report(table.Len(), nil)
	return table, nil
}

func (s *Source) report(rows int, err error) {
	if s.onReload != nil {
		s.onReload(rows, err)
	}
}
