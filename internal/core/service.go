package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// DefaultTimeout is the maximum duration of an import when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Minute

// DefaultMaxFailedRecords caps the failures kept in an ImportResult. All
// failures are still counted and logged.
const DefaultMaxFailedRecords = 1000

// FinishedRetention is how long a finished import stays visible to
// SubscribeProgress and Progress.
var FinishedRetention = 5 * time.Minute

// ErrImportNotFound is returned for an import ID that is neither running
// nor recently finished.
var ErrImportNotFound = errors.New("import not found")

// Options configures a Service.
type Options struct {
	CSV              csvstream.Config
	Timeout          time.Duration
	MaxConcurrent    int
	MaxWait          time.Duration
	MaxFailedRecords int
	DefaultTD        string
	Lookups          *Lookups
	Hasher           Hasher
	Metrics          *Metrics
}

// Service runs imports against a database.
type Service struct {
	db      DB
	opts    Options
	limiter *ImportLimiter

	mu      sync.RWMutex
	imports map[string]*activeImport
}

type activeImport struct {
	id      string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	progress  ImportProgress
	listeners []chan ImportProgress
}

// NewService creates a Service. Zero Options fields select defaults.
func NewService(db DB, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxFailedRecords <= 0 {
		opts.MaxFailedRecords = DefaultMaxFailedRecords
	}
	if opts.DefaultTD == "" {
		opts.DefaultTD = "pensando"
	}
	if opts.Lookups == nil {
		opts.Lookups = NewLookups(nil, nil, nil)
	}
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{}
	}

	return &Service{
		db:      db,
		opts:    opts,
		limiter: NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		imports: make(map[string]*activeImport),
	}
}

// Kinds returns the writer definitions the service can import.
func (s *Service) Kinds() []WriterDefinition {
	return Writers()
}

// Ping checks the database connection when the pool supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import has finished or ctx
// ends. Used for graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForImports(ctx)
}

// track registers a new import under id.
func (s *Service) track(id string, kind RecordKind, fileName string, size int64, cancel context.CancelFunc) (*activeImport, error) {
	imp := &activeImport{
		id:      id,
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		progress: ImportProgress{
			ImportID:   id,
			Kind:       kind,
			FileName:   fileName,
			Phase:      PhaseStarting,
			BytesTotal: size,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.imports[id]; exists {
		return nil, fmt.Errorf("import already exists: %s", id)
	}
	s.imports[id] = imp
	return imp, nil
}

func (s *Service) lookup(id string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return imp, nil
}

// cleanup removes a finished import after a delay, giving late
// subscribers a chance to see the final state.
func (s *Service) cleanup(id string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}

// SubscribeProgress returns a channel that receives progress updates.
// The current state is sent immediately; the channel is closed when the
// import finishes.
func (s *Service) SubscribeProgress(id string) (<-chan ImportProgress, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	imp.mu.Lock()
	defer imp.mu.Unlock()
	ch <- imp.progress
	if imp.progress.Phase.Done() {
		close(ch)
		return ch, nil
	}
	imp.listeners = append(imp.listeners, ch)
	return ch, nil
}

// Progress returns the current progress of an import without blocking.
func (s *Service) Progress(id string) (ImportProgress, error) {
	imp, err := s.lookup(id)
	if err != nil {
		return ImportProgress{}, err
	}
	return imp.snapshot(), nil
}

// CancelImport cancels a running import. Its transaction is rolled back.
func (s *Service) CancelImport(id string) error {
	imp, err := s.lookup(id)
	if err != nil {
		return err
	}
	imp.cancel()
	return nil
}

// ActiveImports returns the progress of every running import, oldest first.
func (s *Service) ActiveImports() []ImportProgress {
	s.mu.RLock()
	imps := make([]*activeImport, 0, len(s.imports))
	for _, imp := range s.imports {
		imps = append(imps, imp)
	}
	s.mu.RUnlock()

	sort.Slice(imps, func(i, j int) bool {
		return imps[i].started.Before(imps[j].started)
	})

	out := make([]ImportProgress, 0, len(imps))
	for _, imp := range imps {
		if p := imp.snapshot(); !p.Phase.Done() {
			out = append(out, p)
		}
	}
	return out
}

func (a *activeImport) snapshot() ImportProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// update applies fn to the progress and, if notify is set, broadcasts it.
func (a *activeImport) update(notify bool, fn func(*ImportProgress)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.progress)
	if notify {
		a.broadcastLocked()
	}
}

// broadcastLocked sends the progress to every listener. A listener that
// is behind loses its oldest update rather than blocking the import.
func (a *activeImport) broadcastLocked() {
	for _, ch := range a.listeners {
		select {
		case ch <- a.progress:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- a.progress:
		default:
		}
	}
}

// finish publishes the terminal progress and closes every listener.
func (a *activeImport) finish(fn func(*ImportProgress)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.progress)
	a.broadcastLocked()
	for _, ch := range a.listeners {
		close(ch)
	}
	a.listeners = nil
	close(a.done)
}
