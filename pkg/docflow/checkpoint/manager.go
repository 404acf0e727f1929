package checkpoint

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/observability"
)

// DefaultTTL is the default session lifetime.
const DefaultTTL = time.Hour

// SessionInfo describes what has been generated for a session.
// It is used for reuse decisions and observability only.
type SessionInfo struct {
	CreatedAt        time.Time            `json:"created_at"`
	OutputsGenerated []docflow.OutputType `json:"outputs_generated"`
	LastGenerated    docflow.OutputType   `json:"last_generated,omitempty"`
	LastGeneratedAt  time.Time            `json:"last_generated_at,omitempty"`
}

// Manager couples a Store with per-session metadata.
//
// A Manager is built once at process start and shared by handle. All methods
// are safe for concurrent use.
type Manager struct {
	store   Store
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*SessionInfo

	sweepInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records checkpoint operations.
func WithMetrics(metrics observability.MetricsRecorder) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithTTL sets the session lifetime used by the background sweeper.
// Default: DefaultTTL.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSweepInterval starts a background sweeper that calls CleanupExpired
// with the TTL every interval. The sweeper stops on Close.
func WithSweepInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.sweepInterval = interval
		}
	}
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		ttl:      DefaultTTL,
		now:      time.Now,
		sessions: make(map[string]*SessionInfo),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sweepInterval > 0 {
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.sweepLoop()
	}
	return m
}

// Load returns the snapshot for (sessionID, ns). Backend failures are logged
// and reported as a miss.
func (m *Manager) Load(ctx context.Context, sessionID, ns string) (*Snapshot, bool) {
	snap, err := m.store.Get(ctx, sessionID, ns)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			observability.LogCheckpointError(m.logger, sessionID, "load", err)
		}
		m.metrics.RecordCheckpoint(ctx, "load", false, 0)
		return nil, false
	}
	m.metrics.RecordCheckpoint(ctx, "load", true, int64(len(snap.RawContent)))
	return snap, true
}

// Save snapshots the content fields of s under (sessionID, ns).
func (m *Manager) Save(ctx context.Context, sessionID, ns string, s docflow.State) error {
	snap := FromState(s)
	if err := m.store.Put(ctx, sessionID, ns, snap); err != nil {
		observability.LogCheckpointError(m.logger, sessionID, "save", err)
		return err
	}
	m.touch(sessionID)
	observability.LogCheckpoint(m.logger, sessionID, ns, len(snap.RawContent))
	m.metrics.RecordCheckpoint(ctx, "save", true, int64(len(snap.RawContent)))
	return nil
}

// Has reports whether any snapshot exists for sessionID.
func (m *Manager) Has(ctx context.Context, sessionID string) bool {
	ok, err := m.store.Has(ctx, sessionID)
	if err != nil {
		observability.LogCheckpointError(m.logger, sessionID, "has", err)
		return false
	}
	return ok
}

// RecordOutput notes that outputType was generated for sessionID.
func (m *Manager) RecordOutput(sessionID string, outputType docflow.OutputType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.sessionLocked(sessionID)
	if !slices.Contains(info.OutputsGenerated, outputType) {
		info.OutputsGenerated = append(info.OutputsGenerated, outputType)
	}
	info.LastGenerated = outputType
	info.LastGeneratedAt = m.now()
}

// Session returns a copy of the metadata for sessionID.
func (m *Manager) Session(sessionID string) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[sessionID]
	if !ok {
		return SessionInfo{}, false
	}
	out := *info
	out.OutputsGenerated = slices.Clone(info.OutputsGenerated)
	return out, true
}

// CleanupExpired drops the metadata of sessions created more than maxAge ago
// and sweeps the backend. It returns the number of sessions dropped.
func (m *Manager) CleanupExpired(ctx context.Context, maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	expired := 0
	for id, info := range m.sessions {
		if info.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			expired++
		}
	}
	m.mu.Unlock()

	swept, err := m.store.Sweep(ctx, maxAge)
	if err != nil {
		observability.LogCheckpointError(m.logger, "", "sweep", err)
	}
	if expired > 0 || swept > 0 {
		m.logger.Info("cleaned up expired sessions",
			slog.Int("sessions", expired),
			slog.Int("snapshots", swept),
		)
	}
	return expired
}

// Close stops the sweeper and closes the store.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.stop != nil {
			close(m.stop)
			<-m.done
		}
		err = m.store.Close()
	})
	return err
}

func (m *Manager) sweepLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.CleanupExpired(context.Background(), m.ttl)
		}
	}
}

// touch ensures metadata exists for sessionID.
func (m *Manager) touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionLocked(sessionID)
}

func (m *Manager) sessionLocked(sessionID string) *SessionInfo {
	info, ok := m.sessions[sessionID]
	if !ok {
		info = &SessionInfo{CreatedAt: m.now()}
		m.sessions[sessionID] = info
	}
	return info
}
