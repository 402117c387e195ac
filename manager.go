package session

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Snapshot is what observers see: the Session at a point in time plus the
// loading flag. Loading is true during boot validation and while a login
// family exchange is replacing the whole Session.
type Snapshot struct {
	Session Session
	Loading bool
}

// Manager is the process-wide holder of the current Session. It is the
// single source of truth for guards and views; every transition goes through
// exactly one writer path (Boot, the login family, Merge, Clear) and all of
// them are serialized by the mutex, so last write wins in event-loop order.
type Manager struct {
	mu          sync.Mutex
	source      AccountSource
	store       Store
	logger      Logger
	current     Session
	loading     bool
	watchers    map[int]chan Snapshot
	nextWatcher int
}

// NewManager returns a Manager holding an anonymous Session with
// loading=true. It stays loading until Boot resolves.
func NewManager(source AccountSource, store Store) *Manager {
	return &Manager{
		source:   source,
		store:    store,
		logger:   defLogger{},
		current:  Anonymous(),
		loading:  true,
		watchers: map[int]chan Snapshot{},
	}
}

func (m *Manager) WithLogger(logger Logger) *Manager {
	m.logger = logger
	return m
}

// Current returns the Session and loading flag as of now.
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Session: m.current, Loading: m.loading}
}

func (m *Manager) IsAuthenticated() bool { return m.Current().Session.IsAuthenticated() }
func (m *Manager) IsAdmin() bool         { return m.Current().Session.IsAdmin() }
func (m *Manager) IsPremium() bool       { return m.Current().Session.IsPremium() }

// Watch registers an observer. The channel carries the latest Snapshot;
// intermediate states may be skipped when the observer lags, newest wins.
// The returned func unsubscribes and closes the channel.
func (m *Manager) Watch() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextWatcher
	m.nextWatcher++

	ch := make(chan Snapshot, 1)
	ch <- Snapshot{Session: m.current, Loading: m.loading}
	m.watchers[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ch, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
	}

	return ch, cancel
}

// Boot rehydrates the Session from the persisted credential. It is the only
// operation allowed to run before guards make their first real decision:
// they observe loading=true until it settles. An invalid or rejected
// credential settles anonymous instead of propagating as fatal; only
// transport surprises return an error, and even then the Manager has
// settled anonymous.
func (m *Manager) Boot(ctx context.Context) error {
	token, ok := m.store.Get()
	if !ok {
		m.settle(Anonymous())
		return nil
	}

	if TokenExpired(token, time.Now()) {
		m.logger.Info("persisted credential already expired, skipping validation")
		m.clearStore()
		m.settle(Anonymous())
		return nil
	}

	profile, err := m.source.FetchProfile(ctx)
	if err != nil {
		if IsUnauthorized(err) {
			m.logger.Info("persisted credential rejected by the API: %v", err)
			m.clearStore()
			m.settle(Anonymous())
			return nil
		}

		m.settle(Anonymous())
		return goerrors.Wrap(err, goerrors.CategoryInternal, "boot-time session validation failed")
	}

	m.settle(*profile)
	return nil
}

// Login replaces the Session wholesale on success. On failure the prior
// Session is untouched and the server's message is carried on the error.
func (m *Manager) Login(ctx context.Context, payload LoginPayload) (string, error) {
	m.beginExchange()

	result, err := m.source.Login(ctx, payload)
	if err != nil {
		m.endExchange()
		return "", err
	}

	if err := m.replace(result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Register validates locally, registers against the API and replaces the
// Session wholesale on success.
func (m *Manager) Register(ctx context.Context, payload RegisterPayload) (string, error) {
	m.beginExchange()

	result, err := m.source.Register(ctx, payload)
	if err != nil {
		m.endExchange()
		return "", err
	}

	if err := m.replace(result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// FederatedLogin runs the provider's interactive flow, exchanges the
// resulting identity proof for an app-issued token and replaces the Session.
// A user-cancelled flow returns ErrFlowCancelled untouched so the caller can
// stay silent.
func (m *Manager) FederatedLogin(ctx context.Context, provider IdentityProvider) (string, error) {
	proof, err := provider.IdentityProof(ctx)
	if err != nil {
		if IsFlowCancelled(err) {
			m.logger.Debug("federated sign-in with %s cancelled by the user", provider.Name())
			return "", err
		}
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "federated sign-in failed").
			WithMetadata(map[string]any{"provider": provider.Name()})
	}

	m.beginExchange()

	result, err := m.source.ExchangeIdentityProof(ctx, proof)
	if err != nil {
		m.endExchange()
		return "", err
	}

	if err := m.replace(result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Logout clears the Store and the Session. It never fails from the caller's
// perspective; a Store error is logged and the in-memory state is cleared
// regardless. No network call is involved.
func (m *Manager) Logout() {
	m.clearStore()
	m.clear()
}

// Invalidate is the clear path for an API-signalled credential failure
// (401 observed after boot). Same effect as Logout.
func (m *Manager) Invalidate() {
	m.logger.Info("session invalidated by the API")
	m.clearStore()
	m.clear()
}

// Merge reconciles a partial server response into the live Session without a
// re-authentication round trip. Server fields win; unspecified fields stay.
func (m *Manager) Merge(patch Session) {
	m.mu.Lock()
	m.current = m.current.Merge(patch)
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) beginExchange() {
	m.mu.Lock()
	m.loading = true
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) endExchange() {
	m.mu.Lock()
	m.loading = false
	m.notifyLocked()
	m.mu.Unlock()
}

// replace is the login-family writer path: persist the credential, swap the
// Session, drop loading. The credential is persisted first so the token and
// principal never disagree.
func (m *Manager) replace(result *AuthResult) error {
	if err := m.store.Set(result.Token); err != nil {
		m.endExchange()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist credential")
	}

	m.mu.Lock()
	m.current = result.Session
	m.loading = false
	m.notifyLocked()
	m.mu.Unlock()
	return nil
}

// settle is the boot writer path.
func (m *Manager) settle(sess Session) {
	m.mu.Lock()
	m.current = sess
	m.loading = false
	m.notifyLocked()
	m.mu.Unlock()
}

// clear is the logout/invalidate writer path.
func (m *Manager) clear() {
	m.mu.Lock()
	m.current = Anonymous()
	m.loading = false
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear credential store: %v", err)
	}
}

// notifyLocked pushes the current Snapshot to every watcher, replacing any
// undelivered older one. Callers hold the mutex.
func (m *Manager) notifyLocked() {
	snap := Snapshot{Session: m.current, Loading: m.loading}
	for _, ch := range m.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
