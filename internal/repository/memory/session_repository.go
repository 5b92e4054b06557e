package memory

import (
	"sync"
	"time"

	"inventory-assistant-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps dialogue sessions in process memory. Sessions never
// expire on their own; they end on completion, cancel or restart.
type SessionRepository struct {
	cache *cache.Cache
	locks sync.Map // userID -> *sync.Mutex
	now   func() time.Time
}

var _ store.Store = (*SessionRepository)(nil)

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		cache: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
}

func (r *SessionRepository) lock(userID string) func() {
	m, _ := r.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *SessionRepository) load(userID string) (*store.Session, bool) {
	if x, found := r.cache.Get(userID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) save(s *store.Session) {
	r.cache.Set(s.UserID, s, cache.NoExpiration)
}

func (r *SessionRepository) Get(userID string) (*store.Session, bool) {
	s, ok := r.load(userID)
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (r *SessionRepository) Start(userID, chatID string, ctx store.WorkflowContext, state store.State) (*store.Session, *store.Session) {
	defer r.lock(userID)()

	prev, _ := r.load(userID)
	now := r.now()
	s := &store.Session{
		UserID:    userID,
		ChatID:    chatID,
		Context:   ctx.Clone(),
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// pending input belongs to the user, not to the replaced workflow
	if prev != nil {
		s.Pending = prev.Pending.Clone()
	}
	r.save(s)
	return s.Clone(), prev.Clone()
}

func (r *SessionRepository) Update(userID string, state store.State, patch func(*store.Session)) (*store.Session, error) {
	defer r.lock(userID)()

	cur, ok := r.load(userID)
	if !ok || !cur.Active() {
		return nil, store.ErrNoSession
	}
	next := cur.Clone()
	next.State = state
	if patch != nil {
		patch(next)
	}
	next.UpdatedAt = r.now()
	r.save(next)
	return next.Clone(), nil
}

func (r *SessionRepository) Park(userID, chatID string, pending *store.PendingInput) *store.Session {
	defer r.lock(userID)()

	if pending == nil {
		r.cache.Delete(userID)
		return nil
	}
	now := r.now()
	s := &store.Session{
		UserID:    userID,
		ChatID:    chatID,
		Pending:   pending.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cur, ok := r.load(userID); ok {
		s.CreatedAt = cur.CreatedAt
	}
	r.save(s)
	return s.Clone()
}

func (r *SessionRepository) SetPending(userID string, pending *store.PendingInput) (*store.Session, error) {
	defer r.lock(userID)()

	cur, ok := r.load(userID)
	if !ok {
		return nil, store.ErrNoSession
	}
	next := cur.Clone()
	next.Pending = pending.Clone()
	next.UpdatedAt = r.now()
	if !next.Active() && next.Pending == nil {
		r.cache.Delete(userID)
		return nil, nil
	}
	r.save(next)
	return next.Clone(), nil
}

func (r *SessionRepository) Clear(userID string) *store.Session {
	defer r.lock(userID)()

	prev, _ := r.load(userID)
	r.cache.Delete(userID)
	return prev.Clone()
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
