// Package session keeps the per-browser UI state: current screen, review
// filter and search, album position, open memo editors and the last map center.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"limstreat/internal/models"
)

const CookieName = "limstreat_session"

type Screen string

const (
	ScreenMap     Screen = "map"
	ScreenReviews Screen = "reviews"
	ScreenAlbum   Screen = "album"
	ScreenStats   Screen = "stats"
)

// State is the UI state of one browser.
type State struct {
	Screen     Screen
	Filter     models.Filter
	Query      string
	AlbumDate  string
	AlbumIndex int
	// EditingMemo holds the bookmark ids whose memo editor is open.
	EditingMemo map[string]bool
	Center      *models.Coordinates
	Flashes     []Flash
}

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind FlashKind
	Text string
}

func (s *State) AddFlash(kind FlashKind, text string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Text: text})
}

func (s State) clone() State {
	edits := make(map[string]bool, len(s.EditingMemo))
	for id, v := range s.EditingMemo {
		edits[id] = v
	}
	s.EditingMemo = edits
	if s.Center != nil {
		c := *s.Center
		s.Center = &c
	}
	s.Flashes = append([]Flash(nil), s.Flashes...)
	return s
}

// NextPhoto advances the album position, wrapping after the last of n photos.
func (s *State) NextPhoto(n int) {
	if n == 0 {
		s.AlbumIndex = 0
		return
	}
	s.AlbumIndex = (s.AlbumIndex + 1) % n
}

// PrevPhoto moves back one photo, wrapping before the first.
func (s *State) PrevPhoto(n int) {
	if n == 0 {
		s.AlbumIndex = 0
		return
	}
	s.AlbumIndex = ((s.AlbumIndex-1)%n + n) % n
}

// SetAlbumDate switches the album to date and rewinds to its first photo.
func (s *State) SetAlbumDate(date string) {
	if date != s.AlbumDate {
		s.AlbumDate = date
		s.AlbumIndex = 0
	}
}

// DefaultIdleTimeout is how long an untouched session is kept.
const DefaultIdleTimeout = 24 * time.Hour

// Manager keeps states in memory, keyed by the session cookie token.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*State
	seen   map[string]time.Time
	idle   time.Duration
	now    func() time.Time
}

type Option func(*Manager)

// WithIdleTimeout drops sessions that were not used for longer than d.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idle = d
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		states: make(map[string]*State),
		seen:   make(map[string]time.Time),
		idle:   DefaultIdleTimeout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) newState() *State {
	return &State{
		Screen:      ScreenMap,
		Filter:      models.FilterAll,
		AlbumDate:   m.now().Format(models.DateLayout),
		EditingMemo: make(map[string]bool),
	}
}

// Create starts a fresh session and returns its token. Idle sessions are
// dropped on the way.
func (m *Manager) Create() string {
	token := uuid.New().String()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.prune(now)
	m.states[token] = m.newState()
	m.seen[token] = now
	return token
}

// Touch reports whether token is a live session and marks it as used.
func (m *Manager) Touch(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[token]; !ok {
		return false
	}
	m.seen[token] = m.now()
	return true
}

func (m *Manager) prune(now time.Time) {
	for token, last := range m.seen {
		if now.Sub(last) > m.idle {
			delete(m.seen, token)
			delete(m.states, token)
		}
	}
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Load returns a copy of the state attached to ctx. Unknown sessions get the
// default state.
func (m *Manager) Load(ctx context.Context) State {
	token := TokenFrom(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[token]; ok {
		return st.clone()
	}
	return m.newState().clone()
}

// TakeFlashes returns and clears the pending messages of the session in ctx.
func (m *Manager) TakeFlashes(ctx context.Context) []Flash {
	var out []Flash
	m.Update(ctx, func(s *State) {
		out = s.Flashes
		s.Flashes = nil
	})
	return out
}

// Update applies fn to the state attached to ctx under the lock and returns
// the result.
func (m *Manager) Update(ctx context.Context, fn func(*State)) State {
	token := TokenFrom(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[token]
	if !ok {
		st = m.newState()
		if token != "" {
			m.states[token] = st
		}
	}
	if token != "" {
		m.seen[token] = m.now()
	}
	fn(st)
	return st.clone()
}

type contextKey struct{}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(contextKey{}).(string)
	return token
}

// TokenFromRequest reads the session cookie, if any.
func TokenFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Cookie builds the session cookie for token.
func Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
