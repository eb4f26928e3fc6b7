package usecase

import (
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imagetrace/backend/internal/domain"
)

// SessionView is the complete state the view layer renders
type SessionView struct {
	ID        string               `json:"id"`
	Options   domain.FilterOptions `json:"options"`
	Filtered  domain.FilteredData  `json:"filtered"`
	Dashboard domain.DashboardData `json:"dashboard"`
	Visible   []domain.PageMatch   `json:"visible"`
	HasMore   bool                 `json:"hasMore"`
	Entities  []domain.WebEntity   `json:"entities"`
	Saved     []string             `json:"saved"`
	Reviewed  []string             `json:"reviewed"`
}

// SessionState is the persistable per-user state of a session
type SessionState struct {
	Options  domain.FilterOptions `json:"options"`
	Saved    []string             `json:"saved"`
	Reviewed []string             `json:"reviewed"`
}

// Session holds one analysis: the enriched result, the live filter options and
// the derived data, recomputed only when the result or the options change.
type Session struct {
	id       string
	pipeline *Pipeline

	// image the result was detected for, kept so the analysis can be refreshed
	source   domain.ImageSource
	cacheKey string

	mu        sync.Mutex
	result    *domain.MatchResult
	options   domain.FilterOptions
	filtered  *domain.FilteredData
	dashboard *domain.DashboardData
	pager     *Paginator[domain.PageMatch]
	trigger   *ProximityTrigger[domain.PageMatch]
	saved     map[string]struct{}
	reviewed  map[string]struct{}
}

// NewSession creates a session over an already enriched result
func NewSession(pipeline *Pipeline, result *domain.MatchResult) *Session {
	pager := NewPaginator[domain.PageMatch](pipeline.PageSize())
	return &Session{
		id:       uuid.NewString(),
		pipeline: pipeline,
		result:   result,
		options:  domain.DefaultFilterOptions(),
		pager:    pager,
		trigger:  NewProximityTrigger(pager),
		saved:    make(map[string]struct{}),
		reviewed: make(map[string]struct{}),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Options returns the current filter options
func (s *Session) Options() domain.FilterOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// UpdateOptions merges a partial update into the current options
func (s *Session) UpdateOptions(patch domain.FilterOptionsPatch) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setOptions(s.options.Merge(patch))
	return s.view()
}

// ClearOptions resets the options to their defaults
func (s *Session) ClearOptions() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setOptions(domain.DefaultFilterOptions())
	return s.view()
}

// SetResult replaces the analysed result, e.g. after a re-run of the same image
func (s *Session) SetResult(result *domain.MatchResult) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.invalidate()
	return s.view()
}

// View returns the current view, computing derived data if stale
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Filtered returns the filtered and sorted buckets for the current options
func (s *Session) Filtered() domain.FilteredData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filteredLocked()
}

// Dashboard returns the summary statistics for the current options
func (s *Session) Dashboard() domain.DashboardData {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derive()
	return *s.dashboard
}

// LoadMore reveals the next page of results and reports whether anything was added
func (s *Session) LoadMore() (SessionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derive()
	loaded := s.pager.HasMore()
	s.pager.LoadMore()
	return s.view(), loaded
}

// Signal forwards a sentinel visibility change to the proximity trigger
func (s *Session) Signal(nearViewport bool) (SessionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derive()
	loaded := s.trigger.Signal(nearViewport)
	return s.view(), loaded
}

// Groups returns the filtered pages grouped per the current groupBy option
func (s *Session) Groups() []domain.PageGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derive()
	return s.pipeline.Group(*s.filtered, s.options.GroupBy)
}

// WriteCSV exports the current filtered data
func (s *Session) WriteCSV(w io.Writer) error {
	s.mu.Lock()
	filtered := s.filteredLocked()
	s.mu.Unlock()
	return WriteCSV(w, filtered)
}

// ToggleSaved flips the saved flag of url and returns the new state
func (s *Session) ToggleSaved(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saved[url]; ok {
		delete(s.saved, url)
		return false
	}
	s.saved[url] = struct{}{}
	return true
}

// MarkReviewed records that url has been looked at
func (s *Session) MarkReviewed(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewed[url] = struct{}{}
}

// State exports the persistable state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		Options:  s.options,
		Saved:    sortedKeys(s.saved),
		Reviewed: sortedKeys(s.reviewed),
	}
}

// RestoreState imports previously exported state
func (s *Session) RestoreState(state SessionState) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = make(map[string]struct{}, len(state.Saved))
	for _, u := range state.Saved {
		s.saved[u] = struct{}{}
	}
	s.reviewed = make(map[string]struct{}, len(state.Reviewed))
	for _, u := range state.Reviewed {
		s.reviewed[u] = struct{}{}
	}
	s.setOptions(domain.DefaultFilterOptions().Merge(patchFromOptions(state.Options)))
	return s.view()
}

func (s *Session) setOptions(opts domain.FilterOptions) {
	if opts.Equal(s.options) {
		return
	}
	s.options = opts
	s.invalidate()
}

func (s *Session) invalidate() {
	s.filtered = nil
	s.dashboard = nil
}

// derive recomputes stale derived data; the caller holds mu
func (s *Session) derive() {
	if s.filtered != nil {
		return
	}
	filtered := s.pipeline.Filter(s.result, s.options)
	dashboard := s.pipeline.Summarize(filtered)
	s.filtered = &filtered
	s.dashboard = &dashboard
	s.pager.Reset(filtered.AllPages)
}

func (s *Session) filteredLocked() domain.FilteredData {
	s.derive()
	return *s.filtered
}

func (s *Session) view() SessionView {
	s.derive()
	entities := []domain.WebEntity{}
	if s.result != nil {
		entities = append(entities, s.result.WebEntities...)
	}
	return SessionView{
		ID:        s.id,
		Options:   s.options,
		Filtered:  *s.filtered,
		Dashboard: *s.dashboard,
		Visible:   slices.Clone(s.pager.Visible()),
		HasMore:   s.pager.HasMore(),
		Entities:  entities,
		Saved:     sortedKeys(s.saved),
		Reviewed:  sortedKeys(s.reviewed),
	}
}

func patchFromOptions(o domain.FilterOptions) domain.FilterOptionsPatch {
	return domain.FilterOptionsPatch{
		SortBy:        &o.SortBy,
		SortOrder:     &o.SortOrder,
		MinConfidence: &o.MinConfidence,
		ShowSpam:      &o.ShowSpam,
		DisplayMode:   &o.DisplayMode,
		GroupBy:       &o.GroupBy,
		ActiveFilters: o.ActiveFilters,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SessionStore keeps sessions in memory and evicts idle ones after ttl
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*storedSession
	ttl      time.Duration
	now      func() time.Time
}

type storedSession struct {
	session    *Session
	lastAccess time.Time
}

// NewSessionStore creates a store; now may be nil to use time.Now
func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]*storedSession),
		ttl:      ttl,
		now:      now,
	}
}

// Put stores a session and evicts any expired ones
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	st.evictLocked(now)
	st.sessions[s.ID()] = &storedSession{session: s, lastAccess: now}
}

// Get returns a live session and refreshes its idle timer
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	entry, ok := st.sessions[id]
	if !ok || now.Sub(entry.lastAccess) > st.ttl {
		delete(st.sessions, id)
		return nil, domain.ErrSessionNotFound
	}
	entry.lastAccess = now
	return entry.session, nil
}

// Len returns the number of stored sessions, expired ones included until the next Put
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) evictLocked(now time.Time) {
	for id, entry := range st.sessions {
		if now.Sub(entry.lastAccess) > st.ttl {
			delete(st.sessions, id)
		}
	}
}
