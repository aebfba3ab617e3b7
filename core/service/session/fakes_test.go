package session

import (
	"context"
	"sync"

	"github.com/kareemamged/rashadai-sub002/core/domain"
	"github.com/kareemamged/rashadai-sub002/core/port/out"
	"github.com/kareemamged/rashadai-sub002/pkg/apperr"
)

// fakeStore is an in-memory out.ProfileStore with switchable failures.
type fakeStore struct {
	mu        sync.Mutex
	profiles  map[string]*domain.UserProfile // by id
	passwords map[string]string              // email -> plaintext, test only

	fetchErr  error // GetByID / GetByEmail
	verifyErr error
	upsertErr error
	fieldsErr error

	upserts    int
	fieldCalls []map[string]any
	activities []string
	cleared    []string
	cancelled  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:  make(map[string]*domain.UserProfile),
		passwords: make(map[string]string),
	}
}

func (s *fakeStore) seed(p *domain.UserProfile, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p.Clone()
	s.passwords[domain.NormalizeEmail(p.Email)] = password
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.profiles[id].Clone(), nil
}

func (s *fakeStore) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	for _, p := range s.profiles {
		if p.Email == domain.NormalizeEmail(email) {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Upsert(ctx context.Context, p *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.profiles[p.ID] = p.Clone()
	return nil
}

func (s *fakeStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fieldsErr != nil {
		return s.fieldsErr
	}
	s.fieldCalls = append(s.fieldCalls, fields)
	return nil
}

func (s *fakeStore) VerifyPassword(ctx context.Context, email, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verifyErr != nil {
		return false, s.verifyErr
	}
	return s.passwords[domain.NormalizeEmail(email)] == password, nil
}

func (s *fakeStore) UpdatePassword(ctx context.Context, id, hash string) error {
	return nil
}

func (s *fakeStore) ClearBlock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, id)
	if p, ok := s.profiles[id]; ok {
		p.Status = domain.StatusActive
		p.BlockExpiresAt = nil
	}
	return nil
}

func (s *fakeStore) CancelDeletion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, id)
	if p, ok := s.profiles[id]; ok {
		p.Status = domain.StatusActive
		p.Deletion = nil
	}
	return nil
}

func (s *fakeStore) UploadAvatar(ctx context.Context, id string, data []byte, contentType string) (string, error) {
	return "https://cdn.example.test/avatars/" + id, nil
}

func (s *fakeStore) RecordActivity(ctx context.Context, userID, kind string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, kind)
	return nil
}

func (s *fakeStore) activityCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.activities {
		if k == kind {
			n++
		}
	}
	return n
}

// fakeGateway is a scriptable out.AuthGateway.
type fakeGateway struct {
	mu           sync.Mutex
	signInUser   *out.GatewayUser
	signInErr    error
	current      *out.GatewayUser
	currentErr   error
	currentCalls int
	signOuts     int
	listeners    []func(out.GatewayEvent)

	// currentGate, when set, blocks CurrentUser until released.
	currentGate chan struct{}
}

func (g *fakeGateway) SignInWithPassword(ctx context.Context, email, password string) (*out.GatewayUser, error) {
	if g.signInErr != nil {
		return nil, g.signInErr
	}
	if g.signInUser == nil {
		return nil, apperr.InvalidCredentials()
	}
	g.mu.Lock()
	g.current = g.signInUser
	g.mu.Unlock()
	return g.signInUser, nil
}

func (g *fakeGateway) CurrentUser(ctx context.Context) (*out.GatewayUser, error) {
	if g.currentGate != nil {
		<-g.currentGate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentCalls++
	if g.currentErr != nil {
		return nil, g.currentErr
	}
	return g.current, nil
}

func (g *fakeGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signOuts++
	g.current = nil
	return nil
}

func (g *fakeGateway) OnAuthStateChange(fn func(out.GatewayEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}
