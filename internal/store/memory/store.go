// Package memory is an in-process implementation of store.Store.
//
// All transactions are serialized behind one mutex and roll back by
// restoring a snapshot, so lock=true arguments are implicitly honoured.
// Uniqueness rules mirror the Postgres indexes.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Ensure Store implements the interface.
var _ store.Store = (*Store)(nil)

type pair struct{ a, b string }

type notice struct {
	status    domain.NoticeStatus
	claimedAt int64
}

type state struct {
	users           map[string]domain.User
	emails          map[string]string
	roleProfiles    map[pair]domain.RoleProfile
	roleChanges     []domain.RoleChange
	profiles        map[string]domain.WorkProfile
	requests        map[string]domain.ServiceRequest
	interests       map[string]domain.Interest
	interestPairs   map[pair]string
	connections     map[string]domain.Connection
	connByInterest  map[string]string
	confirmations   map[pair]domain.CompletionConfirmation
	obligations     map[string]domain.ReviewObligation
	obligationPairs map[pair]string
	reviews         map[string]domain.Review
	reviewPairs     map[pair]string
	notices         map[pair]notice
	notifications   map[string]domain.Notification
}

func newState() *state {
	return &state{
		users:           make(map[string]domain.User),
		emails:          make(map[string]string),
		roleProfiles:    make(map[pair]domain.RoleProfile),
		profiles:        make(map[string]domain.WorkProfile),
		requests:        make(map[string]domain.ServiceRequest),
		interests:       make(map[string]domain.Interest),
		interestPairs:   make(map[pair]string),
		connections:     make(map[string]domain.Connection),
		connByInterest:  make(map[string]string),
		confirmations:   make(map[pair]domain.CompletionConfirmation),
		obligations:     make(map[string]domain.ReviewObligation),
		obligationPairs: make(map[pair]string),
		reviews:         make(map[string]domain.Review),
		reviewPairs:     make(map[pair]string),
		notices:         make(map[pair]notice),
		notifications:   make(map[string]domain.Notification),
	}
}

func (s *state) clone() *state {
	return &state{
		users:           maps.Clone(s.users),
		emails:          maps.Clone(s.emails),
		roleProfiles:    maps.Clone(s.roleProfiles),
		roleChanges:     slices.Clone(s.roleChanges),
		profiles:        maps.Clone(s.profiles),
		requests:        maps.Clone(s.requests),
		interests:       maps.Clone(s.interests),
		interestPairs:   maps.Clone(s.interestPairs),
		connections:     maps.Clone(s.connections),
		connByInterest:  maps.Clone(s.connByInterest),
		confirmations:   maps.Clone(s.confirmations),
		obligations:     maps.Clone(s.obligations),
		obligationPairs: maps.Clone(s.obligationPairs),
		reviews:         maps.Clone(s.reviews),
		reviewPairs:     maps.Clone(s.reviewPairs),
		notices:         maps.Clone(s.notices),
		notifications:   maps.Clone(s.notifications),
	}
}

// Store is the in-memory store.
type Store struct {
	mu       sync.Mutex
	data     *state
	failNext int
	attempts int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: newState()}
}

// InTx runs fn with exclusive access to the data and restores the previous
// snapshot if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	return store.Retry(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.attempts++
		if s.failNext > 0 {
			s.failNext--
			return store.ErrTransient
		}
		snapshot := s.data.clone()
		if err := fn(&queries{st: s.data}); err != nil {
			s.data = snapshot
			return err
		}
		return nil
	})
}

// FailNext makes the next n transaction attempts fail with store.ErrTransient.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Attempts returns how many transaction attempts have started.
func (s *Store) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}
