// Package memory implements the repository contracts on top of plain maps.
//
// A Store backs all repositories at once and doubles as a dbx.Runner:
// transactions are serialized by a single mutex and roll back to a snapshot
// when fn fails. Calls made outside a transaction run as their own
// one-statement transaction. It is used by tests and by DSN-less runs of the server.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
	"github.com/google/uuid"
)

type state struct {
	users    map[string]models.User
	stores   map[string]models.Store
	vehicles map[string]models.Vehicle
	rentals  map[string]models.RentalRequest
	payments map[string]models.Payment
	tokens   map[string]models.RefreshToken

	// insertion order of rentals, used to break created_at ties
	rentalSeq map[string]int64
	seq       int64
}

func newState() state {
	return state{
		users:     map[string]models.User{},
		stores:    map[string]models.Store{},
		vehicles:  map[string]models.Vehicle{},
		rentals:   map[string]models.RentalRequest{},
		payments:  map[string]models.Payment{},
		tokens:    map[string]models.RefreshToken{},
		rentalSeq: map[string]int64{},
	}
}

func (s state) clone() state {
	return state{
		users:     maps.Clone(s.users),
		stores:    maps.Clone(s.stores),
		vehicles:  maps.Clone(s.vehicles),
		rentals:   maps.Clone(s.rentals),
		payments:  maps.Clone(s.payments),
		tokens:    maps.Clone(s.tokens),
		rentalSeq: maps.Clone(s.rentalSeq),
		seq:       s.seq,
	}
}

// Store holds every table in memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data state

	clock timex.Clock
}

// NewStore returns an empty store stamping rows with clock.
func NewStore(clock timex.Clock) *Store {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Store{data: newState(), clock: clock}
}

var _ dbx.Runner = (*Store)(nil)

type txKey struct{}

// WithTx runs fn while holding the store's transaction lock. Any change fn
// made is discarded if it returns an error or panics. Repositories called
// with fn's context join the transaction; calls with any other context wait
// for it to finish, as single statements would. The DBTX passed to fn is
// nil; the memory repositories ignore it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx, nil)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s), nil)
}

func (s *Store) restore(snapshot state) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock guards one repository call and returns its release. Outside a
// transaction the call also takes the transaction lock, so it can neither
// see uncommitted rows nor be undone by another transaction's rollback.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// AddUser inserts a user, assigning an ID when u.ID is empty.
func (s *Store) AddUser(u models.User) models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	defer s.lock(context.Background())()
	s.data.users[u.ID] = u
	return u
}

// AddStore inserts a store, assigning an ID when st.ID is empty.
func (s *Store) AddStore(st models.Store) models.Store {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	defer s.lock(context.Background())()
	s.data.stores[st.ID] = st
	return st
}

// Vehicles returns the vehicle repository over this store.
func (s *Store) Vehicles() *VehicleRepository { return &VehicleRepository{s: s} }

// Rentals returns the rental repository over this store.
func (s *Store) Rentals() *RentalRepository { return &RentalRepository{s: s} }

// Payments returns the payment repository over this store.
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s: s} }

// RefreshTokens returns the refresh token repository over this store.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }
