package reputation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/nais/deploy-governance/internal/apierror"
	"github.com/nais/deploy-governance/internal/model"
)

// Store persists reputation records. LoadReputation returns an error wrapping
// apierror.ErrNotFound for unknown users.
type Store interface {
	LoadReputation(ctx context.Context, userID string) (model.Reputation, error)
	SaveReputation(ctx context.Context, rep model.Reputation) error
}

// Ledger serializes read-modify-write of reputation records per user.
// Scores are never moved between users.
type Ledger struct {
	store     Store
	catalogue Catalogue
	clock     clock.Clock
	log       logrus.FieldLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type LedgerOption func(*Ledger)

func WithCatalogue(c Catalogue) LedgerOption {
	return func(l *Ledger) {
		l.catalogue = c
	}
}

func WithClock(c clock.Clock) LedgerOption {
	return func(l *Ledger) {
		l.clock = c
	}
}

func NewLedger(store Store, log logrus.FieldLogger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:     store,
		catalogue: DefaultCatalogue(),
		clock:     clock.New(),
		log:       log,
		locks:     map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the user's record, or a fresh zero record if the user has none.
func (l *Ledger) Get(ctx context.Context, userID string) (model.Reputation, error) {
	rep, err := l.store.LoadReputation(ctx, userID)
	if errors.Is(err, apierror.ErrNotFound) {
		return model.Reputation{UserID: userID}, nil
	} else if err != nil {
		return model.Reputation{}, fmt.Errorf("loading reputation for %q: %w", userID, err)
	}
	return rep, nil
}

// VotingPower computes the user's current voting power for the given context.
func (l *Ledger) VotingPower(ctx context.Context, userID string, relevantContext []string) (float64, error) {
	rep, err := l.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return VotingPower(rep, rep.Expertise, relevantContext), nil
}

// Apply records an outcome for the user and returns the updated record.
func (l *Ledger) Apply(ctx context.Context, userID string, action ActionKind, oc OutcomeContext) (model.Reputation, error) {
	if !action.IsValid() {
		return model.Reputation{}, fmt.Errorf("%w: unknown reputation action %q", apierror.ErrInvalidInput, action)
	}
	if oc.At.IsZero() {
		oc.At = l.clock.Now()
	}

	var updated model.Reputation
	err := l.update(ctx, userID, func(rep model.Reputation) model.Reputation {
		updated = ApplyOutcome(rep, action, oc, l.catalogue)
		return updated
	})
	if err != nil {
		return model.Reputation{}, err
	}

	l.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"action":      action,
		"total_score": updated.TotalScore,
	}).Debug("reputation updated")
	return updated, nil
}

// SetExpertise replaces the expertise tags of the user.
func (l *Ledger) SetExpertise(ctx context.Context, userID string, expertise []string) error {
	return l.update(ctx, userID, func(rep model.Reputation) model.Reputation {
		rep.Expertise = append([]string(nil), expertise...)
		rep.UpdatedAt = l.clock.Now()
		return rep
	})
}

func (l *Ledger) update(ctx context.Context, userID string, fn func(model.Reputation) model.Reputation) error {
	lock := l.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	rep, err := l.Get(ctx, userID)
	if err != nil {
		return err
	}
	rep = fn(rep)
	rep.UserID = userID
	if err := l.store.SaveReputation(ctx, rep); err != nil {
		return fmt.Errorf("saving reputation for %q: %w", userID, err)
	}
	return nil
}

func (l *Ledger) lockFor(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
