package migration

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"insightboard/internal/domain"
	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/domain/services"
	"insightboard/internal/repository/ephemeral"
)

const markerPrefix = "migrated:"

// claimLease is how long a running claim blocks other runs. A run that dies
// without releasing its claim stops blocking retries after this.
const claimLease = 10 * time.Minute

// MarkerKey is the KV key recording that a guest session was migrated.
func MarkerKey(session string) string { return markerPrefix + session }

const (
	markerRunning = "running"
	markerDone    = "done"
)

type marker struct {
	State    string    `json:"state"`
	MemberID string    `json:"memberId"`
	At       time.Time `json:"at"`
}

var errInProgress = errors.New("migration already running for this guest session")

// Invalidator drops a cached tree so the next read rehydrates.
type Invalidator interface {
	Invalidate(identity models.Identity)
}

// Transition fires the migration for one guest-to-member upgrade. A session
// is migrated at most once: a run first claims the marker key, and the
// marker is flipped to done after a run that reached the durable backend.
// Claim and completion go through ephemeral.Mutate, so on a shared guest KV
// two instances cannot both run the same session.
type Transition struct {
	migrator services.MigrationService
	guestKV  repositories.KVStore
	locks    *ephemeral.Locks
	mirror   Invalidator
	logger   *slog.Logger
	now      func() time.Time
}

func NewTransition(migrator services.MigrationService, guestKV repositories.KVStore, locks *ephemeral.Locks, mirror Invalidator, logger *slog.Logger) *Transition {
	return &Transition{migrator: migrator, guestKV: guestKV, locks: locks, mirror: mirror, logger: logger, now: time.Now}
}

func (t *Transition) Run(ctx context.Context, guest, member models.Identity) (*services.MigrationSummary, error) {
	if !guest.IsGuest() || guest.Session == "" {
		return nil, domain.NewValidation("guestSession", "a guest session is required")
	}
	if !member.IsMember() {
		return nil, &domain.ForbiddenError{Message: "migration requires an authenticated member"}
	}

	key := MarkerKey(guest.Session)
	done, err := t.claim(ctx, key, member)
	if errors.Is(err, errInProgress) {
		t.logger.Warn("migration already in progress", "guest", guest.Key(), "member", member.Key())
		return nil, domain.Unavailable("migration", err)
	}
	if err != nil {
		return nil, err
	}
	if done {
		t.logger.Info("migration already done", "guest", guest.Key(), "member", member.Key())
		return &services.MigrationSummary{Errors: []string{}, Skipped: true}, nil
	}

	graph, err := ephemeral.LoadGraph(ctx, t.guestKV, guest.Session)
	if err != nil {
		t.release(ctx, key, guest)
		return nil, err
	}

	summary := t.migrator.Migrate(ctx, member, graph)
	t.mirror.Invalidate(member)
	if summary.Aborted {
		t.release(ctx, key, guest)
		return summary, nil
	}

	if err := t.write(ctx, key, marker{State: markerDone, MemberID: member.ID, At: t.now().UTC()}); err != nil {
		t.logger.Error("migration marker not written", "guest", guest.Key(), "member", member.Key(), "error", err)
	}
	return summary, nil
}

// claim marks the session as running for member. It reports done=true when
// an earlier run already finished, and errInProgress while another run
// holds an unexpired claim.
func (t *Transition) claim(ctx context.Context, key string, member models.Identity) (bool, error) {
	var done bool
	err := ephemeral.Mutate(ctx, t.guestKV, t.locks, key, func(raw []byte, found bool) ([]byte, error) {
		done = false
		now := t.now().UTC()
		if found {
			var m marker
			// Markers written before claims existed hold only the member id.
			if err := json.Unmarshal(raw, &m); err != nil || m.State == markerDone {
				done = true
				return nil, repositories.ErrKeepValue
			}
			if m.State == markerRunning && now.Before(m.At.Add(claimLease)) {
				return nil, errInProgress
			}
		}
		return json.Marshal(marker{State: markerRunning, MemberID: member.ID, At: now})
	})
	return done, err
}

// release drops a running claim so the session can be retried.
func (t *Transition) release(ctx context.Context, key string, guest models.Identity) {
	defer t.locks.Lock(key)()
	if err := t.guestKV.Delete(ctx, key); err != nil {
		t.logger.Error("migration claim not released", "guest", guest.Key(), "error", err)
	}
}

func (t *Transition) write(ctx context.Context, key string, m marker) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return ephemeral.Mutate(ctx, t.guestKV, t.locks, key, func([]byte, bool) ([]byte, error) {
		return raw, nil
	})
}
