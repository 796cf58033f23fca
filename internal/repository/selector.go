// Package repository wires the ephemeral and durable ResourceStore
// implementations behind a single identity-keyed selector.
package repository

import (
	"log/slog"

	"insightboard/internal/domain/models"
	"insightboard/internal/domain/repositories"
	"insightboard/internal/repository/durable"
	"insightboard/internal/repository/ephemeral"
)

// Selector implements repositories.StoreSelector.
type Selector struct {
	guestKV repositories.KVStore
	locks   *ephemeral.Locks
	driver  repositories.DocumentDriver
	tx      repositories.TransactionManager
	logger  *slog.Logger
}

func NewSelector(
	guestKV repositories.KVStore,
	locks *ephemeral.Locks,
	driver repositories.DocumentDriver,
	tx repositories.TransactionManager,
	logger *slog.Logger,
) *Selector {
	return &Selector{guestKV: guestKV, locks: locks, driver: driver, tx: tx, logger: logger}
}

func (s *Selector) For(identity models.Identity) repositories.ResourceStore {
	if identity.IsMember() {
		return durable.NewStore(s.driver, s.tx, identity.ID, s.logger)
	}
	return ephemeral.NewStore(s.guestKV, s.locks, identity.Session)
}
