// Package memory provides in-process implementations of the storage drivers.
// They back tests and single-node development runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"insightboard/internal/domain"
	"insightboard/internal/domain/repositories"
)

type document struct {
	seq         int64
	ownerID     string
	workspaceID string
	dashboardID string
	id          string
	body        json.RawMessage
}

// DocumentDriver is an in-memory repositories.DocumentDriver that also
// implements repositories.TransactionManager by snapshot and restore.
type DocumentDriver struct {
	mu          sync.Mutex
	seq         int64
	collections map[string][]*document

	// Fail, when set, is consulted before every operation; a non-nil result
	// is returned as the operation's error.
	Fail func(op, collection string) error
}

// NewDocumentDriver creates an empty driver.
func NewDocumentDriver() *DocumentDriver {
	return &DocumentDriver{collections: make(map[string][]*document)}
}

func (d *DocumentDriver) fail(op, collection string) error {
	if d.Fail == nil {
		return nil
	}
	return d.Fail(op, collection)
}

// Ping implements repositories.DocumentDriver.
func (d *DocumentDriver) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.fail("ping", "")
}

func (d *DocumentDriver) FindOne(ctx context.Context, collection string, f repositories.Filter) (json.RawMessage, error) {
	if err := d.check(ctx, "find_one", collection, f, true); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range d.collections[collection] {
		if matches(doc, f) {
			return cloneRaw(doc.body), nil
		}
	}
	return nil, domain.NewNotFound(collection, f.ID)
}

func (d *DocumentDriver) Find(ctx context.Context, collection string, f repositories.Filter) ([]json.RawMessage, error) {
	if err := d.check(ctx, "find", collection, f, false); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []json.RawMessage{}
	for _, doc := range d.collections[collection] {
		if matches(doc, f) {
			out = append(out, cloneRaw(doc.body))
		}
	}
	return out, nil
}

func (d *DocumentDriver) InsertOne(ctx context.Context, collection string, f repositories.Filter, body json.RawMessage) error {
	if err := d.check(ctx, "insert_one", collection, f, true); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range d.collections[collection] {
		if doc.ownerID == f.OwnerID && doc.workspaceID == f.WorkspaceID &&
			doc.dashboardID == f.DashboardID && doc.id == f.ID {
			return &domain.DuplicateIDError{Resource: collection, ID: f.ID}
		}
	}
	d.seq++
	d.collections[collection] = append(d.collections[collection], &document{
		seq:         d.seq,
		ownerID:     f.OwnerID,
		workspaceID: f.WorkspaceID,
		dashboardID: f.DashboardID,
		id:          f.ID,
		body:        cloneRaw(body),
	})
	return nil
}

func (d *DocumentDriver) UpdateOne(ctx context.Context, collection string, f repositories.Filter, patch repositories.DocumentPatch) (json.RawMessage, error) {
	if err := d.check(ctx, "update_one", collection, f, true); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range d.collections[collection] {
		if !matches(doc, f) {
			continue
		}
		merged, err := repositories.ApplyPatch(doc.body, patch)
		if err != nil {
			return nil, err
		}
		doc.body = merged
		return cloneRaw(merged), nil
	}
	return nil, domain.NewNotFound(collection, f.ID)
}

func (d *DocumentDriver) DeleteOne(ctx context.Context, collection string, f repositories.Filter) error {
	if err := d.check(ctx, "delete_one", collection, f, true); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	docs := d.collections[collection]
	for i, doc := range docs {
		if matches(doc, f) {
			d.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFound(collection, f.ID)
}

func (d *DocumentDriver) DeleteMany(ctx context.Context, collection string, f repositories.Filter) (int64, error) {
	if err := d.check(ctx, "delete_many", collection, f, false); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var kept []*document
	var n int64
	for _, doc := range d.collections[collection] {
		if matches(doc, f) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	d.collections[collection] = kept
	return n, nil
}

// Count returns the number of documents in collection across all owners.
func (d *DocumentDriver) Count(collection string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.collections[collection])
}

// ExecTx implements repositories.TransactionManager. Writes made by fn are
// discarded if it returns an error. Concurrent writers are not isolated.
func (d *DocumentDriver) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	d.mu.Lock()
	snapshot := make(map[string][]*document, len(d.collections))
	for name, docs := range d.collections {
		copied := make([]*document, len(docs))
		for i, doc := range docs {
			c := *doc
			copied[i] = &c
		}
		snapshot[name] = copied
	}
	d.mu.Unlock()

	if err := fn(ctx); err != nil {
		d.mu.Lock()
		d.collections = snapshot
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *DocumentDriver) check(ctx context.Context, op, collection string, f repositories.Filter, needID bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.OwnerID == "" {
		return fmt.Errorf("%s %s: owner id is required", op, collection)
	}
	if needID && f.ID == "" {
		return fmt.Errorf("%s %s: id is required", op, collection)
	}
	return d.fail(op, collection)
}

func matches(doc *document, f repositories.Filter) bool {
	if doc.ownerID != f.OwnerID {
		return false
	}
	if f.WorkspaceID != "" && doc.workspaceID != f.WorkspaceID {
		return false
	}
	if f.DashboardID != "" && doc.dashboardID != f.DashboardID {
		return false
	}
	if f.ID != "" && doc.id != f.ID {
		return false
	}
	return repositories.MatchesDocument(doc.body, f.Match)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
