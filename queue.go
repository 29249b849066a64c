package eventdesk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// OpKind is the kind of a queued write operation.
type OpKind string

const (
	OpCreate OpKind = "CREATE"
	OpUpdate OpKind = "UPDATE"
	OpDelete OpKind = "DELETE"
)

// QueuedOperation is a pending write recorded for later replay against
// the server. Payload is nil for deletes; TempID is set only for
// creates, naming the mirror entry to rekey once the server responds.
type QueuedOperation struct {
	ID        string      `json:"id"`
	Kind      OpKind      `json:"kind"`
	TargetID  EventID     `json:"targetId,omitempty"`
	Payload   *EventInput `json:"payload,omitempty"`
	TempID    EventID     `json:"tempId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`

	// Err records the last replay failure, for diagnostics only.
	Err string `json:"error,omitempty"`
}

// OperationQueue is an ordered, persisted log of writes made while the
// server was unreachable. Replay is strictly head-to-tail with at most
// one run in flight.
type OperationQueue struct {
	client *Client
	store  *MirrorStore

	mu      sync.Mutex
	storage Storage
	ops     []QueuedOperation
	syncing bool
}

// NewOperationQueue creates an operation queue over the given storage
// backend, restoring any operations persisted by a previous session.
func NewOperationQueue(storage Storage, client *Client, store *MirrorStore) *OperationQueue {
	q := &OperationQueue{
		client:  client,
		store:   store,
		storage: storage,
	}
	if data, err := storage.Get(storageKeyQueue); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &q.ops)
	}
	return q
}

// AddOperation appends the operation to the tail and persists the queue.
// The operation's identifier and creation timestamp are filled in; the
// assigned identifier is returned. Never fails.
func (q *OperationQueue) AddOperation(op QueuedOperation) string {
	op.ID = opID()
	op.CreatedAt = time.Now().UTC()

	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.persist()
	q.mu.Unlock()
	return op.ID
}

// Len returns the number of pending operations.
func (q *OperationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Operations returns a snapshot of the pending operations in order.
func (q *OperationQueue) Operations() []QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueuedOperation{}, q.ops...)
}

// ProcessQueue replays pending operations from the head. On success an
// operation is removed and replay continues; a delete that fails with
// not-found counts as success (the resource is already gone). Any other
// failure is recorded on the operation and halts replay, leaving it and
// everything behind it queued for the next trigger.
//
// At most one replay runs at a time; a concurrent call is a no-op, so
// it is safe to invoke from the reconnect handler, an explicit retry,
// and app startup simultaneously.
func (q *OperationQueue) ProcessQueue(ctx context.Context) {
	q.mu.Lock()
	if q.syncing || len(q.ops) == 0 {
		q.mu.Unlock()
		return
	}
	q.syncing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.mu.Unlock()
			return
		}
		op := q.ops[0]
		q.mu.Unlock()

		err := q.execute(ctx, &op)
		if err != nil && !(op.Kind == OpDelete && IsNotFound(err)) {
			q.mu.Lock()
			if len(q.ops) > 0 && q.ops[0].ID == op.ID {
				q.ops[0].Err = err.Error()
			}
			q.persist()
			q.mu.Unlock()
			return
		}

		q.mu.Lock()
		if len(q.ops) > 0 && q.ops[0].ID == op.ID {
			q.ops = q.ops[1:]
		}
		q.persist()
		q.mu.Unlock()
	}
}

func (q *OperationQueue) execute(ctx context.Context, op *QueuedOperation) error {
	switch op.Kind {
	case OpCreate:
		created, err := q.client.CreateEvent(ctx, op.Payload)
		if err != nil {
			return err
		}
		q.store.ReplaceID(op.TempID, *created)
		return nil

	case OpUpdate:
		updated, err := q.client.UpdateEvent(ctx, op.TargetID, op.Payload)
		if err != nil {
			return err
		}
		q.store.UpsertLocal(*updated)
		return nil

	case OpDelete:
		if err := q.client.DeleteEvent(ctx, op.TargetID); err != nil {
			return err
		}
		q.store.RemoveLocal(op.TargetID)
		return nil
	}
	return fmt.Errorf("unknown operation kind %q", op.Kind)
}

// persist writes the queue to storage. Callers hold q.mu.
func (q *OperationQueue) persist() {
	ops := q.ops
	if ops == nil {
		ops = []QueuedOperation{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return
	}
	_ = q.storage.Set(storageKeyQueue, data)
}

// opID returns a random operation identifier for de-duplication and
// tracing.
func opID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("op-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
