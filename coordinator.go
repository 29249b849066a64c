package eventdesk

import (
	"context"
)

// WriteResult is the outcome of a create or update. Queued distinguishes
// a durable, server-confirmed write from an optimistic one waiting in
// the operation queue; OperationID names the queued operation in the
// latter case.
type WriteResult struct {
	Event       Event
	Queued      bool
	OperationID string
}

// DeleteResult is the outcome of a delete. Success means the server
// acknowledged the delete (or the resource was already gone); Queued
// means the delete waits in the operation queue. The local record is
// removed either way.
type DeleteResult struct {
	ID          EventID
	Success     bool
	Queued      bool
	OperationID string
}

// CoordinatorOptions configures the SyncCoordinator's monitor.
type CoordinatorOptions struct {
	Monitor *MonitorOptions
}

// SyncCoordinator is the single entry point for reading and writing
// events. It consults the connectivity monitor per call, hits the
// network when the server is available, and falls back to the local
// mirror otherwise. Writes are optimistic-first: the mirror is updated
// before (or regardless of) the network outcome, and failed writes are
// queued for replay.
type SyncCoordinator struct {
	client  *Client
	store   *MirrorStore
	queue   *OperationQueue
	monitor *ConnectivityMonitor
}

// NewSyncCoordinator wires a coordinator over the given client and
// storage backend. The monitor's available-transition hook is bound to
// queue replay; call Monitor().Start to begin background probing.
func NewSyncCoordinator(client *Client, storage Storage, opts *CoordinatorOptions) *SyncCoordinator {
	var monitorOpts *MonitorOptions
	if opts != nil {
		monitorOpts = opts.Monitor
	}

	store := NewMirrorStore(storage)
	queue := NewOperationQueue(storage, client, store)
	monitor := NewConnectivityMonitor(client, monitorOpts)
	monitor.OnAvailable(queue.ProcessQueue)

	return &SyncCoordinator{
		client:  client,
		store:   store,
		queue:   queue,
		monitor: monitor,
	}
}

// Store returns the local mirror store.
func (c *SyncCoordinator) Store() *MirrorStore { return c.store }

// Queue returns the operation queue.
func (c *SyncCoordinator) Queue() *OperationQueue { return c.queue }

// Monitor returns the connectivity monitor.
func (c *SyncCoordinator) Monitor() *ConnectivityMonitor { return c.monitor }

// ============================================================================
// Reads
// ============================================================================

// GetEvents returns one page of events. Online, the server result is
// merged into the mirror and returned; offline (or on a failed call),
// the mirror is filtered, sorted and paginated into the identical
// shape. Never returns an error: the offline computation cannot fail.
func (c *SyncCoordinator) GetEvents(ctx context.Context, page, limit int, filters Filters) *EventPage {
	if !c.monitor.Status().Available() {
		return c.localPage(page, limit, filters)
	}

	result, err := c.client.ListEvents(ctx, page, limit, filters)
	if err != nil {
		return c.localPage(page, limit, filters)
	}
	c.store.Merge(result.Data)
	return result
}

func (c *SyncCoordinator) localPage(page, limit int, filters Filters) *EventPage {
	events := FilterEvents(c.store.ReadAll(), filters)
	SortEvents(events, filters.SortBy)
	return Paginate(events, page, limit)
}

// ============================================================================
// Writes
// ============================================================================

// CreateEvent stores the event optimistically under a temporary
// identifier, then either confirms it against the server (rekeying to
// the server-assigned identifier) or queues the create for replay.
// Input validation is the caller's job; this layer does not re-validate.
func (c *SyncCoordinator) CreateEvent(ctx context.Context, in *EventInput) *WriteResult {
	tempID := NewTempID()
	ev := in.Event(tempID)

	if !c.monitor.Status().Available() {
		return c.queueCreate(in, ev)
	}

	c.store.UpsertLocal(ev)
	created, err := c.client.CreateEvent(ctx, in)
	if err != nil {
		return c.queueCreate(in, ev)
	}
	c.store.ReplaceID(tempID, *created)
	return &WriteResult{Event: *created}
}

func (c *SyncCoordinator) queueCreate(in *EventInput, ev Event) *WriteResult {
	ev.Queued = true
	c.store.UpsertLocal(ev)
	opID := c.queue.AddOperation(QueuedOperation{
		Kind:    OpCreate,
		Payload: in,
		TempID:  ev.ID,
	})
	return &WriteResult{Event: ev, Queued: true, OperationID: opID}
}

// UpdateEvent overwrites the mirror entry optimistically, then either
// confirms against the server or queues the update for replay.
func (c *SyncCoordinator) UpdateEvent(ctx context.Context, id EventID, in *EventInput) *WriteResult {
	ev := in.Event(id)

	if !c.monitor.Status().Available() {
		return c.queueUpdate(id, in, ev)
	}

	c.store.UpsertLocal(ev)
	updated, err := c.client.UpdateEvent(ctx, id, in)
	if err != nil {
		return c.queueUpdate(id, in, ev)
	}
	c.store.UpsertLocal(*updated)
	return &WriteResult{Event: *updated}
}

func (c *SyncCoordinator) queueUpdate(id EventID, in *EventInput, ev Event) *WriteResult {
	ev.Queued = true
	c.store.UpsertLocal(ev)
	opID := c.queue.AddOperation(QueuedOperation{
		Kind:     OpUpdate,
		TargetID: id,
		Payload:  in,
	})
	return &WriteResult{Event: ev, Queued: true, OperationID: opID}
}

// DeleteEvent removes the mirror entry immediately; the delete is
// irreversible from the client's perspective once requested. Offline or
// on failure the delete is queued for replay; a not-found from the
// server counts as success since the resource is already gone.
func (c *SyncCoordinator) DeleteEvent(ctx context.Context, id EventID) *DeleteResult {
	c.store.RemoveLocal(id)

	if !c.monitor.Status().Available() {
		return c.queueDelete(id)
	}

	err := c.client.DeleteEvent(ctx, id)
	if err == nil || IsNotFound(err) {
		return &DeleteResult{ID: id, Success: true}
	}
	return c.queueDelete(id)
}

func (c *SyncCoordinator) queueDelete(id EventID) *DeleteResult {
	opID := c.queue.AddOperation(QueuedOperation{
		Kind:     OpDelete,
		TargetID: id,
	})
	return &DeleteResult{ID: id, Queued: true, OperationID: opID}
}

// ============================================================================
// Broadcast intake
// ============================================================================

// ApplyBroadcast folds an event pushed over the broadcast channel into
// the mirror, with the usual merge rule: a queued local entry wins over
// the pushed copy. Returns whether the event passes the given filters,
// so consumers can decide whether to show it.
func (c *SyncCoordinator) ApplyBroadcast(ev Event, filters Filters) bool {
	c.store.Merge([]Event{ev})
	return filters.Match(&ev)
}
