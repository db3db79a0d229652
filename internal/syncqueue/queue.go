// Package syncqueue is the field client's offline queue. Job orders captured
// without connectivity are stored locally with an optimistic debit on the
// cached holding and replayed FIFO against the server once online.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrOffline is returned by operations that need the server while offline.
var ErrOffline = errors.New("syncqueue: offline")

// State of a queued item.
type State string

const (
	StatePending   State = "pending"
	StateConflict  State = "conflict"
	StateCommitted State = "committed"
	StateDiscarded State = "discarded"
)

// Item is one job order captured offline.
type Item struct {
	Seq           uint64                    `json:"seq"`
	OfflineID     string                    `json:"offline_id"`
	Request       dto.CreateJobOrderRequest `json:"request"`
	State         State                     `json:"state"`
	Attempts      int                       `json:"attempts"`
	LastKind      apierror.Kind             `json:"last_kind,omitempty"`
	LastError     string                    `json:"last_error,omitempty"`
	JobOrderID    string                    `json:"job_order_id,omitempty"`
	QueuedAt      time.Time                 `json:"queued_at"`
	LastAttemptAt *time.Time                `json:"last_attempt_at,omitempty"`
	CommittedAt   *time.Time                `json:"committed_at,omitempty"`
}

// Queued reports whether the item still occupies the queue.
func (it *Item) Queued() bool { return it.State == StatePending || it.State == StateConflict }

// Deferred is the result handed to the UI for an item accepted offline.
func (it *Item) Deferred() *apierror.Error { return apierror.OfflineDeferred(it.OfflineID) }

func (it *Item) holdingID() string {
	if it.Request.StockHoldingID == nil {
		return ""
	}
	return *it.Request.StockHoldingID
}

// CachedHolding is the local copy of one of the inspector's holdings.
type CachedHolding struct {
	ID        string `json:"id"`
	LotID     string `json:"lot_id"`
	LotNumber string `json:"lot_number"`
	Qty       int    `json:"qty"`
	// Canonical is the remaining count reported by the server at the last refresh.
	Canonical int `json:"canonical"`
	// Confirmed counts commits made from this device since that refresh.
	Confirmed int `json:"confirmed"`
	// Pending and Remaining are derived by Merge.
	Pending   int `json:"pending"`
	Remaining int `json:"remaining"`
}

// Merge derives what may still be allocated offline from each holding:
// canonical remaining, less commits not yet reflected by a refresh, less
// debits still queued. It is the only place the two views are combined.
func Merge(holdings []CachedHolding, items []Item) []CachedHolding {
	pending := make(map[string]int)
	for i := range items {
		if items[i].Queued() {
			if id := items[i].holdingID(); id != "" {
				pending[id]++
			}
		}
	}
	out := make([]CachedHolding, len(holdings))
	for i, h := range holdings {
		h.Pending = pending[h.ID]
		h.Remaining = h.Canonical - h.Confirmed - h.Pending
		if h.Remaining < 0 {
			h.Remaining = 0
		}
		out[i] = h
	}
	return out
}

// Committer is the server side of the replay.
type Committer interface {
	CommitOffline(ctx context.Context, req dto.OfflineJobOrderRequest) (*dto.JobOrderResponse, error)
	Holdings(ctx context.Context) ([]dto.HoldingResponse, error)
}

// Connectivity reports whether the server is believed reachable.
type Connectivity interface {
	Online() bool
}

// Queue serializes every mutation of the local store.
type Queue struct {
	mu        sync.Mutex
	store     *Store
	committer Committer
	conn      Connectivity
	bus       changebus.Publisher
	now       func() time.Time
}

// New builds a queue. bus may be nil.
func New(store *Store, committer Committer, conn Connectivity, bus changebus.Publisher) *Queue {
	if bus == nil {
		bus = changebus.Nop{}
	}
	return &Queue{store: store, committer: committer, conn: conn, bus: bus, now: time.Now}
}

func (q *Queue) changed(offlineID, action string) {
	q.bus.Publish(changebus.TopicOfflineQueue, offlineID, action)
}

// Enqueue accepts req offline. The chosen holding must cover one more
// sticker after the debits already queued against it.
func (q *Queue) Enqueue(ctx context.Context, req dto.CreateJobOrderRequest) (*Item, error) {
	return q.enqueue(ctx, "offline-"+uuid.NewString(), req)
}

func (q *Queue) enqueue(_ context.Context, offlineID string, req dto.CreateJobOrderRequest) (*Item, error) {
	if err := dto.Check(dto.OfflineJobOrderRequest{OfflineID: offlineID, CreateJobOrderRequest: req}); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item := &Item{OfflineID: offlineID, Request: req, State: StatePending, QueuedAt: q.now().UTC()}
	err := q.store.db.Update(func(txn *badger.Txn) error {
		if existing, err := findItem(txn, offlineID); err == nil {
			*item = *existing
			return nil
		} else if !errors.Is(err, errItemNotFound) {
			return err
		}

		if id := item.holdingID(); id != "" {
			items, err := queued(txn)
			if err != nil {
				return err
			}
			hs, err := cachedHoldings(txn)
			if err != nil {
				return err
			}
			h := findHolding(Merge(hs, items), id)
			if h == nil {
				return apierror.NotFound("cached holding", id)
			}
			if h.Remaining < 1 {
				return apierror.InsufficientStock("holding %s of lot %s has no remaining stickers on this device", id, h.LotNumber)
			}
		}

		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		item.Seq = seq
		return putItem(txn, item)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("offline_id", offlineID).Uint64("seq", item.Seq).Msg("syncqueue: job order queued")
	q.changed(offlineID, "queued")
	return item, nil
}

// SubmitResult holds either the committed job order or the deferred item.
type SubmitResult struct {
	JobOrder *dto.JobOrderResponse
	Deferred *Item
}

// Submit commits directly when online and falls back to the queue when
// offline or when the transport fails. Domain refusals are returned as is.
func (q *Queue) Submit(ctx context.Context, req dto.CreateJobOrderRequest) (*SubmitResult, error) {
	offlineID := "offline-" + uuid.NewString()
	if q.conn == nil || !q.conn.Online() {
		item, err := q.enqueue(ctx, offlineID, req)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Deferred: item}, nil
	}

	if err := dto.Check(dto.OfflineJobOrderRequest{OfflineID: offlineID, CreateJobOrderRequest: req}); err != nil {
		return nil, err
	}
	job, err := q.committer.CommitOffline(ctx, dto.OfflineJobOrderRequest{OfflineID: offlineID, CreateJobOrderRequest: req})
	if err == nil {
		q.confirm(req.StockHoldingID)
		return &SubmitResult{JobOrder: job}, nil
	}
	if _, refused := apierror.As(err); refused {
		return nil, err
	}
	// the server may have committed before the connection dropped; the
	// shared offline id makes the later replay a no-op in that case
	log.Warn().Err(err).Str("offline_id", offlineID).Msg("syncqueue: submit failed, queueing")
	item, qerr := q.enqueue(ctx, offlineID, req)
	if qerr != nil {
		return nil, qerr
	}
	return &SubmitResult{Deferred: item}, nil
}

// confirm records a commit against the cached holding.
func (q *Queue) confirm(holdingID *string) {
	if holdingID == nil || *holdingID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.store.db.Update(func(txn *badger.Txn) error {
		var h CachedHolding
		if err := getJSON(txn, holdingKey(*holdingID), &h); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		h.Confirmed++
		return setJSON(txn, holdingKey(h.ID), &h)
	})
	if err != nil {
		log.Warn().Err(err).Str("holding_id", *holdingID).Msg("syncqueue: cache update failed")
	}
}

// SyncReport summarizes one pass over the queue.
type SyncReport struct {
	Committed []Item `json:"committed"`
	Conflicts []Item `json:"conflicts"`
	// Remaining items were not attempted because the pass stopped early.
	Remaining int    `json:"remaining"`
	Stopped   string `json:"stopped,omitempty"`
}

// Sync replays every queued item oldest first, conflicts included. A refusal
// marks the item as a conflict (or keeps it one) and moves on; the item stays
// queued with its attempts and last error until a later pass commits it or
// it is discarded. A transport failure stops the pass and leaves the rest
// untouched.
func (q *Queue) Sync(ctx context.Context) (*SyncReport, error) {
	if q.conn != nil && !q.conn.Online() {
		return nil, ErrOffline
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var items []Item
	if err := q.store.db.View(func(txn *badger.Txn) error {
		var err error
		items, err = queued(txn)
		return err
	}); err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for i := range items {
		item := items[i]
		if !item.Queued() {
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Stopped = err.Error()
			report.Remaining = countQueued(items[i:])
			return report, nil
		}

		now := q.now().UTC()
		item.Attempts++
		item.LastAttemptAt = &now
		job, err := q.committer.CommitOffline(ctx, dto.OfflineJobOrderRequest{OfflineID: item.OfflineID, CreateJobOrderRequest: item.Request})
		if err != nil {
			e, refused := apierror.As(err)
			if !refused {
				log.Warn().Err(err).Str("offline_id", item.OfflineID).Msg("syncqueue: transport failure, stopping sync")
				report.Stopped = err.Error()
				report.Remaining = countQueued(items[i:])
				return report, nil
			}
			item.State = StateConflict
			item.LastKind = e.Kind
			item.LastError = e.Error()
			if err := q.store.db.Update(func(txn *badger.Txn) error { return putItem(txn, &item) }); err != nil {
				return report, err
			}
			log.Warn().Str("offline_id", item.OfflineID).Str("kind", string(e.Kind)).Msg("syncqueue: replay refused, held for reconciliation")
			report.Conflicts = append(report.Conflicts, item)
			q.changed(item.OfflineID, "conflict")
			continue
		}

		item.State = StateCommitted
		item.JobOrderID = job.ID
		item.LastKind = ""
		item.LastError = ""
		item.CommittedAt = &now
		err = q.store.db.Update(func(txn *badger.Txn) error {
			if err := putItem(txn, &item); err != nil {
				return err
			}
			if id := item.holdingID(); id != "" {
				var h CachedHolding
				if err := getJSON(txn, holdingKey(id), &h); err == nil {
					h.Confirmed++
					return setJSON(txn, holdingKey(id), &h)
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		log.Info().Str("offline_id", item.OfflineID).Str("job_order_id", job.ID).Msg("syncqueue: job order committed")
		report.Committed = append(report.Committed, item)
		q.changed(item.OfflineID, "committed")
	}
	return report, nil
}

func countQueued(items []Item) int {
	n := 0
	for i := range items {
		if items[i].Queued() {
			n++
		}
	}
	return n
}

// Retry clears an item's conflict marker. Sync re-attempts conflicts anyway;
// Retry is for a manager who has fixed the cause and wants it shown as pending.
func (q *Queue) Retry(offlineID string) (*Item, error) {
	return q.resolve(offlineID, StatePending, "retry")
}

// Discard removes a conflicting item from the queue. The record is kept.
func (q *Queue) Discard(offlineID string) (*Item, error) {
	return q.resolve(offlineID, StateDiscarded, "discarded")
}

func (q *Queue) resolve(offlineID string, to State, action string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var item *Item
	err := q.store.db.Update(func(txn *badger.Txn) error {
		var err error
		item, err = findItem(txn, offlineID)
		if err != nil {
			if errors.Is(err, errItemNotFound) {
				return apierror.NotFound("queued job order", offlineID)
			}
			return err
		}
		if item.State != StateConflict {
			return apierror.InvalidState("item %s is %s, only conflicts can be resolved", offlineID, item.State)
		}
		item.State = to
		return putItem(txn, item)
	})
	if err != nil {
		return nil, err
	}
	q.changed(offlineID, action)
	return item, nil
}

// Item returns the record for offlineID, committed or not.
func (q *Queue) Item(offlineID string) (*Item, error) {
	var item *Item
	err := q.store.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = findItem(txn, offlineID)
		return err
	})
	if errors.Is(err, errItemNotFound) {
		return nil, apierror.NotFound("queued job order", offlineID)
	}
	return item, err
}

// RefreshCache replaces the cached holdings with the server's view and
// reconciles it with the queue.
func (q *Queue) RefreshCache(ctx context.Context) ([]CachedHolding, error) {
	if q.conn != nil && !q.conn.Online() {
		return nil, ErrOffline
	}
	canonical, err := q.committer.Holdings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch holdings: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	hs := make([]CachedHolding, len(canonical))
	for i, h := range canonical {
		hs[i] = CachedHolding{ID: h.ID, LotID: h.LotID, LotNumber: h.LotNumber, Qty: h.Qty, Canonical: h.Remaining}
	}
	var merged []CachedHolding
	err = q.store.db.Update(func(txn *badger.Txn) error {
		items, err := queued(txn)
		if err != nil {
			return err
		}
		merged = Merge(hs, items)
		if err := replaceHoldings(txn, merged); err != nil {
			return err
		}
		return setJSON(txn, []byte(keyRefreshed), q.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	q.changed("", "refreshed")
	return merged, nil
}

// Reconcile recomputes the cached remaining counts from the stored snapshot
// and the current queue.
func (q *Queue) Reconcile() ([]CachedHolding, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var merged []CachedHolding
	err := q.store.db.Update(func(txn *badger.Txn) error {
		items, err := queued(txn)
		if err != nil {
			return err
		}
		hs, err := cachedHoldings(txn)
		if err != nil {
			return err
		}
		merged = Merge(hs, items)
		return putHoldings(txn, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// Status is the queue as shown by `fieldsync status`.
type Status struct {
	Online      bool            `json:"online"`
	Pending     int             `json:"pending"`
	Conflicts   int             `json:"conflicts"`
	Items       []Item          `json:"items"`
	Holdings    []CachedHolding `json:"holdings"`
	RefreshedAt *time.Time      `json:"refreshed_at,omitempty"`
}

func (q *Queue) Status() (*Status, error) {
	st := &Status{Online: q.conn != nil && q.conn.Online()}
	err := q.store.db.View(func(txn *badger.Txn) error {
		items, err := queued(txn)
		if err != nil {
			return err
		}
		hs, err := cachedHoldings(txn)
		if err != nil {
			return err
		}
		st.Items = items
		st.Holdings = Merge(hs, items)
		st.RefreshedAt, err = refreshedAt(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range st.Items {
		switch st.Items[i].State {
		case StatePending:
			st.Pending++
		case StateConflict:
			st.Conflicts++
		}
	}
	return st, nil
}

func findHolding(hs []CachedHolding, id string) *CachedHolding {
	for i := range hs {
		if hs[i].ID == id {
			return &hs[i]
		}
	}
	return nil
}
