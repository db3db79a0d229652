package syncqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// Key layout. Queue keys sort in FIFO order; the value is the offline id.
const (
	prefixQueue   = "queue/"
	prefixOffline = "offline/"
	prefixHolding = "cache/holding/"
	keySeq        = "meta/seq"
	keyRefreshed  = "meta/refreshed_at"
)

var errItemNotFound = errors.New("syncqueue: item not found")

func queueKey(seq uint64) []byte { return []byte(fmt.Sprintf("%s%020d", prefixQueue, seq)) }
func offlineKey(id string) []byte { return []byte(prefixOffline + id) }
func holdingKey(id string) []byte { return []byte(prefixHolding + id) }

// Store is the field device's local database.
type Store struct {
	db *badger.DB
}

// Open opens the badger directory at dir. An empty dir keeps everything in
// memory, which is what the tests use.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local queue: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error { return json.Unmarshal(val, v) })
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// nextSeq bumps the queue counter inside txn.
func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get([]byte(keySeq))
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			n, perr := strconv.ParseUint(string(val), 10, 64)
			seq = n
			return perr
		}); err != nil {
			return 0, err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}
	seq++
	return seq, txn.Set([]byte(keySeq), []byte(strconv.FormatUint(seq, 10)))
}

// queued returns the items still in the queue, oldest first.
func queued(txn *badger.Txn) ([]Item, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixQueue)
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return nil, err
		}
	}
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		var item Item
		if err := getJSON(txn, offlineKey(id), &item); err != nil {
			return nil, fmt.Errorf("queue entry %s: %w", id, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func findItem(txn *badger.Txn, offlineID string) (*Item, error) {
	var item Item
	if err := getJSON(txn, offlineKey(offlineID), &item); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// putItem writes the item record and keeps the queue key in step with its state.
func putItem(txn *badger.Txn, item *Item) error {
	if err := setJSON(txn, offlineKey(item.OfflineID), item); err != nil {
		return err
	}
	if item.Queued() {
		return txn.Set(queueKey(item.Seq), []byte(item.OfflineID))
	}
	return txn.Delete(queueKey(item.Seq))
}

func cachedHoldings(txn *badger.Txn) ([]CachedHolding, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixHolding)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []CachedHolding
	for it.Rewind(); it.Valid(); it.Next() {
		var h CachedHolding
		if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &h) }); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// replaceHoldings drops the cached snapshot and writes hs in its place.
func replaceHoldings(txn *badger.Txn, hs []CachedHolding) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixHolding)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var stale [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		stale = append(stale, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return putHoldings(txn, hs)
}

func putHoldings(txn *badger.Txn, hs []CachedHolding) error {
	for i := range hs {
		if err := setJSON(txn, holdingKey(hs[i].ID), &hs[i]); err != nil {
			return err
		}
	}
	return nil
}

func refreshedAt(txn *badger.Txn) (*time.Time, error) {
	var t time.Time
	if err := getJSON(txn, []byte(keyRefreshed), &t); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// badgerLogger routes badger's internal logging through zerolog. badger is
// chatty at info level (compactions, value log GC), so only warnings and
// errors show above trace.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) { log.Error().Msgf("badger: "+f, v...) }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Warn().Msgf("badger: "+f, v...) }
func (badgerLogger) Infof(f string, v ...interface{}) { log.Trace().Msgf("badger: "+f, v...) }
func (badgerLogger) Debugf(f string, v ...interface{}) { log.Trace().Msgf("badger: "+f, v...) }
