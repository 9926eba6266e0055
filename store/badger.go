package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "model/"

// Badger is a Store implementation backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool

	// Logger receives badger warnings and errors. If nil, uses slog.Default().
	Logger *slog.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogLogger{logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func modelKey(word string) []byte { return []byte(keyPrefix + word) }

func (b *Badger) Put(_ context.Context, rec *Record) error {
	if rec.Word == "" {
		return errors.New("store: record has no word")
	}
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %q: %w", rec.Word, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(modelKey(rec.Word), val)
	})
}

func (b *Badger) Get(_ context.Context, word string) (*Record, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey(word))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, word)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := msgpack.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode %q: %w", word, err)
	}
	return &rec, nil
}

func (b *Badger) List(_ context.Context) ([]*Record, error) {
	var recs []*Record
	prefix := []byte(keyPrefix)
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec Record
				if err := msgpack.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				recs = append(recs, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return recs, err
}

func (b *Badger) Delete(_ context.Context, word string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(modelKey(word))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogLogger forwards badger warnings and errors to slog, dropping the
// info and debug chatter.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Errorf(f string, v ...any)   { s.l.Error(fmt.Sprintf(f, v...)) }
func (s slogLogger) Warningf(f string, v ...any) { s.l.Warn(fmt.Sprintf(f, v...)) }
func (slogLogger) Infof(string, ...any)          {}
func (slogLogger) Debugf(string, ...any)         {}

var _ badger.Logger = slogLogger{}
var _ Store = (*Badger)(nil)
