package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	entryPrefix = "cache/"
	indexPrefix = "idx/"
)

// persistentTier stores entries in BadgerDB as JSON envelopes under
// cache/<id>, with an address index under idx/<address>/<id>.
type persistentTier struct {
	db *badger.DB
}

// zapBadgerLogger adapts zap to badger's Logger interface
type zapBadgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapBadgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *zapBadgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *zapBadgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *zapBadgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// openPersistent opens the badger store at path, or in memory when path is empty
func openPersistent(path string, logger *zap.Logger) (*persistentTier, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithNumVersionsToKeep(1).
		WithLogger(&zapBadgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &persistentTier{db: db}, nil
}

func entryKey(id string) []byte {
	return []byte(entryPrefix + id)
}

func indexKey(address, id string) []byte {
	return []byte(indexPrefix + address + "/" + id)
}

func (p *persistentTier) get(id string) (*Entry, bool, error) {
	var e Entry
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func (p *persistentTier) put(e Entry) error {
	e.Tier = TierPersistent
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(e.ID), data); err != nil {
			return err
		}
		if e.Address != "" {
			return txn.Set(indexKey(e.Address, e.ID), []byte{})
		}
		return nil
	})
}

// delete removes an entry and its index row; deleting a missing id is a no-op
func (p *persistentTier) delete(id, address string) (bool, error) {
	existed := false
	err := p.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(entryKey(id)); err == nil {
			existed = true
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete(entryKey(id)); err != nil {
			return err
		}
		if address != "" {
			return txn.Delete(indexKey(address, id))
		}
		return nil
	})
	return existed, err
}

func (p *persistentTier) keysFor(address string) ([]string, error) {
	prefix := []byte(indexPrefix + address + "/")
	var ids []string
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

func (p *persistentTier) count() (int, error) {
	n := 0
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// purgeExpired deletes every entry expired at now and returns the count
func (p *persistentTier) purgeExpired(now time.Time) (int, error) {
	type victim struct{ id, address string }
	var victims []victim

	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				// Undecodable rows are unusable; treat them as expired
				id := string(it.Item().Key()[len(entryPrefix):])
				victims = append(victims, victim{id: id})
				continue
			}
			if e.Expired(now) {
				victims = append(victims, victim{id: e.ID, address: e.Address})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, v := range victims {
		if _, err := p.delete(v.id, v.address); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (p *persistentTier) close() error {
	return p.db.Close()
}
