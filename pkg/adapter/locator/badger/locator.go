// Package badger implements a ServantLocator backed by an embedded
// dgraph-io/badger/v4 key-value store, for lazy servant activation: objects
// are registered once as opaque bytes keyed by identity, and a servant is
// constructed on demand the first time a request actually arrives for that
// identity, instead of every object needing a live in-memory Servant up
// front.
package badger

import (
	"context"
	"errors"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/servant"
)

// ActivateFunc builds a live Servant from the bytes stored for an identity.
// What the bytes mean (a blob pointer, a config record, ...) is entirely up
// to the caller; the locator only persists and retrieves them.
type ActivateFunc func(ctx context.Context, current servant.Current, value []byte) (servant.Servant, error)

// Locator is a ServantLocator over a badger database of identity -> value.
type Locator struct {
	db       *badgerdb.DB
	activate ActivateFunc
}

// Open opens (creating if absent) a badger database at dir and returns a
// Locator that activates servants via activate.
func Open(dir string, activate ActivateFunc) (*Locator, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(badgerLogAdapter{})
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, frosterr.Wrap(frosterr.KindInitializationError, err, "badger locator: open %s", dir)
	}
	return &Locator{db: db, activate: activate}, nil
}

// Close releases the underlying database.
func (l *Locator) Close() error { return l.db.Close() }

func identityKey(id identity.Identity) []byte {
	return []byte(id.String())
}

// Put persists value for id, making it locatable. It does not itself
// activate a Servant — that happens lazily on the first Locate.
func (l *Locator) Put(id identity.Identity, value []byte) error {
	return l.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(identityKey(id), value)
	})
}

// Delete removes id's stored record. A subsequent Locate for it falls
// through to ObjectNotExist (or another registered locator).
func (l *Locator) Delete(id identity.Identity) error {
	return l.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(identityKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Locate implements adapter.ServantLocator: a key miss returns (nil, nil,
// nil) so the adapter's lookup order falls through to the next locator
// (or ObjectNotExist) rather than treating "not in this store" as an error.
func (l *Locator) Locate(ctx context.Context, current servant.Current) (servant.Servant, any, error) {
	var value []byte
	err := l.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(identityKey(current.Identity))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, frosterr.Wrap(frosterr.KindObjectNotExist, err, "badger locator: lookup %s", current.Identity)
	}

	s, err := l.activate(ctx, current, value)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("badger locator: activated servant", "identity", current.Identity.String())
	return s, nil, nil
}

// Finished is a no-op: activation does not check anything back out that
// needs releasing.
func (l *Locator) Finished(ctx context.Context, current servant.Current, s servant.Servant, cookie any) {}

// badgerLogAdapter routes badger's internal logging through the structured
// logger instead of badger's own stderr logger.
type badgerLogAdapter struct{}

func (badgerLogAdapter) Errorf(format string, args ...any)   { logger.Errorf("badger: "+format, args...) }
func (badgerLogAdapter) Warningf(format string, args ...any) { logger.Warnf("badger: "+format, args...) }
func (badgerLogAdapter) Infof(format string, args ...any)    { logger.Infof("badger: "+format, args...) }
func (badgerLogAdapter) Debugf(format string, args ...any)   { logger.Debugf("badger: "+format, args...) }
