package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/sabio/grafana-ai-visualization-plugin/pkg/genai"
)

const maxConflictRetries = 3

// BadgerStore persists interactions in a badger database. Each interaction lives under
// interaction:<thread>:<seq> with a zero-padded sequence so prefix iteration yields
// insertion order.
type BadgerStore struct {
	db              *badger.DB
	maxInteractions int
}

// NewBadgerStore opens (or creates) the database at path
func NewBadgerStore(path string, maxInteractions int) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	return &BadgerStore{db: db, maxInteractions: normalizeLimit(maxInteractions)}, nil
}

func interactionPrefix(thread string) []byte {
	return []byte(fmt.Sprintf("interaction:%s:", thread))
}

func interactionKey(thread string, seq uint64) []byte {
	return []byte(fmt.Sprintf("interaction:%s:%020d", thread, seq))
}

// ownKey filters out keys of threads whose name extends thread with a colon
func ownKey(prefix, key []byte) bool {
	return len(key) == len(prefix)+20
}

func sequenceKey(thread string) []byte {
	return []byte(fmt.Sprintf("seq:%s", thread))
}

func (s *BadgerStore) Append(ctx context.Context, thread string, interaction genai.Interaction) error {
	data, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		seq, err := nextSequence(txn, thread)
		if err != nil {
			return err
		}
		if err := txn.Set(interactionKey(thread, seq), data); err != nil {
			return err
		}
		if s.maxInteractions <= 0 {
			return nil
		}

		keys := threadKeys(txn, thread)
		for len(keys) > s.maxInteractions {
			if err := txn.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

func (s *BadgerStore) Interactions(ctx context.Context, thread string) ([]genai.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	interactions := make([]genai.Interaction, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = interactionPrefix(thread)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !ownKey(opts.Prefix, it.Item().Key()) {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				var interaction genai.Interaction
				if err := json.Unmarshal(val, &interaction); err != nil {
					return fmt.Errorf("failed to decode interaction %s: %w", it.Item().Key(), err)
				}
				interactions = append(interactions, interaction)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapClosed(err)
	}
	return interactions, nil
}

func (s *BadgerStore) Reset(ctx context.Context, thread string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, key := range threadKeys(txn, thread) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(sequenceKey(thread))
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return wrapClosed(err)
}

func nextSequence(txn *badger.Txn, thread string) (uint64, error) {
	var seq uint64

	item, err := txn.Get(sequenceKey(thread))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence for thread %s", thread)
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, seq+1)
	if err := txn.Set(sequenceKey(thread), next); err != nil {
		return 0, err
	}
	return seq, nil
}

// threadKeys lists the thread's interaction keys, oldest first. Keys written earlier in
// txn are included.
func threadKeys(txn *badger.Txn, thread string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = interactionPrefix(thread)
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		if ownKey(opts.Prefix, it.Item().Key()) {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
	}
	return keys
}

func wrapClosed(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}
