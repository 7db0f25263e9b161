// Package store persists the two user-facing collections that outlive
// sessions: saved items and the named collections that group them.
//
// Both live in badger as whole serialized lists under fixed keys, and
// every mutation is a read-modify-write inside one transaction. The
// lists stay small (a person's saved designs, not a firehose), so
// whole-list writes keep the layout trivially consistent.
package store

import (
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/pkg/uuidx"
)

// ErrNotFound reports a lookup for an id that is not in the store.
var ErrNotFound = errors.New("store: not found")

var (
	savedItemsKey  = []byte("saved-items")
	collectionsKey = []byte("collections")
)

// SavedItem is one artifact a user chose to keep.
type SavedItem struct {
	ID      uuid.UUID       `json:"id"`
	Label   string          `json:"label"`
	HTML    string          `json:"html"`
	SavedAt strfmt.DateTime `json:"saved_at"`
}

// Collection is a named grouping of saved items.
type Collection struct {
	ID      uuid.UUID   `json:"id"`
	Name    string      `json:"name"`
	ItemIDs []uuid.UUID `json:"item_ids"`
}

// Store wraps the badger database.
type Store struct {
	db *badger.DB
}

// Open opens or creates an on-disk store.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, for tests and dry runs.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SavedItems returns every saved item, oldest first.
func (s *Store) SavedItems() ([]SavedItem, error) {
	var items []SavedItem
	err := s.db.View(func(txn *badger.Txn) error {
		return readList(txn, savedItemsKey, &items)
	})
	return items, err
}

// SaveItem appends a new saved item and returns it with its assigned id
// and timestamp.
func (s *Store) SaveItem(label, html string) (SavedItem, error) {
	item := SavedItem{
		ID:      uuidx.New(),
		Label:   label,
		HTML:    html,
		SavedAt: strfmt.DateTime(time.Now()),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var items []SavedItem
		if err := readList(txn, savedItemsKey, &items); err != nil {
			return err
		}
		return writeList(txn, savedItemsKey, append(items, item))
	})
	if err != nil {
		return SavedItem{}, err
	}
	return item, nil
}

// DeleteItem removes a saved item and drops it from every collection.
func (s *Store) DeleteItem(id uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var items []SavedItem
		if err := readList(txn, savedItemsKey, &items); err != nil {
			return err
		}
		idx := -1
		for i, item := range items {
			if item.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		items = append(items[:idx], items[idx+1:]...)
		if err := writeList(txn, savedItemsKey, items); err != nil {
			return err
		}

		var collections []Collection
		if err := readList(txn, collectionsKey, &collections); err != nil {
			return err
		}
		for i := range collections {
			collections[i].ItemIDs = without(collections[i].ItemIDs, id)
		}
		return writeList(txn, collectionsKey, collections)
	})
}

// Collections returns every collection, oldest first.
func (s *Store) Collections() ([]Collection, error) {
	var collections []Collection
	err := s.db.View(func(txn *badger.Txn) error {
		return readList(txn, collectionsKey, &collections)
	})
	return collections, err
}

// CreateCollection adds a new empty collection.
func (s *Store) CreateCollection(name string) (Collection, error) {
	collection := Collection{ID: uuidx.New(), Name: name}
	err := s.db.Update(func(txn *badger.Txn) error {
		var collections []Collection
		if err := readList(txn, collectionsKey, &collections); err != nil {
			return err
		}
		return writeList(txn, collectionsKey, append(collections, collection))
	})
	if err != nil {
		return Collection{}, err
	}
	return collection, nil
}

// AddToCollection puts a saved item into a collection. Adding an item
// that is already present is a no-op.
func (s *Store) AddToCollection(collectionID, itemID uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var items []SavedItem
		if err := readList(txn, savedItemsKey, &items); err != nil {
			return err
		}
		found := false
		for _, item := range items {
			if item.ID == itemID {
				found = true
				break
			}
		}
		if !found {
			return ErrNotFound
		}

		var collections []Collection
		if err := readList(txn, collectionsKey, &collections); err != nil {
			return err
		}
		for i := range collections {
			if collections[i].ID != collectionID {
				continue
			}
			for _, existing := range collections[i].ItemIDs {
				if existing == itemID {
					return nil
				}
			}
			collections[i].ItemIDs = append(collections[i].ItemIDs, itemID)
			return writeList(txn, collectionsKey, collections)
		}
		return ErrNotFound
	})
}

// DeleteCollection removes a collection. Its items stay saved.
func (s *Store) DeleteCollection(id uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var collections []Collection
		if err := readList(txn, collectionsKey, &collections); err != nil {
			return err
		}
		for i := range collections {
			if collections[i].ID == id {
				collections = append(collections[:i], collections[i+1:]...)
				return writeList(txn, collectionsKey, collections)
			}
		}
		return ErrNotFound
	})
}

func readList[T any](txn *badger.Txn, key []byte, dst *[]T) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func writeList[T any](txn *badger.Txn, key []byte, list []T) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func without(ids []uuid.UUID, drop uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
