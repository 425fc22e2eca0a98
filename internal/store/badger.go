package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// maxTxnAttempts bounds the retries of an update that lost an optimistic
// conflict against a concurrent transaction.
const maxTxnAttempts = 8

// BadgerStore keeps the hub state in an embedded Badger database. Lists are
// stored one key per entry under "<list>/<seq>" with the next sequence number
// kept in "<list>#len", so a prefix scan yields append order.
type BadgerStore struct {
	db     *badger.DB
	prefix string
	log    *zap.Logger
}

// NewBadgerStore wraps db. Every key is namespaced with prefix.
func NewBadgerStore(db *badger.DB, prefix string, opts ...Option) *BadgerStore {
	o := applyOptions(opts)
	return &BadgerStore{db: db, prefix: prefix, log: o.log}
}

// OpenBadger opens the database at path, or an in-memory database when path
// is empty.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

type badgerProfile struct {
	ID          string `json:"socketID"`
	Username    string `json:"username"`
	ConnectedAt string `json:"connectionDate"`
}

type badgerRoom struct {
	Name      string `json:"roomName"`
	Password  string `json:"roomPassword"`
	CreatedAt string `json:"creationDate"`
}

func (s *BadgerStore) profileKey(id string) []byte { return []byte(s.prefix + "session:" + id) }
func (s *BadgerStore) roomKey(name string) []byte  { return []byte(s.prefix + "room:" + name) }

// listKey length-prefixes the room name so that no room's entries share a
// key prefix with another room's.
func (s *BadgerStore) listKey(kind, room string) string {
	return fmt.Sprintf("%s%s:%d:%s", s.prefix, kind, len(room), room)
}

func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func (s *BadgerStore) SaveProfile(_ context.Context, profile Profile) error {
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, s.profileKey(profile.ID), badgerProfile{
			ID:          profile.ID,
			Username:    profile.Username,
			ConnectedAt: formatTime(profile.ConnectedAt),
		})
	})
}

func (s *BadgerStore) LoadProfile(_ context.Context, id string) (Profile, error) {
	var stored badgerProfile
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, s.profileKey(id), &stored)
	})
	if err != nil {
		return Profile{}, err
	}

	connectedAt, err := parseTime(stored.ConnectedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: bad connection date: %w", id, err)
	}
	return Profile{ID: stored.ID, Username: stored.Username, ConnectedAt: connectedAt}, nil
}

func (s *BadgerStore) SetUsername(_ context.Context, id, username string) error {
	return s.update(func(txn *badger.Txn) error {
		var stored badgerProfile
		if err := getJSON(txn, s.profileKey(id), &stored); err != nil {
			return err
		}
		stored.Username = username
		return setJSON(txn, s.profileKey(id), stored)
	})
}

func (s *BadgerStore) DeleteProfile(_ context.Context, id string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Delete(s.profileKey(id))
	})
}

func (s *BadgerStore) CreateRoom(_ context.Context, room Room) (bool, error) {
	var created bool
	err := s.update(func(txn *badger.Txn) error {
		created = false
		_, err := txn.Get(s.roomKey(room.Name))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		created = true
		return setJSON(txn, s.roomKey(room.Name), badgerRoom{
			Name:      room.Name,
			Password:  room.Password,
			CreatedAt: formatTime(room.CreatedAt),
		})
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *BadgerStore) LoadRoom(_ context.Context, name string) (Room, error) {
	var stored badgerRoom
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, s.roomKey(name), &stored)
	})
	if err != nil {
		return Room{}, err
	}

	createdAt, err := parseTime(stored.CreatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("room %s: bad creation date: %w", name, err)
	}
	return Room{Name: stored.Name, Password: stored.Password, CreatedAt: createdAt}, nil
}

func (s *BadgerStore) AppendChat(_ context.Context, room string, entry ChatEntry) error {
	return s.appendRecord(s.listKey("chat", room), EncodeChat(entry))
}

func (s *BadgerStore) ChatHistory(_ context.Context, room string) ([]ChatEntry, error) {
	records, err := s.readRecords(s.listKey("chat", room))
	if err != nil {
		return nil, err
	}
	return decodeChatRecords(records, s.log.With(zap.String("room", room))), nil
}

func (s *BadgerStore) AppendStroke(_ context.Context, room string, entry StrokeEntry) error {
	return s.appendRecord(s.listKey("draw", room), EncodeStroke(entry))
}

func (s *BadgerStore) StrokeHistory(_ context.Context, room string) ([]StrokeEntry, error) {
	records, err := s.readRecords(s.listKey("draw", room))
	if err != nil {
		return nil, err
	}
	return decodeStrokeRecords(records, s.log.With(zap.String("room", room))), nil
}

func (s *BadgerStore) appendRecord(list, record string) error {
	lenKey := []byte(list + "#len")
	return s.update(func(txn *badger.Txn) error {
		var next uint64
		item, err := txn.Get(lenKey)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				next = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		entryKey := []byte(fmt.Sprintf("%s/%020d", list, next))
		if err := txn.Set(entryKey, []byte(record)); err != nil {
			return err
		}
		counter := make([]byte, 8)
		binary.BigEndian.PutUint64(counter, next+1)
		return txn.Set(lenKey, counter)
	})
}

func (s *BadgerStore) readRecords(list string) ([]string, error) {
	prefix := []byte(list + "/")
	var records []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				records = append(records, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
