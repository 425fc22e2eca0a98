package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Profiles and rooms are hashes; the logs are lists appended with RPUSH and
// replayed with LRANGE.
const (
	fieldSocketID       = "socketID"
	fieldUsername       = "username"
	fieldConnectionDate = "connectionDate"
	fieldRoomName       = "roomName"
	fieldRoomPassword   = "roomPassword"
	fieldCreationDate   = "creationDate"
)

var createRoomScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'roomName') == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'roomName', ARGV[1], 'roomPassword', ARGV[2], 'creationDate', ARGV[3])
return 1
`)

var setUsernameScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'username', ARGV[1])
return 1
`)

// RedisStore keeps the hub state in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisStore wraps client. Every key is namespaced with prefix.
func NewRedisStore(client *redis.Client, prefix string, opts ...Option) *RedisStore {
	o := applyOptions(opts)
	return &RedisStore{client: client, prefix: prefix, log: o.log}
}

// NewRedisClient creates a client for the given address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) profileKey(id string) string { return s.prefix + "session:" + id }
func (s *RedisStore) roomKey(name string) string  { return s.prefix + "room:" + name }
func (s *RedisStore) chatKey(room string) string  { return s.roomKey(room) + ":historyChat" }
func (s *RedisStore) drawKey(room string) string  { return s.roomKey(room) + ":historyDraw" }

func (s *RedisStore) SaveProfile(ctx context.Context, profile Profile) error {
	return s.client.HSet(ctx, s.profileKey(profile.ID),
		fieldSocketID, profile.ID,
		fieldUsername, profile.Username,
		fieldConnectionDate, formatTime(profile.ConnectedAt),
	).Err()
}

func (s *RedisStore) LoadProfile(ctx context.Context, id string) (Profile, error) {
	fields, err := s.client.HGetAll(ctx, s.profileKey(id)).Result()
	if err != nil {
		return Profile{}, err
	}
	if len(fields) == 0 {
		return Profile{}, ErrNotFound
	}

	connectedAt, err := parseTime(fields[fieldConnectionDate])
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: bad connection date: %w", id, err)
	}

	return Profile{
		ID:          fields[fieldSocketID],
		Username:    fields[fieldUsername],
		ConnectedAt: connectedAt,
	}, nil
}

func (s *RedisStore) SetUsername(ctx context.Context, id, username string) error {
	updated, err := setUsernameScript.Run(ctx, s.client, []string{s.profileKey(id)}, username).Int()
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteProfile(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.profileKey(id)).Err()
}

func (s *RedisStore) CreateRoom(ctx context.Context, room Room) (bool, error) {
	created, err := createRoomScript.Run(ctx, s.client, []string{s.roomKey(room.Name)},
		room.Name, room.Password, formatTime(room.CreatedAt)).Int()
	if err != nil {
		return false, err
	}
	return created == 1, nil
}

func (s *RedisStore) LoadRoom(ctx context.Context, name string) (Room, error) {
	fields, err := s.client.HGetAll(ctx, s.roomKey(name)).Result()
	if err != nil {
		return Room{}, err
	}
	roomName, ok := fields[fieldRoomName]
	if !ok {
		return Room{}, ErrNotFound
	}

	createdAt, err := parseTime(fields[fieldCreationDate])
	if err != nil {
		return Room{}, fmt.Errorf("room %s: bad creation date: %w", name, err)
	}

	return Room{
		Name:      roomName,
		Password:  fields[fieldRoomPassword],
		CreatedAt: createdAt,
	}, nil
}

func (s *RedisStore) AppendChat(ctx context.Context, room string, entry ChatEntry) error {
	return s.client.RPush(ctx, s.chatKey(room), EncodeChat(entry)).Err()
}

func (s *RedisStore) ChatHistory(ctx context.Context, room string) ([]ChatEntry, error) {
	records, err := s.client.LRange(ctx, s.chatKey(room), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeChatRecords(records, s.log.With(zap.String("room", room))), nil
}

func (s *RedisStore) AppendStroke(ctx context.Context, room string, entry StrokeEntry) error {
	return s.client.RPush(ctx, s.drawKey(room), EncodeStroke(entry)).Err()
}

func (s *RedisStore) StrokeHistory(ctx context.Context, room string) ([]StrokeEntry, error) {
	records, err := s.client.LRange(ctx, s.drawKey(room), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeStrokeRecords(records, s.log.With(zap.String("room", room))), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
