package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"attendkiosk/internal/backend"
)

// Fixed storage keys, shared by every backend.
const (
	keyToken = "attendkiosk:token"
	keyUser  = "attendkiosk:user"
)

// Store persists a session outside process memory.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// FileStore keeps the session in a JSON file, the single-process analogue of
// browser local storage.
type FileStore struct {
	Path string
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the persisted session. A missing file is an absent session, not
// an error. A partially populated file is discarded.
func (f *FileStore) Load(_ context.Context) (Session, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session file: %w", err)
	}
	if !s.Active() {
		return Session{}, nil
	}
	return s, nil
}

// Save writes the session atomically via a temp file rename.
func (f *FileStore) Save(_ context.Context, s Session) error {
	if !s.Active() {
		return fmt.Errorf("refusing to persist partial session")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// Clear removes the session file.
func (f *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// RedisStore keeps the session in redis under the fixed keys, for stations
// where the agent and a separate UI process share one login.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis with short timeouts.
func NewRedisStore(addr string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisStore{client: client}
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load reads both keys. If either half is missing the session is treated as
// absent and the leftover key is removed.
func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	vals, err := r.client.MGet(ctx, keyToken, keyUser).Result()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	token, tokenOK := vals[0].(string)
	userRaw, userOK := vals[1].(string)
	if !tokenOK || !userOK || token == "" {
		if tokenOK != userOK {
			_ = r.client.Del(ctx, keyToken, keyUser).Err()
		}
		return Session{}, nil
	}
	var user backend.User
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		return Session{}, fmt.Errorf("decode stored user: %w", err)
	}
	return Session{Token: token, User: &user}, nil
}

// Save writes both keys in one MULTI block.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	if !s.Active() {
		return fmt.Errorf("refusing to persist partial session")
	}
	userRaw, err := json.Marshal(s.User)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyToken, s.Token, 0)
		pipe.Set(ctx, keyUser, userRaw, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear deletes both keys.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, keyToken, keyUser).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Healthy verifies redis connectivity.
func (r *RedisStore) Healthy(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}
