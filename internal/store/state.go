package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// DefaultStatePrefix is the key prefix graph state is stored under
const DefaultStatePrefix = "graph:state:"

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("not found")

// RedisStateStore implements ports.StateStorage on plain Redis string keys
// holding JSON documents
type RedisStateStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStateStore creates a state store. An empty prefix means
// DefaultStatePrefix.
func NewRedisStateStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStateStore {
	if prefix == "" {
		prefix = DefaultStatePrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStateStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStateStore) key(executionID string) string {
	return s.prefix + executionID
}

// Save saves graph state
func (s *RedisStateStore) Save(ctx context.Context, executionID string, st state.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// keep the TTL set by the orchestrator
	if err := s.client.Set(ctx, s.key(executionID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load loads graph state
func (s *RedisStateStore) Load(ctx context.Context, executionID string) (state.State, error) {
	raw, err := s.LoadRaw(ctx, executionID)
	if err != nil {
		return nil, err
	}

	var st state.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return st, nil
}

// LoadRaw returns the stored JSON document
func (s *RedisStateStore) LoadRaw(ctx context.Context, executionID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(executionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("state for execution %s: %w", executionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return data, nil
}

// Delete deletes graph state
func (s *RedisStateStore) Delete(ctx context.Context, executionID string) error {
	if err := s.client.Del(ctx, s.key(executionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Exists checks if state exists for an execution
func (s *RedisStateStore) Exists(ctx context.Context, executionID string) (bool, error) {
	result, err := s.client.Exists(ctx, s.key(executionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return result > 0, nil
}

// SetTTL sets a time-to-live for state data
func (s *RedisStateStore) SetTTL(ctx context.Context, executionID string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, s.key(executionID), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set TTL: %w", err)
	}
	return nil
}

// List returns all execution IDs that have stored state
func (s *RedisStateStore) List(ctx context.Context) ([]string, error) {
	keys, err := scanKeys(ctx, s.client, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	executionIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		if id := strings.TrimPrefix(key, s.prefix); id != "" {
			executionIDs = append(executionIDs, id)
		}
	}
	return executionIDs, nil
}

// SaveState persists graph state (compatibility method)
func (s *RedisStateStore) SaveState(ctx context.Context, st interface{}) error {
	stateMap, ok := st.(map[string]interface{})
	if !ok {
		if typed, isState := st.(state.State); isState {
			stateMap = typed
		} else {
			return fmt.Errorf("expected map[string]interface{}, got %T", st)
		}
	}

	executionID, ok := stateMap["graph_id"].(string)
	if !ok {
		executionID, ok = stateMap["execution_id"].(string)
		if !ok {
			return fmt.Errorf("state missing graph_id or execution_id field")
		}
	}

	return s.Save(ctx, executionID, state.State(stateMap))
}

// GetState retrieves graph state (compatibility method)
func (s *RedisStateStore) GetState(ctx context.Context, graphID string) (interface{}, error) {
	return s.Load(ctx, graphID)
}

// Lookup resolves gjson paths against the stored state document. Paths that
// do not match are left out of the result.
func (s *RedisStateStore) Lookup(ctx context.Context, executionID string, paths map[string]string) (map[string]interface{}, error) {
	raw, err := s.LoadRaw(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return LookupPaths(raw, paths), nil
}

// SetOutput writes value at path inside the stored state document
func (s *RedisStateStore) SetOutput(ctx context.Context, executionID, path string, value interface{}) error {
	raw, err := s.LoadRaw(ctx, executionID)
	if err != nil {
		return err
	}

	updated, err := sjson.SetBytes(raw, path, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}

	if err := s.client.Set(ctx, s.key(executionID), updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("state output written",
		zap.String("execution_id", executionID),
		zap.String("path", path),
	)
	return nil
}

// LookupPaths resolves every gjson path in paths against a JSON document
func LookupPaths(doc []byte, paths map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(paths))
	for name, path := range paths {
		result := gjson.GetBytes(doc, path)
		if !result.Exists() {
			continue
		}
		out[name] = result.Value()
	}
	return out
}

// EscapePathComponent escapes characters with a meaning in gjson and sjson
// paths so an identifier can be used as a single path component
func EscapePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '|', '#', '@', '!', '\\', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanKeys(ctx context.Context, client *redis.Client, match string) ([]string, error) {
	var keys []string
	iter := client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
