package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTemplatePrefix is the key prefix templates are stored under
const DefaultTemplatePrefix = "relnotes:template:"

// TemplateStore keeps release note templates in Redis. A template is stored
// as a JSON array of lines; plain text values are split on newlines.
type TemplateStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewTemplateStore creates a template store. An empty prefix means
// DefaultTemplatePrefix.
func NewTemplateStore(client *redis.Client, prefix string, logger *zap.Logger) *TemplateStore {
	if prefix == "" {
		prefix = DefaultTemplatePrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Get returns the lines of the template stored under name
func (s *TemplateStore) Get(ctx context.Context, name string) ([]string, error) {
	data, err := s.client.Get(ctx, s.prefix+name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("template %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	lines, err := DecodeTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}

	s.logger.Debug("template loaded",
		zap.String("template", name),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}

// Put stores a template. A zero ttl keeps it forever.
func (s *TemplateStore) Put(ctx context.Context, name string, lines []string, ttl time.Duration) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+name, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// Delete removes a template
func (s *TemplateStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.prefix+name).Err(); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// List returns the names of all stored templates
func (s *TemplateStore) List(ctx context.Context) ([]string, error) {
	keys, err := scanKeys(ctx, s.client, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, s.prefix))
	}
	return names, nil
}

// DecodeTemplate parses a stored template value
func DecodeTemplate(data string) ([]string, error) {
	if strings.HasPrefix(strings.TrimSpace(data), "[") {
		var lines []string
		if err := json.Unmarshal([]byte(data), &lines); err != nil {
			return nil, fmt.Errorf("invalid template lines: %w", err)
		}
		return lines, nil
	}
	return strings.Split(data, "\n"), nil
}
