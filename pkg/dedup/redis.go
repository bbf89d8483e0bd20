package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// Redis stores markers as plain keys under a namespace. Mark relies on
// SETNX, so concurrent markers for the same key have exactly one winner.
type Redis struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedis wraps a client. Namespace defaults to "sg:dedup:".
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	if namespace == "" {
		namespace = "sg:dedup:"
	}
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) Check(ctx context.Context, key Key) (bool, error) {
	n, err := r.client.Exists(ctx, r.namespace+key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check marker: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Mark(ctx context.Context, key Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.namespace+key.String(), time.Now().UTC().Unix(), 0).Result()
	if err != nil {
		return false, fmt.Errorf("mark marker: %w", err)
	}
	return ok, nil
}

func (r *Redis) ClearPrefix(ctx context.Context, prefix string) (int64, error) {
	return r.deleteMatching(ctx, r.namespace+escapeGlob(prefix)+"*", func(raw string) bool {
		return strings.HasPrefix(raw, prefix)
	})
}

func (r *Redis) Prune(ctx context.Context, subject, keepScope string) (int64, error) {
	return r.deleteMatching(ctx, r.namespace+escapeGlob(SubjectPrefix(subject))+"*", func(raw string) bool {
		k, err := ParseKey(raw)
		return err == nil && k.Scope != keepScope
	})
}

func (r *Redis) deleteMatching(ctx context.Context, pattern string, match func(string) bool) (int64, error) {
	var batch []string
	var total int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("delete markers: %w", err)
		}
		total += n
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		if !match(strings.TrimPrefix(full, r.namespace)) {
			continue
		}
		batch = append(batch, full)
		if len(batch) >= scanBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("scan markers: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
