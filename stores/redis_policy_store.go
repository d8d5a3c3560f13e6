package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPolicyStore keeps policy documents as JSON blobs (key:
// abac:policy:{name}) with one index set per domain (key:
// abac:policies:{domain}) for listing.
type RedisPolicyStore struct {
	client *redis.Client
}

func NewRedisPolicyStore(client *redis.Client) *RedisPolicyStore {
	return &RedisPolicyStore{client: client}
}

func (r *RedisPolicyStore) key(name string) string {
	return fmt.Sprintf("abac:policy:%s", name)
}

func (r *RedisPolicyStore) indexKey(domain string) string {
	return fmt.Sprintf("abac:policies:%s", domain)
}

func (r *RedisPolicyStore) Save(ctx context.Context, rec *PolicyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(rec.Name), data, 0).Err(); err != nil {
		return err
	}
	return r.client.SAdd(ctx, r.indexKey(rec.Domain), rec.Name).Err()
}

func (r *RedisPolicyStore) Get(ctx context.Context, name string) (*PolicyRecord, error) {
	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if err == redis.Nil {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := &PolicyRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RedisPolicyStore) List(ctx context.Context, domain string) ([]*PolicyRecord, error) {
	names, err := r.client.SMembers(ctx, r.indexKey(domain)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*PolicyRecord, 0, len(names))
	for _, name := range names {
		rec, err := r.Get(ctx, name)
		if err == ErrPolicyNotFound {
			// index entry outlived its document
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisPolicyStore) Delete(ctx context.Context, name string) error {
	rec, err := r.Get(ctx, name)
	if err == ErrPolicyNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key(name)).Err(); err != nil {
		return err
	}
	return r.client.SRem(ctx, r.indexKey(rec.Domain), name).Err()
}
