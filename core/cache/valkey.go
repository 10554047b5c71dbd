package cache

import (
	"context"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// ValkeyStore implements Store on a valkey-go client.
type ValkeyStore struct {
	client valkeylib.Client
}

// NewValkeyStore wraps an existing client. The store owns the client after this call.
func NewValkeyStore(client valkeylib.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.client.B().Set().Key(key).Value(valkeylib.BinaryString(value))
	if ttl > 0 {
		return s.client.Do(ctx, set.Ex(ttl).Build()).Error()
	}
	return s.client.Do(ctx, set.Build()).Error()
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
