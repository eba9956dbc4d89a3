package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
)

// ConsulProvider loads config from a Consul KV key and watches it with
// blocking queries.
type ConsulProvider struct {
	client *api.Client
	key    string
}

// NewConsulProvider connects to the first endpoint and reads the given key.
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("consul endpoints are required")
	}
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = endpoints[0]

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{client: client, key: key}, nil
}

func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.client.KV().Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch polls the key with blocking queries and signals whenever the
// ModifyIndex advances.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)

		var lastIndex uint64
		for {
			opts := (&api.QueryOptions{
				WaitIndex: lastIndex,
				WaitTime:  5 * time.Minute,
			}).WithContext(ctx)

			pair, meta, err := p.client.KV().Get(p.key, opts)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.Error("Consul watch error", "key", p.key, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if pair == nil || meta == nil {
				continue
			}

			if lastIndex != 0 && meta.LastIndex != lastIndex {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
			lastIndex = meta.LastIndex
		}
	}()

	return ch, nil
}

func (p *ConsulProvider) Close() error {
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
