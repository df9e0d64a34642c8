// Package discovery publishes peer endpoints in etcd so that a mesh can be
// assembled without a static peer table. Each peer puts its endpoint under
// <prefix><name>, attached to a lease kept alive for the life of the process,
// then reads the prefix back to populate its directory.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/pkg/directory"
)

const DefaultPrefix = "/r2rmesh/peers/"

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

func PeerKey(prefix, name string) string {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + name
}

func EncodeEndpoint(ep directory.Endpoint) (string, error) {
	b, err := json.Marshal(ep)
	return string(b), err
}

// DecodeEndpoint parses a stored endpoint. The name falls back to the key suffix.
func DecodeEndpoint(prefix, key string, value []byte) (directory.Endpoint, error) {
	var ep directory.Endpoint
	if err := json.Unmarshal(value, &ep); err != nil {
		return ep, fmt.Errorf("decode %s: %w", key, err)
	}
	if ep.Name == "" {
		ep.Name = strings.TrimPrefix(key, PeerKey(prefix, ""))
	}
	return ep, nil
}

func endpointFromKV(prefix string, kv *mvccpb.KeyValue) (directory.Endpoint, error) {
	return DecodeEndpoint(prefix, string(kv.Key), kv.Value)
}

// RegisterPeer stores ep under a lease of ttl seconds and keeps the lease
// alive until the returned cancel func is called.
func RegisterPeer(cli *clientv3.Client, prefix string, ep directory.Endpoint, ttl int64, logger *zap.Logger) (clientv3.LeaseID, context.CancelFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lease, err := cli.Grant(context.TODO(), ttl)
	if err != nil {
		return 0, nil, err
	}
	val, err := EncodeEndpoint(ep)
	if err != nil {
		return 0, nil, err
	}
	if _, err := cli.Put(context.TODO(), PeerKey(prefix, ep.Name), val, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, err
	}
	go func() {
		for range ch {
		}
		logger.Debug("lease keepalive stopped", zap.String("peer", ep.Name))
	}()
	return lease.ID, cancel, nil
}

// LoadPeers returns every endpoint under prefix, sorted by name.
func LoadPeers(ctx context.Context, cli *clientv3.Client, prefix string) ([]directory.Endpoint, error) {
	resp, err := cli.Get(ctx, PeerKey(prefix, ""), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	peers := make([]directory.Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		ep, err := endpointFromKV(prefix, kv)
		if err != nil {
			return nil, err
		}
		peers = append(peers, ep)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers, nil
}

// WaitForPeers polls the prefix until at least n peers are registered or ctx is done.
func WaitForPeers(ctx context.Context, cli *clientv3.Client, prefix string, n int, every time.Duration) ([]directory.Endpoint, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		peers, err := LoadPeers(ctx, cli, prefix)
		if err == nil && len(peers) >= n {
			return peers, nil
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = fmt.Errorf("only %d of %d peers registered: %w", len(peers), n, ctx.Err())
			}
			return peers, err
		case <-ticker.C:
		}
	}
}
