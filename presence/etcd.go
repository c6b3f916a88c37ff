// Package presence's etcd-backed Registry uses etcd as a distributed
// phonebook for service instances:
//
//	Key:   /kataribe/{serviceName}/{addr}
//	Value: JSON-encoded Instance
//
// Registration leases are TTL-bound: if a server process dies without
// calling Deregister, the lease expires on its own and the entry
// disappears, so discovery never hands out a dead address indefinitely.
package presence

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/kataribe/"

// EtcdRegistry implements Registry on top of an etcd v3 client.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry dials the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the underlying etcd client connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

func serviceKey(serviceName, addr string) string {
	return keyPrefix + serviceName + "/" + addr
}

func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

// Register grants a TTL lease, writes instance under it, and starts a
// background goroutine renewing the lease until the process exits or
// Deregister removes the key outright.
//
// The lease ID is deliberately a local variable rather than a struct
// field: sharing one EtcdRegistry across many Register calls (one per
// locally hosted service) must not let concurrent calls race over who
// owns the lease.
func (r *EtcdRegistry) Register(serviceName string, instance Instance, ttlSeconds int64) error {
	ctx := context.Background()

	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err := r.client.Put(ctx, serviceKey(serviceName, instance.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	keepAlive, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range keepAlive {
		}
	}()
	return nil
}

// Deregister removes instance's advertisement immediately, ahead of
// lease expiry.
func (r *EtcdRegistry) Deregister(serviceName, addr string) error {
	_, err := r.client.Delete(context.Background(), serviceKey(serviceName, addr))
	return err
}

// Discover lists every instance currently registered under serviceName.
func (r *EtcdRegistry) Discover(serviceName string) ([]Instance, error) {
	resp, err := r.client.Get(context.Background(), servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-fetches the full instance set on every change under the
// service prefix, rather than reconstructing it from individual watch
// events — simpler, and cheap enough at presence-sized instance counts.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []Instance {
	out := make(chan []Instance, 1)
	prefix := servicePrefix(serviceName)

	go func() {
		defer close(out)
		watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(serviceName)
			if err != nil {
				continue
			}
			out <- instances
		}
	}()

	return out
}
