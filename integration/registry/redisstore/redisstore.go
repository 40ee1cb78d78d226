// Package redisstore is a Redis broker.Registry.
//
// Pending requests are JSON documents in a hash keyed by id; fulfilled ids move to a
// set of retired ids so they are never accepted again. A transaction stages its writes
// in memory and applies them with one Lua script that validates every write before
// applying any, so a commit is atomic even with several brokers sharing the server.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/arbiter/core/broker"
)

// DefaultPrefix namespaces the registry keys.
const DefaultPrefix = "arbiter:requests:"

const (
	errDuplicate = "DUPLICATE"
	errUnknown   = "UNKNOWN"
)

// commitScript validates the staged inserts and takes, then applies them.
// KEYS[1] pending hash, KEYS[2] retired set, KEYS[3] last sequence,
// ARGV[1] JSON {inserts, takes}.
var commitScript = redis.NewScript(`
local batch = cjson.decode(ARGV[1])
local inserts = batch.inserts or {}
local takes = batch.takes or {}

for _, ins in ipairs(inserts) do
	if redis.call('HEXISTS', KEYS[1], ins.id) == 1 or redis.call('SISMEMBER', KEYS[2], ins.id) == 1 then
		return redis.error_reply('DUPLICATE ' .. ins.id)
	end
end

local staged = {}
for _, ins in ipairs(inserts) do
	staged[ins.id] = true
end
for _, id in ipairs(takes) do
	if not staged[id] and redis.call('HEXISTS', KEYS[1], id) == 0 then
		return redis.error_reply('UNKNOWN ' .. id)
	end
end

local last = tonumber(redis.call('GET', KEYS[3]) or '0')
for _, ins in ipairs(inserts) do
	redis.call('HSET', KEYS[1], ins.id, ins.body)
	if ins.seq > last then
		last = ins.seq
	end
end
if #inserts > 0 then
	redis.call('SET', KEYS[3], string.format('%d', last))
end
for _, id in ipairs(takes) do
	redis.call('HDEL', KEYS[1], id)
	redis.call('SADD', KEYS[2], id)
end
return 'OK'
`)

// Registry stores pending requests in Redis.
type Registry struct {
	client     redis.UniversalClient
	pendingKey string
	retiredKey string
	seqKey     string
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.pendingKey = prefix + "pending"
			r.retiredKey = prefix + "retired"
			r.seqKey = prefix + "seq"
		}
	}
}

// New creates a registry on client.
func New(client redis.UniversalClient, opts ...Option) *Registry {
	r := &Registry{
		client:     client,
		pendingKey: DefaultPrefix + "pending",
		retiredKey: DefaultPrefix + "retired",
		seqKey:     DefaultPrefix + "seq",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Begin(ctx context.Context) (broker.RegistryTx, error) {
	return &registryTx{
		registry: r,
		inserts:  make(map[broker.RequestID]broker.PendingRequest),
		takes:    make(map[broker.RequestID]struct{}),
	}, nil
}

func (r *Registry) Get(ctx context.Context, id broker.RequestID) (broker.PendingRequest, error) {
	data, err := r.client.HGet(ctx, r.pendingKey, string(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return broker.PendingRequest{}, broker.ErrUnknownRequest
	}
	if err != nil {
		return broker.PendingRequest{}, fmt.Errorf("failed to get request: %w", err)
	}

	var req broker.PendingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return broker.PendingRequest{}, fmt.Errorf("failed to decode request %s: %w", id, err)
	}
	return req, nil
}

func (r *Registry) Pending(ctx context.Context) ([]broker.PendingRequest, error) {
	values, err := r.client.HVals(ctx, r.pendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	out := make([]broker.PendingRequest, 0, len(values))
	for _, v := range values {
		var req broker.PendingRequest
		if err := json.Unmarshal([]byte(v), &req); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
		out = append(out, req)
	}

	broker.SortBySeq(out)
	return out, nil
}

func (r *Registry) LastSeq(ctx context.Context) (uint64, error) {
	last, err := r.client.Get(ctx, r.seqKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return last, nil
}

func (r *Registry) issued(ctx context.Context, id broker.RequestID) (bool, error) {
	pipe := r.client.Pipeline()
	pending := pipe.HExists(ctx, r.pendingKey, string(id))
	retired := pipe.SIsMember(ctx, r.retiredKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check request id: %w", err)
	}
	return pending.Val() || retired.Val(), nil
}

type registryTx struct {
	registry *Registry
	inserts  map[broker.RequestID]broker.PendingRequest
	takes    map[broker.RequestID]struct{}
	order    []broker.RequestID
	done     bool
}

func (t *registryTx) Insert(ctx context.Context, req broker.PendingRequest) error {
	if t.done {
		return broker.ErrTxDone
	}
	if _, ok := t.inserts[req.ID]; ok {
		return broker.ErrDuplicateRequest
	}
	if _, ok := t.takes[req.ID]; ok {
		return broker.ErrDuplicateRequest
	}

	issued, err := t.registry.issued(ctx, req.ID)
	if err != nil {
		return err
	}
	if issued {
		return broker.ErrDuplicateRequest
	}

	t.inserts[req.ID] = req
	t.order = append(t.order, req.ID)
	return nil
}

func (t *registryTx) Take(ctx context.Context, id broker.RequestID) (broker.PendingRequest, error) {
	if t.done {
		return broker.PendingRequest{}, broker.ErrTxDone
	}
	if _, ok := t.takes[id]; ok {
		return broker.PendingRequest{}, broker.ErrUnknownRequest
	}
	if req, ok := t.inserts[id]; ok {
		t.takes[id] = struct{}{}
		return req, nil
	}

	req, err := t.registry.Get(ctx, id)
	if err != nil {
		return broker.PendingRequest{}, err
	}
	t.takes[id] = struct{}{}
	return req, nil
}

type stagedInsert struct {
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"`
	Body string `json:"body"`
}

type batch struct {
	Inserts []stagedInsert `json:"inserts,omitempty"`
	Takes   []string       `json:"takes,omitempty"`
}

func (t *registryTx) Commit(ctx context.Context) error {
	if t.done {
		return broker.ErrTxDone
	}
	t.done = true

	if len(t.inserts) == 0 && len(t.takes) == 0 {
		return nil
	}

	// cjson turns null into a truthy sentinel, so empty lists are omitted.
	b := batch{}
	for _, id := range t.order {
		body, err := json.Marshal(t.inserts[id])
		if err != nil {
			return fmt.Errorf("failed to encode request %s: %w", id, err)
		}
		b.Inserts = append(b.Inserts, stagedInsert{ID: string(id), Seq: t.inserts[id].Seq, Body: string(body)})
	}
	for id := range t.takes {
		b.Takes = append(b.Takes, string(id))
	}

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	err = commitScript.Run(ctx, t.registry.client, []string{t.registry.pendingKey, t.registry.retiredKey, t.registry.seqKey}, string(payload)).Err()
	switch {
	case err == nil:
		return nil
	case strings.HasPrefix(err.Error(), errDuplicate):
		return fmt.Errorf("%w: %s", broker.ErrDuplicateRequest, err)
	case strings.HasPrefix(err.Error(), errUnknown):
		return fmt.Errorf("%w: %s", broker.ErrUnknownRequest, err)
	default:
		return fmt.Errorf("failed to commit registry batch: %w", err)
	}
}

func (t *registryTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
