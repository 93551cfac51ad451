package nacos

import (
	"context"
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
)

// Subscribe registers an instance-change watcher for a service. The
// v1 open API has no usable push channel for this client, so a
// goroutine diff-polls the instance list and fires onChange when the
// fingerprint moves. Registering the same service and group again is a
// no-op.
func (c *Client) Subscribe(ctx context.Context, service, group string, onChange func(service string)) error {
	const op = "nacos.Subscribe"
	key := "ns:" + service + "@" + group
	return c.register(op, key, func(runCtx context.Context) {
		c.watchInstances(runCtx, service, group, onChange)
	})
}

// AddListener registers a config-change watcher for a key, emulated
// the same way via content fingerprints. Duplicate registration is a
// no-op.
func (c *Client) AddListener(ctx context.Context, key, group string, onChange func(key string)) error {
	const op = "nacos.AddListener"
	regKey := "cs:" + key + "@" + group
	return c.register(op, regKey, func(runCtx context.Context) {
		c.watchConfig(runCtx, key, group, onChange)
	})
}

func (c *Client) register(op, key string, run func(ctx context.Context)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.E(domain.CodeUnavailable, op, "client is closed", nil)
	}
	if _, ok := c.listeners[key]; ok {
		return nil
	}
	runCtx, cancel := context.WithCancel(c.root)
	c.listeners[key] = cancel
	go run(runCtx)
	return nil
}

func (c *Client) watchInstances(ctx context.Context, service, group string, onChange func(service string)) {
	ticker := time.NewTicker(c.listenPoll)
	defer ticker.Stop()

	last, known := c.instanceFingerprint(ctx, service, group)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, ok := c.instanceFingerprint(ctx, service, group)
		if !ok {
			continue
		}
		if !known {
			last, known = current, true
			continue
		}
		if current != last {
			last = current
			onChange(service)
		}
	}
}

func (c *Client) instanceFingerprint(ctx context.Context, service, group string) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, c.listenPoll)
	defer cancel()

	instances, err := c.ListInstances(callCtx, service, group)
	if err != nil {
		c.logger.Debug("instance watch poll failed",
			zap.String("service", service),
			zap.Error(err),
		)
		return "", false
	}
	parts := make([]string, 0, len(instances))
	for _, inst := range instances {
		parts = append(parts, fmt.Sprintf("%s:%d:%t:%t", inst.Address, inst.Port, inst.Healthy, inst.Enabled))
	}
	sort.Strings(parts)
	return strings.Join(parts, ","), true
}

func (c *Client) watchConfig(ctx context.Context, key, group string, onChange func(key string)) {
	ticker := time.NewTicker(c.listenPoll)
	defer ticker.Stop()

	last, known := c.configFingerprint(ctx, key, group)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, ok := c.configFingerprint(ctx, key, group)
		if !ok {
			continue
		}
		if !known {
			last, known = current, true
			continue
		}
		if current != last {
			last = current
			onChange(key)
		}
	}
}

// configFingerprint hashes the document content; Nacos itself keys
// change detection on content MD5.
func (c *Client) configFingerprint(ctx context.Context, key, group string) (string, bool) {
	document, present, err := c.GetConfig(ctx, key, group, c.listenPoll)
	if err != nil {
		c.logger.Debug("config watch poll failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", false
	}
	if !present {
		return "absent", true
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(document))), true
}
