package watch

import (
	"context"
	"sync"
	"time"

	"toolsyncd/internal/domain"
)

type fakeDirectory struct {
	mu            sync.Mutex
	services      []string
	listErr       error
	listCalls     int
	instances     map[string][]domain.ServiceInstance
	instanceErr   map[string]error
	instanceCalls map[string]int
	subscriptions map[string]int
	subscribeFns  map[string]func(service string)
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		instances:     make(map[string][]domain.ServiceInstance),
		instanceErr:   make(map[string]error),
		instanceCalls: make(map[string]int),
		subscriptions: make(map[string]int),
		subscribeFns:  make(map[string]func(string)),
	}
}

func (d *fakeDirectory) ListServices(ctx context.Context, group string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listCalls++
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]string(nil), d.services...), nil
}

func (d *fakeDirectory) ListInstances(ctx context.Context, service, group string) ([]domain.ServiceInstance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instanceCalls[service]++
	if err := d.instanceErr[service]; err != nil {
		return nil, err
	}
	return append([]domain.ServiceInstance(nil), d.instances[service]...), nil
}

func (d *fakeDirectory) Subscribe(ctx context.Context, service, group string, onChange func(service string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscriptions[service]++
	d.subscribeFns[service] = onChange
	return nil
}

func (d *fakeDirectory) setInstances(service string, instances ...domain.ServiceInstance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instances[service] = instances
}

func (d *fakeDirectory) totalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := d.listCalls
	for _, n := range d.instanceCalls {
		total += n
	}
	return total
}

type fakeConfigs struct {
	mu        sync.Mutex
	docs      map[string]string
	getErr    map[string]error
	getCalls  int
	listeners map[string]int
	listenFns map[string]func(key string)
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{
		docs:      make(map[string]string),
		getErr:    make(map[string]error),
		listeners: make(map[string]int),
		listenFns: make(map[string]func(string)),
	}
}

func (c *fakeConfigs) GetConfig(ctx context.Context, key, group string, timeout time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if err := c.getErr[key]; err != nil {
		return "", false, err
	}
	doc, ok := c.docs[key]
	return doc, ok, nil
}

func (c *fakeConfigs) AddListener(ctx context.Context, key, group string, onChange func(key string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[key]++
	c.listenFns[key] = onChange
	return nil
}

func (c *fakeConfigs) setDoc(key, doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[key] = doc
}

func (c *fakeConfigs) deleteDoc(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, key)
}

type fakeSink struct {
	mu        sync.Mutex
	ops       []string
	present   map[string]string // tool -> owning service
	upsertErr map[string]error
	removeErr map[string]error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		present:   make(map[string]string),
		upsertErr: make(map[string]error),
		removeErr: make(map[string]error),
	}
}

func (s *fakeSink) Upsert(ctx context.Context, def domain.ToolDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertErr[def.Name]; err != nil {
		return err
	}
	s.ops = append(s.ops, "upsert:"+def.Name)
	s.present[def.Name] = def.Service
	return nil
}

func (s *fakeSink) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeErr[name]; err != nil {
		return err
	}
	s.ops = append(s.ops, "remove:"+name)
	delete(s.present, name)
	return nil
}

func (s *fakeSink) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *fakeSink) presentTools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.present))
	for name := range s.present {
		names = append(names, name)
	}
	return names
}

func (s *fakeSink) removals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for _, op := range s.ops {
		if len(op) > 7 && op[:7] == "remove:" {
			removed = append(removed, op[7:])
		}
	}
	return removed
}

type fakeVersions struct {
	mu      sync.Mutex
	version string
	err     error
	calls   int
}

func (v *fakeVersions) FetchVersion(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return "", v.err
	}
	return v.version, nil
}

func (v *fakeVersions) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type fakeSnapshots struct {
	mu      sync.Mutex
	entries map[string][]string
	loadErr error
	saveErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{entries: make(map[string][]string)}
}

func (s *fakeSnapshots) Load() (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string][]string, len(s.entries))
	for service, tools := range s.entries {
		out[service] = append([]string(nil), tools...)
	}
	return out, nil
}

func (s *fakeSnapshots) Save(service string, tools []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries[service] = append([]string(nil), tools...)
	return nil
}

func (s *fakeSnapshots) Delete(service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, service)
	return nil
}

func (s *fakeSnapshots) get(service string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tools, ok := s.entries[service]
	return tools, ok
}

func healthyInstance() domain.ServiceInstance {
	return domain.ServiceInstance{Address: "10.0.0.1", Port: 8080, Healthy: true, Enabled: true}
}

func unhealthyInstance() domain.ServiceInstance {
	return domain.ServiceInstance{Address: "10.0.0.2", Port: 8080, Healthy: false, Enabled: true}
}

func disabledInstance() domain.ServiceInstance {
	return domain.ServiceInstance{Address: "10.0.0.3", Port: 8080, Healthy: true, Enabled: false}
}
