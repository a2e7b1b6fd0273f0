// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and hot-reload propagation.

package control

import (
	"strconv"
	"sync"

	"github.com/momentics/ixmap-go/api"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// NewNicConfigStore seeds a ConfigStore from a set of per-run NIC
// configurations, one per port, keyed nic.<index>.<field>. This is the
// static per-run configuration spec.md's nic_open negotiates against:
// interface names, requested queue count, budget, interrupt rate, MTU,
// promiscuous flag — captured once at startup so cmd/ixmap-forward and any
// future hot-reload path share one source of truth instead of each port
// threading its own api.NicConfig value around.
func NewNicConfigStore(ports []api.NicConfig) *ConfigStore {
	cs := NewConfigStore()
	flat := make(map[string]any, len(ports)*6)
	for i, p := range ports {
		flat[nicKey(i, "interface_name")] = p.InterfaceName
		flat[nicKey(i, "request_queues")] = p.RequestQueues
		flat[nicKey(i, "budget")] = p.Budget
		flat[nicKey(i, "intr_rate")] = p.IntrRate
		flat[nicKey(i, "mtu")] = p.MTU
		flat[nicKey(i, "promisc")] = p.Promisc
	}
	cs.SetConfig(flat)
	return cs
}

func nicKey(port int, field string) string {
	return "nic." + strconv.Itoa(port) + "." + field
}

// Budget returns the configured per-cycle packet budget for port idx, or
// the provided default if unset.
func (cs *ConfigStore) Budget(idx int, def uint32) uint32 {
	v, ok := cs.get(nicKey(idx, "budget"))
	if !ok {
		return def
	}
	n, ok := v.(uint32)
	if !ok {
		return def
	}
	return n
}

// InterfaceName returns the configured interface name for port idx.
func (cs *ConfigStore) InterfaceName(idx int) (string, bool) {
	v, ok := cs.get(nicKey(idx, "interface_name"))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (cs *ConfigStore) get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	snap := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		snap[k] = v
	}
	return snap
}

// SetConfig merges new values and dispatches reload. Listeners registered
// on this store via OnReload are started first, then every global hook
// registered via RegisterReloadHook — the former for components holding a
// reference to this specific store, the latter for components (metrics,
// debug probes) that only care that a reload happened somewhere. Each
// listener and hook runs on its own goroutine, so the order in which they
// finish is not defined.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
	cs.mu.Unlock()
	TriggerHotReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
