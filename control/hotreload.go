// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Package-level reload hooks for components that don't hold a reference to
// any one ConfigStore (metrics, debug probes, the CLI's own logging) but
// still want to react when some store's config changes. ConfigStore.SetConfig
// calls TriggerHotReload after starting its own per-instance listeners; every
// listener and hook runs on its own goroutine.

package control

var reloadHooks []func()

// RegisterReloadHook adds a component reload listener.
func RegisterReloadHook(fn func()) {
	reloadHooks = append(reloadHooks, fn)
}

// TriggerHotReload dispatches all reload hooks.
func TriggerHotReload() {
	for _, fn := range reloadHooks {
		go fn()
	}
}
