// Package browser manages the pool of browser instances the test engine
// drives through Playwright.
//
// The package is built around two core concepts:
//
// 1. Instance: one browser process with its automation context and open tabs
// 2. Pool: the named collection of instances with a single "active" pointer
//
// # Instance Lifecycle
//
// Instances follow this lifecycle:
//
//  1. Spawn: Pool.Spawn launches a browser bound to a profile directory
//     (shared, isolated, or custom) and attaches an automation context
//  2. Use: commands are routed to the instance; tab operations (NewTab,
//     SwitchTab, CloseTab) are serialized per instance
//  3. Despawn: Pool.Despawn closes context then process; killing an
//     already-exited process is best-effort and never fails
//  4. Shutdown: Pool.Shutdown closes every instance and stops Playwright
//
// # Routing
//
// Commands may carry an @name or @name:tab target. Pool.Route resolves the
// target to a concrete instance, falling back to the pool's active instance,
// and performs any requested tab switch before returning the handle. Tab
// switching is a side effect of routing so callers never operate on the
// wrong tab.
//
// # Concurrency
//
// Pool lookups (Get, Active, List) take a read lock and never block on
// in-flight spawns of unrelated instances. Spawn and Despawn of the same
// name are mutually exclusive. Within one instance, tab mutations are
// linearized by a per-instance mutex.
package browser
