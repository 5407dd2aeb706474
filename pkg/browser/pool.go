package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/vouch/pkg/types"
)

// DefaultLaunchTimeout bounds how long a spawn waits for the browser
// process to expose its control endpoint.
const DefaultLaunchTimeout = 30 * time.Second

// PoolOptions configures a new Pool.
type PoolOptions struct {
	// Headless is the default mode for spawned instances.
	Headless bool

	// LaunchTimeout bounds browser startup. Zero means DefaultLaunchTimeout.
	LaunchTimeout time.Duration

	// ProfilesDir is the base directory for profile storage. Empty defaults
	// to ~/.vouch/browser.
	ProfilesDir string

	// Guard, when set, validates URLs before any pool-initiated navigation.
	Guard func(url string) error

	// MaxInstances caps how many instances may run at once. Zero means
	// unlimited.
	MaxInstances int
}

// SpawnOptions configures one instance spawn.
type SpawnOptions struct {
	// Profile selects the profile directory mode. Empty means shared.
	Profile ProfileMode

	// Headless overrides the pool default when set.
	Headless *bool

	// StartURL, when non-empty, is loaded in the active tab once the
	// instance exists.
	StartURL string
}

// Pool owns the collection of named browser instances and tracks which one
// is active. Lookups take a read lock; spawns of distinct names proceed
// concurrently while spawns of the same name are serialized by reserving
// the name up front.
type Pool struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	spawning  map[string]bool
	active    string

	pw          playwrightRuntime
	initialized bool

	opts PoolOptions
}

// playwrightRuntime is the slice of *playwright.Playwright the pool uses,
// kept as an interface so pool tests can run without a browser toolchain.
type playwrightRuntime interface {
	launch(userDataDir string, options playwright.BrowserTypeLaunchPersistentContextOptions) (playwright.BrowserContext, error)
	stop() error
}

type chromiumRuntime struct {
	pw *playwright.Playwright
}

func (r *chromiumRuntime) launch(userDataDir string, options playwright.BrowserTypeLaunchPersistentContextOptions) (playwright.BrowserContext, error) {
	return r.pw.Chromium.LaunchPersistentContext(userDataDir, options)
}

func (r *chromiumRuntime) stop() error {
	return r.pw.Stop()
}

// NewPool creates an uninitialized pool. Initialize must be called before
// the first Spawn.
func NewPool(opts PoolOptions) *Pool {
	if opts.LaunchTimeout == 0 {
		opts.LaunchTimeout = DefaultLaunchTimeout
	}
	return &Pool{
		instances: make(map[string]*Instance),
		spawning:  make(map[string]bool),
		opts:      opts,
	}
}

// Initialize installs and starts the Playwright driver. Safe to call more
// than once.
func (p *Pool) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	p.pw = &chromiumRuntime{pw: pw}
	p.initialized = true
	return nil
}

// Spawn launches a browser instance bound to a profile directory derived
// from the profile mode, waits for it to come up within the launch timeout,
// and registers it under name. The first instance registered while the pool
// has no active instance becomes active. When StartURL is set the active
// tab is navigated there after the instance exists; a navigation failure
// propagates but the instance stays registered.
func (p *Pool) Spawn(name string, opts SpawnOptions) (*Instance, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool not initialized")
	}
	if _, exists := p.instances[name]; exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if p.spawning[name] {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %q (spawn in progress)", ErrDuplicateName, name)
	}
	if p.opts.MaxInstances > 0 && len(p.instances)+len(p.spawning) >= p.opts.MaxInstances {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: limit %d", ErrPoolFull, p.opts.MaxInstances)
	}
	p.spawning[name] = true
	pw := p.pw
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.spawning, name)
		p.mu.Unlock()
	}()

	if opts.StartURL != "" && p.opts.Guard != nil {
		if err := p.opts.Guard(opts.StartURL); err != nil {
			return nil, err
		}
	}

	base := p.opts.ProfilesDir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".vouch", "browser")
	}
	dir, err := profileDir(base, opts.Profile, name)
	if err != nil {
		return nil, err
	}

	headless := p.opts.Headless
	if opts.Headless != nil {
		headless = *opts.Headless
	}
	timeoutMs := float64(p.opts.LaunchTimeout / time.Millisecond)

	context, err := pw.launch(dir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(headless),
		Timeout:  playwright.Float(timeoutMs),
	})
	if err != nil {
		return nil, &LaunchError{Name: name, Diagnostics: err.Error(), Err: err}
	}

	instance := &Instance{
		Name:      name,
		Context:   context,
		Profile:   opts.Profile,
		CreatedAt: time.Now(),
	}
	instance.newPage = func() (Page, error) {
		return context.NewPage()
	}

	// Persistent contexts open with one page; fall back to creating one.
	for _, page := range context.Pages() {
		instance.tabs = append(instance.tabs, page)
	}
	if len(instance.tabs) == 0 {
		page, err := context.NewPage()
		if err != nil {
			_ = context.Close()
			return nil, &LaunchError{Name: name, Diagnostics: err.Error(), Err: err}
		}
		instance.tabs = []Page{page}
	}

	p.mu.Lock()
	p.instances[name] = instance
	if p.active == "" {
		p.active = name
	}
	p.mu.Unlock()

	if opts.StartURL != "" {
		if err := instance.Navigate(opts.StartURL); err != nil {
			return instance, err
		}
	}
	return instance, nil
}

// Despawn removes the named instance and releases its resources. Removing
// the active instance promotes an arbitrary survivor, or clears the active
// pointer when the pool empties.
func (p *Pool) Despawn(name string) error {
	p.mu.Lock()
	instance, exists := p.instances[name]
	if !exists {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(p.instances, name)
	if p.active == name {
		p.active = ""
		for survivor := range p.instances {
			p.active = survivor
			break
		}
	}
	p.mu.Unlock()

	instance.Close()
	return nil
}

// Get returns the named instance.
func (p *Pool) Get(name string) (*Instance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	instance, exists := p.instances[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return instance, nil
}

// Active returns the pool's active instance.
func (p *Pool) Active() (*Instance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active == "" {
		return nil, ErrNoActiveInstance
	}
	return p.instances[p.active], nil
}

// ActiveName returns the name of the active instance, or "".
func (p *Pool) ActiveName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// SetActive makes the named instance the pool's active one.
func (p *Pool) SetActive(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.instances[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	p.active = name
	return nil
}

// Has reports whether the named instance exists.
func (p *Pool) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.instances[name]
	return exists
}

// InstanceInfo describes one pool member.
type InstanceInfo struct {
	Name      string
	Active    bool
	TabCount  int
	ActiveURL string
	Profile   ProfileMode
}

// List returns a snapshot of the pool's members.
func (p *Pool) List() []InstanceInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	infos := make([]InstanceInfo, 0, len(p.instances))
	for name, instance := range p.instances {
		info := InstanceInfo{
			Name:     name,
			Active:   name == p.active,
			TabCount: instance.TabCount(),
			Profile:  instance.Profile,
		}
		if tab, err := instance.ActiveTab(); err == nil {
			info.ActiveURL = tab.URL()
		}
		infos = append(infos, info)
	}
	return infos
}

// Route resolves a command to its target instance: the explicit target name
// when present, otherwise the pool's active instance. When the command also
// names a tab, the instance's active tab is switched before the handle is
// returned, so tab selection is a routing side effect rather than a step
// the caller has to remember.
func (p *Pool) Route(cmd types.Command) (*Instance, error) {
	var instance *Instance
	var err error
	if cmd.TargetInstance != "" {
		instance, err = p.Get(cmd.TargetInstance)
	} else {
		instance, err = p.Active()
	}
	if err != nil {
		return nil, err
	}

	if cmd.TargetTab != "" {
		if err := instance.SwitchTarget(cmd.TargetTab); err != nil {
			return nil, err
		}
		instance.FocusActiveTab()
	}
	return instance, nil
}

// Shutdown closes every instance and stops the Playwright driver.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, instance := range p.instances {
		instance.Close()
		delete(p.instances, name)
	}
	p.active = ""

	if p.initialized && p.pw != nil {
		if err := p.pw.stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		p.initialized = false
	}
	return nil
}

// insert registers a prebuilt instance, used by tests to fill the pool
// without launching browsers.
func (p *Pool) insert(instance *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[instance.Name] = instance
	if p.active == "" {
		p.active = instance.Name
	}
}
