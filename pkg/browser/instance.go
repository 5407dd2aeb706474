package browser

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Instance is one independently addressable browser: a process, its
// automation context, and the set of open tabs. All tab mutations are
// serialized by the instance's mutex.
type Instance struct {
	// Name is the unique pool key for this instance.
	Name string

	// Browser is the owning Playwright browser process handle. Nil when the
	// instance was launched as a persistent context (profile-backed), in
	// which case Context owns the process.
	Browser playwright.Browser

	// Context is the automation context all tabs belong to.
	Context playwright.BrowserContext

	// Profile records how the instance's profile directory was derived.
	Profile ProfileMode

	// CreatedAt is when the instance finished launching.
	CreatedAt time.Time

	mu     sync.Mutex
	tabs   []Page
	active int

	sinkMu sync.Mutex
	sink   io.Writer

	// newPage creates a tab in the owning context. Set by the pool at spawn
	// time; nil for instances constructed directly in tests.
	newPage func() (Page, error)
}

// NewInstance creates an instance over the given tabs. The first tab is
// active. Production instances are created by Pool.Spawn; this constructor
// is also the seam tests use to build instances over fake pages.
func NewInstance(name string, tabs ...Page) *Instance {
	return &Instance{
		Name:      name,
		CreatedAt: time.Now(),
		tabs:      tabs,
	}
}

// TabCount returns the number of open tabs.
func (i *Instance) TabCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.tabs)
}

// ActiveIndex returns the index of the active tab.
func (i *Instance) ActiveIndex() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active
}

// ActiveTab returns the active tab.
func (i *Instance) ActiveTab() (Page, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.tabs) == 0 {
		return nil, fmt.Errorf("instance %q has no tabs", i.Name)
	}
	return i.tabs[i.active], nil
}

// TabURLs returns the URLs of all open tabs in order.
func (i *Instance) TabURLs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	urls := make([]string, len(i.tabs))
	for idx, tab := range i.tabs {
		urls[idx] = tab.URL()
	}
	return urls
}

// NewTab opens a tab, makes it active, and navigates it when url is
// non-empty. A navigation failure propagates but the tab remains created
// and active.
func (i *Instance) NewTab(targetURL string) (Page, error) {
	i.mu.Lock()
	if i.newPage == nil {
		i.mu.Unlock()
		return nil, fmt.Errorf("instance %q cannot open tabs: no context attached", i.Name)
	}
	page, err := i.newPage()
	if err != nil {
		i.mu.Unlock()
		return nil, fmt.Errorf("opening tab on %q: %w", i.Name, err)
	}
	i.tabs = append(i.tabs, page)
	i.active = len(i.tabs) - 1
	i.mu.Unlock()

	if targetURL != "" {
		if _, err := page.Goto(targetURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return page, fmt.Errorf("navigating new tab to %s: %w", targetURL, err)
		}
	}
	return page, nil
}

// SwitchTab makes the tab at index active. Fails with ErrTabOutOfRange for
// any index outside [0, TabCount).
func (i *Instance) SwitchTab(index int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if index < 0 || index >= len(i.tabs) {
		return fmt.Errorf("%w: %d (instance %q has %d tabs)", ErrTabOutOfRange, index, i.Name, len(i.tabs))
	}
	i.active = index
	return nil
}

// SwitchTabMatch activates the first tab whose URL contains fragment,
// compared case-insensitively. Fails with ErrNoTabMatch when nothing
// matches.
func (i *Instance) SwitchTabMatch(fragment string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	needle := strings.ToLower(fragment)
	for idx, tab := range i.tabs {
		if strings.Contains(strings.ToLower(tab.URL()), needle) {
			i.active = idx
			return nil
		}
	}
	return fmt.Errorf("%w: %q (instance %q)", ErrNoTabMatch, fragment, i.Name)
}

// SwitchTarget resolves a routing tab target: a decimal string is an index,
// anything else a URL fragment matcher.
func (i *Instance) SwitchTarget(target string) error {
	if index, err := strconv.Atoi(target); err == nil {
		return i.SwitchTab(index)
	}
	return i.SwitchTabMatch(target)
}

// CloseTab closes the tab at index, or the active tab when index is -1.
// The only tab of an instance can never be closed. After a close the active
// index is clamped back into range.
func (i *Instance) CloseTab(index int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if index == -1 {
		index = i.active
	}
	if index < 0 || index >= len(i.tabs) {
		return fmt.Errorf("%w: %d (instance %q has %d tabs)", ErrTabOutOfRange, index, i.Name, len(i.tabs))
	}
	if len(i.tabs) == 1 {
		return fmt.Errorf("%w (instance %q)", ErrLastTab, i.Name)
	}

	tab := i.tabs[index]
	i.tabs = append(i.tabs[:index], i.tabs[index+1:]...)
	if i.active >= len(i.tabs) {
		i.active = len(i.tabs) - 1
	}

	if err := tab.Close(); err != nil {
		return fmt.Errorf("closing tab %d on %q: %w", index, i.Name, err)
	}
	return nil
}

// FocusActiveTab brings the active tab to the foreground. Both halves of
// the operation are best-effort: a failure never propagates to the caller
// because automation continues to address the tab directly.
func (i *Instance) FocusActiveTab() {
	i.mu.Lock()
	if len(i.tabs) == 0 {
		i.mu.Unlock()
		return
	}
	tab := i.tabs[i.active]
	i.mu.Unlock()

	_ = tab.BringToFront()
}

// Navigate points the active tab at targetURL.
func (i *Instance) Navigate(targetURL string) error {
	tab, err := i.ActiveTab()
	if err != nil {
		return err
	}
	if _, err := tab.Goto(targetURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigating %q to %s: %w", i.Name, targetURL, err)
	}
	return nil
}

// Screenshot captures the active tab. Best-effort callers should treat an
// error as "no screenshot" rather than a step failure.
func (i *Instance) Screenshot() ([]byte, error) {
	tab, err := i.ActiveTab()
	if err != nil {
		return nil, err
	}
	shot, err := tab.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot of %q: %w", i.Name, err)
	}
	return shot, nil
}

// Domain returns the hostname of the active tab's URL, or "" when it cannot
// be determined.
func (i *Instance) Domain() string {
	tab, err := i.ActiveTab()
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(tab.URL())
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// AttachSink attaches the per-command output sink. Only the orchestrator
// mutates the sink, around a single command's lifetime.
func (i *Instance) AttachSink(w io.Writer) {
	i.sinkMu.Lock()
	defer i.sinkMu.Unlock()
	i.sink = w
}

// ReleaseSink detaches the output sink. Safe to call when none is attached.
func (i *Instance) ReleaseSink() {
	i.sinkMu.Lock()
	defer i.sinkMu.Unlock()
	i.sink = nil
}

// Announce writes a progress line to the attached sink, if any.
func (i *Instance) Announce(format string, args ...interface{}) {
	i.sinkMu.Lock()
	sink := i.sink
	i.sinkMu.Unlock()
	if sink == nil {
		return
	}
	fmt.Fprintf(sink, format+"\n", args...)
}

// Close releases the context and browser process. Process shutdown is
// best-effort: an already-exited process must not surface an error.
func (i *Instance) Close() {
	if i.Context != nil {
		_ = i.Context.Close()
	}
	if i.Browser != nil {
		_ = i.Browser.Close()
	}
}
