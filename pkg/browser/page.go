package browser

import "github.com/playwright-community/playwright-go"

// Page is the subset of playwright.Page the engine uses. Narrowing the
// surface keeps instances constructible with fake pages in tests.
type Page interface {
	URL() string
	Title() (string, error)
	Content() (string, error)
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Close(options ...playwright.PageCloseOptions) error
	BringToFront() error
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
	Evaluate(expression string, options ...interface{}) (interface{}, error)
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
}
