package checkout

import (
	"context"
	"time"
)

// Driver is the browser-automation boundary the sequencer drives. The rod
// implementation lives in internal/browser; tests use a scripted fake.
type Driver interface {
	// Navigate opens url in the main page and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Exists reports whether the selector currently matches an element.
	Exists(ctx context.Context, selector string) (bool, error)

	// Click clicks the first element matching selector, searching iframes
	// when the main document has no match.
	Click(ctx context.Context, selector string) error

	// ClickLast clicks the last element matching selector.
	ClickLast(ctx context.Context, selector string) error

	// Type focuses the element matching selector and types text into it.
	Type(ctx context.Context, selector, text string) error

	// Text returns the trimmed text content of the first match.
	Text(ctx context.Context, selector string) (string, error)

	// PageContains reports whether the page source contains text.
	PageContains(ctx context.Context, text string) (bool, error)

	// VariantStock returns the stock label of the row matching a product's
	// color and size, e.g. "Sold Out".
	VariantStock(ctx context.Context, color, size string) (string, error)

	// AddVariantToBag clicks the add-to-bag control of the row matching
	// color and size.
	AddVariantToBag(ctx context.Context, color, size string) error

	// SwitchToPopup waits for a second window to open and makes it the
	// active page. ClosePopup closes it and reactivates the main window.
	SwitchToPopup(ctx context.Context, timeout time.Duration) error
	ClosePopup(ctx context.Context) error

	// Close releases the browser session.
	Close() error
}
