// Package browser wraps a go-rod Chrome session behind the checkout.Driver
// interface so the sequencer never touches rod directly.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"snapcart/internal/config"
)

// Session owns one Chrome instance for the duration of a run.
type Session struct {
	cfg      *config.Config
	log      *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	popup    *rod.Page
}

func NewSession(cfg *config.Config, log *zap.Logger) (*Session, error) {
	s := &Session{cfg: cfg, log: log}

	// Leakless deadlocks on Windows, see go-rod/rod#853.
	useLeakless := runtime.GOOS != "windows"

	s.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(cfg.Headless)

	if cfg.BrowserProfilePath != "" {
		s.launcher = s.launcher.UserDataDir(cfg.BrowserProfilePath)
	}

	if chromePath, ok := launcher.LookPath(); ok {
		s.launcher = s.launcher.Bin(chromePath)
		log.Debug("using system chrome", zap.String("path", chromePath))
	}

	url, err := s.launcher.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.browser = rod.New().ControlURL(url)
	if err := s.browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s.page, err = stealth.Page(s.browser)
	if err != nil {
		s.browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		_ = s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		})
	}

	return s, nil
}

// active returns the page the sequencer is currently driving: the PayPal
// popup when one is open, the main page otherwise.
func (s *Session) active() *rod.Page {
	if s.popup != nil {
		return s.popup
	}
	return s.page
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := s.active().Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("element %s not visible: %w", selector, err)
	}
	return nil
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	ok, _, err := s.active().Context(ctx).Has(selector)
	return ok, err
}

func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.find(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// find looks for selector on the active page first, then inside its iframes.
// The storefront renders the PayPal button inside a payment-provider iframe.
func (s *Session) find(ctx context.Context, selector string) (*rod.Element, error) {
	page := s.active().Context(ctx)

	if ok, el, err := page.Has(selector); err == nil && ok {
		return el, nil
	}

	frames, err := page.Elements("iframe")
	if err == nil {
		for _, frameEl := range frames {
			frame, err := frameEl.Frame()
			if err != nil {
				continue
			}
			if ok, el, err := frame.Has(selector); err == nil && ok {
				return el, nil
			}
		}
	}

	return nil, fmt.Errorf("no element matches %s", selector)
}

func (s *Session) ClickLast(ctx context.Context, selector string) error {
	els, err := s.active().Context(ctx).Elements(selector)
	if err != nil {
		return fmt.Errorf("elements %s: %w", selector, err)
	}
	if len(els) == 0 {
		return fmt.Errorf("no element matches %s", selector)
	}
	if err := els[len(els)-1].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click last %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Type(ctx context.Context, selector, text string) error {
	el, err := s.find(ctx, selector)
	if err != nil {
		return err
	}
	// Clear whatever the page pre-filled before typing.
	_ = el.SelectAllText()
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.find(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("text of %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) PageContains(ctx context.Context, text string) (bool, error) {
	html, err := s.active().Context(ctx).HTML()
	if err != nil {
		return false, err
	}
	return strings.Contains(html, text), nil
}

// variantRow locates the size row inside the color's table block using the
// configured XPath templates. The color name labels a table block; each size
// is a row inside it.
func (s *Session) variantRow(ctx context.Context, color, size string) (*rod.Element, error) {
	page := s.active().Context(ctx)

	block, err := page.ElementX(fmt.Sprintf(s.cfg.Selectors.ColorBlockXPath, color))
	if err != nil {
		return nil, fmt.Errorf("color %q not offered: %w", color, err)
	}

	row, err := block.ElementX(fmt.Sprintf(s.cfg.Selectors.SizeRowXPath, size))
	if err != nil {
		return nil, fmt.Errorf("size %q not offered in color %q: %w", size, color, err)
	}

	return row, nil
}

func (s *Session) VariantStock(ctx context.Context, color, size string) (string, error) {
	row, err := s.variantRow(ctx, color, size)
	if err != nil {
		return "", err
	}

	cell, err := row.Element(s.cfg.Selectors.StockStatus)
	if err != nil {
		return "", fmt.Errorf("stock cell: %w", err)
	}
	text, err := cell.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) AddVariantToBag(ctx context.Context, color, size string) error {
	row, err := s.variantRow(ctx, color, size)
	if err != nil {
		return err
	}

	btn, err := row.Element(s.cfg.Selectors.AddToBagButton)
	if err != nil {
		return fmt.Errorf("add-to-bag button: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("add to bag: %w", err)
	}
	return nil
}

func (s *Session) SwitchToPopup(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pages, err := s.browser.Pages()
		if err == nil && len(pages) > 1 {
			for _, p := range pages {
				if p.TargetID != s.page.TargetID {
					s.popup = p.Context(ctx)
					_ = s.popup.WaitLoad()
					s.log.Debug("switched to popup window")
					return nil
				}
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("no payment window opened within %s", timeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func (s *Session) ClosePopup(ctx context.Context) error {
	if s.popup == nil {
		return nil
	}
	err := s.popup.Close()
	s.popup = nil
	return err
}

// Close tears the session down: pages first, then the browser, then the
// launcher's temp state. Safe to call after a partial setup.
func (s *Session) Close() error {
	if s.popup != nil {
		s.popup.Close()
		s.popup = nil
	}
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	s.log.Debug("browser session closed")
	return nil
}
