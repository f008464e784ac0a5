package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapcart/internal/config"
)

// fakeDriver scripts the browser boundary. Zero value behaves like a fully
// cooperative page: every element appears, every variant is in stock.
type fakeDriver struct {
	mu    sync.Mutex
	calls []driverCall

	exists         map[string]bool
	stock          map[string]string
	waitVisibleErr map[string]error
	pageText       string
	closed         bool
}

type driverCall struct {
	name string
	arg  string
	at   time.Time
}

func (d *fakeDriver) record(name, arg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, driverCall{name: name, arg: arg, at: time.Now()})
}

func (d *fakeDriver) firstCall(name, arg string) (driverCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c.name == name && (arg == "" || c.arg == arg) {
			return c, true
		}
	}
	return driverCall{}, false
}

func (d *fakeDriver) countCalls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.record("Navigate", url)
	return nil
}

func (d *fakeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	d.record("WaitVisible", selector)
	if err, ok := d.waitVisibleErr[selector]; ok {
		return err
	}
	return nil
}

func (d *fakeDriver) Exists(ctx context.Context, selector string) (bool, error) {
	return d.exists[selector], nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	d.record("Click", selector)
	return nil
}

func (d *fakeDriver) ClickLast(ctx context.Context, selector string) error {
	d.record("ClickLast", selector)
	return nil
}

func (d *fakeDriver) Type(ctx context.Context, selector, text string) error {
	d.record("Type", selector)
	return nil
}

func (d *fakeDriver) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}

func (d *fakeDriver) PageContains(ctx context.Context, text string) (bool, error) {
	return strings.Contains(d.pageText, text), nil
}

func (d *fakeDriver) VariantStock(ctx context.Context, color, size string) (string, error) {
	d.record("VariantStock", color+"/"+size)
	if s, ok := d.stock[color+"/"+size]; ok {
		return s, nil
	}
	return "In Stock", nil
}

func (d *fakeDriver) AddVariantToBag(ctx context.Context, color, size string) error {
	d.record("AddVariantToBag", color+"/"+size)
	return nil
}

func (d *fakeDriver) SwitchToPopup(ctx context.Context, timeout time.Duration) error {
	d.record("SwitchToPopup", "")
	return nil
}

func (d *fakeDriver) ClosePopup(ctx context.Context) error { return nil }

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PageLoadTimeoutSec = 1
	cfg.ElementTimeoutSec = 1
	cfg.PollIntervalMs = 10
	cfg.StockRetryTimeoutSec = 1
	cfg.StockRetryIntervalMs = 20
	cfg.ScheduleTickMs = 25
	return cfg
}

// happyDriver scripts a fully successful storefront: login confirms, the
// order confirmation appears.
func happyDriver(cfg *config.Config) *fakeDriver {
	return &fakeDriver{
		exists: map[string]bool{
			cfg.Selectors.LogoutLink:            true,
			cfg.Selectors.ConfirmationIndicator: true,
		},
	}
}

func newTestSequencer(cfg *config.Config, d Driver) (*Sequencer, *StatusLog) {
	status := NewStatusLog()
	return NewSequencer(cfg, d, SystemClock{}, zap.NewNop(), status), status
}

func paypalRequest() *CheckoutRequest {
	return &CheckoutRequest{
		Credentials: Credentials{Email: "shopper@example.com", Password: "secret"},
		Products:    []ProductSelection{{ID: "A1", Color: "black", Size: "M"}},
		Payment: PaymentDetails{
			Method:         PaymentPayPal,
			PaypalEmail:    "shopper@example.com",
			PaypalPassword: "paypal-secret",
		},
	}
}

func TestRunSucceedsWithPayPal(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	seq, status := newTestSequencer(cfg, driver)

	err := seq.Run(context.Background(), paypalRequest())
	require.NoError(t, err)

	terminal, ok := status.Terminal()
	require.True(t, ok)
	assert.Equal(t, StateSucceeded, terminal.State)

	_, navigated := driver.firstCall("Navigate", cfg.ProductBaseURL+"A1")
	assert.True(t, navigated, "product page should have been opened")
	_, added := driver.firstCall("AddVariantToBag", "black/M")
	assert.True(t, added)
	_, paid := driver.firstCall("Click", cfg.Selectors.PayNowButton)
	assert.True(t, paid)
	assert.True(t, driver.closed, "session must be released")
}

func TestRunCardPaymentFillsCardForm(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	seq, _ := newTestSequencer(cfg, driver)

	req := paypalRequest()
	req.Payment = PaymentDetails{
		Method: PaymentCard,
		Card: &CardDetails{
			Number: "4111111111111111", Expiry: "09/27", CVV: "123",
			FirstName: "Ada", LastName: "Lovelace", Address: "1 Analytical Way",
			City: "London", State: "LDN", ZipCode: "E1 6AN", Phone: "+44 20 7946 0958",
		},
	}

	require.NoError(t, seq.Run(context.Background(), req))

	_, clicked := driver.firstCall("Click", cfg.Selectors.CardOptionButton)
	assert.True(t, clicked, "card option should have been chosen")
	_, typed := driver.firstCall("Type", cfg.Selectors.CardNumberInput)
	assert.True(t, typed)
	_, billed := driver.firstCall("Type", cfg.Selectors.CardPhoneInput)
	assert.True(t, billed, "billing fields should be filled via their configured selectors")
}

func TestRunLoginFailureStopsEverything(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.exists[cfg.Selectors.LoginErrorNotice] = true
	driver.exists[cfg.Selectors.LogoutLink] = false
	seq, status := newTestSequencer(cfg, driver)

	err := seq.Run(context.Background(), paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonAuthentication, runErr.Reason)

	terminal, ok := status.Terminal()
	require.True(t, ok)
	assert.Equal(t, StateFailed, terminal.State)
	assert.Equal(t, ReasonAuthentication, terminal.Reason)

	_, productOpened := driver.firstCall("Navigate", cfg.ProductBaseURL+"A1")
	assert.False(t, productOpened, "no product step may run after a failed login")
	_, paid := driver.firstCall("Click", cfg.Selectors.PayNowButton)
	assert.False(t, paid, "no payment step may run after a failed login")
	assert.True(t, driver.closed)
}

func TestRunProductSoldOutFailsWithSelection(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.stock = map[string]string{"black/M": cfg.Selectors.SoldOutText}
	seq, _ := newTestSequencer(cfg, driver)

	err := seq.Run(context.Background(), paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonProductUnavailable, runErr.Reason)
	require.NotNil(t, runErr.Selection)
	assert.Equal(t, ProductSelection{ID: "A1", Color: "black", Size: "M"}, *runErr.Selection)

	// The stock check must actually have retried within its window.
	assert.Greater(t, driver.countCalls("VariantStock"), 1)
	assert.True(t, driver.closed)
}

func TestRunStopsAtFirstUnavailableProduct(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.stock = map[string]string{"red/L": cfg.Selectors.SoldOutText}
	seq, _ := newTestSequencer(cfg, driver)

	req := paypalRequest()
	req.Products = []ProductSelection{
		{ID: "A1", Color: "black", Size: "M"},
		{ID: "B2", Color: "red", Size: "L"},
		{ID: "C3", Color: "white", Size: "S"},
	}

	err := seq.Run(context.Background(), req)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonProductUnavailable, runErr.Reason)
	assert.Equal(t, "B2", runErr.Selection.ID)

	// The first product stays in the bag; the third is never attempted.
	_, firstAdded := driver.firstCall("AddVariantToBag", "black/M")
	assert.True(t, firstAdded)
	_, thirdOpened := driver.firstCall("Navigate", cfg.ProductBaseURL+"C3")
	assert.False(t, thirdOpened)
}

func TestRunUnavailablePageFailsImmediately(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.pageText = "Sorry, this item is no longer available."
	seq, _ := newTestSequencer(cfg, driver)

	start := time.Now()
	err := seq.Run(context.Background(), paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonProductUnavailable, runErr.Reason)
	assert.Less(t, time.Since(start), time.Duration(cfg.StockRetryTimeoutSec)*time.Second,
		"a dead product page should not sit out the stock retry window")
}

func TestRunScheduleGatesPayment(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	seq, _ := newTestSequencer(cfg, driver)

	req := paypalRequest()
	req.Schedule = time.Now().Add(300 * time.Millisecond)

	require.NoError(t, seq.Run(context.Background(), req))

	proceed, ok := driver.firstCall("Click", cfg.Selectors.ProceedPaymentButton)
	require.True(t, ok)
	assert.False(t, proceed.at.Before(req.Schedule),
		"payment must not start before the scheduled time")
}

func TestRunPastScheduleIsNoOp(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	seq, _ := newTestSequencer(cfg, driver)

	req := paypalRequest()
	req.Schedule = time.Now().Add(-time.Hour)

	start := time.Now()
	require.NoError(t, seq.Run(context.Background(), req))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunCancelDuringScheduleWait(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	seq, status := newTestSequencer(cfg, driver)

	req := paypalRequest()
	req.Schedule = time.Now().Add(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := seq.Run(ctx, req)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonCanceled, runErr.Reason)
	assert.Less(t, time.Since(start), 10*time.Second,
		"cancellation must take effect within about one polling interval")

	_, proceeded := driver.firstCall("Click", cfg.Selectors.ProceedPaymentButton)
	assert.False(t, proceeded, "a canceled run must not reach payment")

	terminal, ok := status.Terminal()
	require.True(t, ok)
	assert.Equal(t, StateFailed, terminal.State)
	assert.True(t, driver.closed)
}

func TestRunCancelDuringLoginWait(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.exists[cfg.Selectors.LogoutLink] = false
	seq, _ := newTestSequencer(cfg, driver)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := seq.Run(ctx, paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonCanceled, runErr.Reason,
		"a cancellation during the login wait is not an authentication failure")

	_, productOpened := driver.firstCall("Navigate", cfg.ProductBaseURL+"A1")
	assert.False(t, productOpened)
	assert.True(t, driver.closed)
}

// resyncClock fakes a Resyncer whose offset has gone stale.
type resyncClock struct {
	mu     sync.Mutex
	stale  bool
	synced int
}

func (c *resyncClock) Now() time.Time { return time.Now() }

func (c *resyncClock) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

func (c *resyncClock) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced++
	c.stale = false
	return nil
}

func TestRunResyncsStaleClockBeforeScheduleGate(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	clock := &resyncClock{stale: true}
	seq := NewSequencer(cfg, driver, clock, zap.NewNop(), NewStatusLog())

	req := paypalRequest()
	req.Schedule = time.Now().Add(50 * time.Millisecond)

	require.NoError(t, seq.Run(context.Background(), req))
	assert.Equal(t, 1, clock.synced, "a stale clock must be re-sampled before the gate")
}

func TestRunSkipsResyncWhenClockFresh(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	clock := &resyncClock{stale: false}
	seq := NewSequencer(cfg, driver, clock, zap.NewNop(), NewStatusLog())

	req := paypalRequest()
	req.Schedule = time.Now().Add(50 * time.Millisecond)

	require.NoError(t, seq.Run(context.Background(), req))
	assert.Equal(t, 0, clock.synced)
}

func TestRunSubmissionTimeout(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.exists[cfg.Selectors.ConfirmationIndicator] = false
	seq, _ := newTestSequencer(cfg, driver)

	err := seq.Run(context.Background(), paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonSubmissionTimeout, runErr.Reason)
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestRunSubmissionErrorIndicator(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.exists[cfg.Selectors.ConfirmationIndicator] = false
	driver.exists[cfg.Selectors.SubmissionErrorNotice] = true
	seq, _ := newTestSequencer(cfg, driver)

	start := time.Now()
	err := seq.Run(context.Background(), paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonSubmissionError, runErr.Reason)
	assert.Less(t, time.Since(start), time.Duration(cfg.PageLoadTimeoutSec)*time.Second,
		"an explicit error indicator should not wait out the timeout")
}

func TestRunPaymentErrorNotice(t *testing.T) {
	cfg := testConfig()
	driver := happyDriver(cfg)
	driver.exists[cfg.Selectors.PaymentErrorNotice] = true
	seq, _ := newTestSequencer(cfg, driver)

	err := seq.Run(context.Background(), paypalRequest())

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, ReasonPaymentRejected, runErr.Reason)

	_, paid := driver.firstCall("Click", cfg.Selectors.PayNowButton)
	assert.False(t, paid, "a rejected payment must not be submitted")
}

func TestRunDryRunStopsBeforePay(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	driver := happyDriver(cfg)
	seq, status := newTestSequencer(cfg, driver)

	require.NoError(t, seq.Run(context.Background(), paypalRequest()))

	_, paid := driver.firstCall("Click", cfg.Selectors.PayNowButton)
	assert.False(t, paid)

	terminal, ok := status.Terminal()
	require.True(t, ok)
	assert.Equal(t, StateSucceeded, terminal.State)
}

func TestRunErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := failed(ReasonAutomation, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "AutomationError")
}
