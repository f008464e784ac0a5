package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"snapcart/internal/config"
)

// Sequencer executes a validated CheckoutRequest as a linear state machine
// over a single browser session:
//
//	Idle → LoggingIn → AddingProducts → AwaitingSchedule → FillingPayment →
//	Submitting → {Succeeded, Failed}
//
// It owns the driver for the run's duration and closes it on every exit
// path. Failures are terminal for the run; retries happen only inside a
// single bounded wait-for-element step.
type Sequencer struct {
	cfg    *config.Config
	driver Driver
	clock  Clock
	log    *zap.Logger
	status *StatusLog
}

func NewSequencer(cfg *config.Config, driver Driver, clock Clock, log *zap.Logger, status *StatusLog) *Sequencer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sequencer{
		cfg:    cfg,
		driver: driver,
		clock:  clock,
		log:    log,
		status: status,
	}
}

func (s *Sequencer) elementTimeout() time.Duration {
	return time.Duration(s.cfg.ElementTimeoutSec) * time.Second
}

func (s *Sequencer) pageTimeout() time.Duration {
	return time.Duration(s.cfg.PageLoadTimeoutSec) * time.Second
}

func (s *Sequencer) pollInterval() time.Duration {
	return time.Duration(s.cfg.PollIntervalMs) * time.Millisecond
}

func (s *Sequencer) report(state State, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.log.Info(msg, zap.String("state", string(state)))
	s.status.Append(Status{Time: s.clock.Now(), State: state, Message: msg})
}

func (s *Sequencer) finish(state State, msg string, reason FailureReason) {
	s.status.Append(Status{
		Time:     s.clock.Now(),
		State:    state,
		Message:  msg,
		Terminal: true,
		Reason:   reason,
	})
}

// Run drives the full checkout flow. The request is never mutated; the
// returned error, if any, is a *RunError carrying the failure reason.
func (s *Sequencer) Run(ctx context.Context, req *CheckoutRequest) error {
	defer s.driver.Close()

	steps := []struct {
		state State
		fn    func(context.Context, *CheckoutRequest) error
	}{
		{StateLoggingIn, s.login},
		{StateAddingProducts, s.addProducts},
		{StateAwaitingSchedule, s.awaitSchedule},
		{StateFillingPayment, s.fillPayment},
		{StateSubmitting, s.submit},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			s.finish(StateFailed, "run canceled", ReasonCanceled)
			return failed(ReasonCanceled, err)
		}

		if err := step.fn(ctx, req); err != nil {
			var runErr *RunError
			if !errors.As(err, &runErr) {
				runErr = failed(ReasonAutomation, err)
			}
			// A cancellation surfacing through any step's wait keeps its
			// own terminal reason, not the step's.
			if runErr.Reason != ReasonCanceled && errors.Is(runErr.Err, context.Canceled) {
				runErr = failed(ReasonCanceled, runErr.Err)
			}
			s.log.Warn("run failed",
				zap.String("state", string(step.state)),
				zap.String("reason", string(runErr.Reason)))
			s.finish(StateFailed, runErr.Error(), runErr.Reason)
			return runErr
		}
	}

	s.log.Info("checkout complete")
	s.finish(StateSucceeded, "order submitted", "")
	return nil
}

func (s *Sequencer) login(ctx context.Context, req *CheckoutRequest) error {
	sel := s.cfg.Selectors
	s.report(StateLoggingIn, "logging in to %s", s.cfg.StoreLoginURL)

	if err := s.driver.Navigate(ctx, s.cfg.StoreLoginURL); err != nil {
		return failed(ReasonAutomation, err)
	}

	if err := s.driver.WaitVisible(ctx, sel.LoginEmailInput, s.pageTimeout()); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("login form not found: %w", err))
	}

	if err := s.driver.Type(ctx, sel.LoginEmailInput, req.Credentials.Email); err != nil {
		return failed(ReasonAutomation, err)
	}
	if err := s.driver.Type(ctx, sel.LoginPasswordInput, req.Credentials.Password); err != nil {
		return failed(ReasonAutomation, err)
	}
	if err := s.driver.Click(ctx, sel.LoginButton); err != nil {
		return failed(ReasonAutomation, err)
	}

	// The logout link is the post-login indicator. An explicit error notice
	// short-circuits the wait.
	err := Poll(ctx, s.pollInterval(), s.elementTimeout(), func() (bool, error) {
		if bad, _ := s.driver.Exists(ctx, sel.LoginErrorNotice); bad {
			return false, Permanent(errors.New("login rejected by the store"))
		}
		return s.driver.Exists(ctx, sel.LogoutLink)
	})
	if err != nil {
		return failed(ReasonAuthentication, fmt.Errorf("login not confirmed: %w", err))
	}

	s.report(StateLoggingIn, "logged in as %s", req.Credentials.Email)
	return nil
}

func (s *Sequencer) addProducts(ctx context.Context, req *CheckoutRequest) error {
	for _, p := range req.Products {
		if err := ctx.Err(); err != nil {
			return failed(ReasonCanceled, err)
		}
		if err := s.addProduct(ctx, p); err != nil {
			// Earlier additions stay in the bag; the vendor cart allocates
			// first come, first served.
			return err
		}
	}
	return nil
}

func (s *Sequencer) addProduct(ctx context.Context, p ProductSelection) error {
	sel := s.cfg.Selectors
	url := s.cfg.ProductBaseURL + p.ID
	s.report(StateAddingProducts, "opening product page for %s", p)

	if err := s.driver.Navigate(ctx, url); err != nil {
		return failedProduct(p, fmt.Errorf("product page unreachable: %w", err))
	}

	if gone, _ := s.driver.PageContains(ctx, sel.UnavailableText); gone {
		return failedProduct(p, errors.New("product is no longer available"))
	}

	if err := s.driver.WaitVisible(ctx, sel.ColorList, s.elementTimeout()); err != nil {
		return failedProduct(p, fmt.Errorf("variant list not found: %w", err))
	}

	// Stock can flip while a drop is going live, so the in-stock check gets
	// its own, longer retry window.
	interval := time.Duration(s.cfg.StockRetryIntervalMs) * time.Millisecond
	timeout := time.Duration(s.cfg.StockRetryTimeoutSec) * time.Second

	err := Poll(ctx, interval, timeout, func() (bool, error) {
		stock, err := s.driver.VariantStock(ctx, p.Color, p.Size)
		if err != nil {
			return false, err
		}
		if stock == sel.SoldOutText {
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return failed(ReasonCanceled, err)
		}
		return failedProduct(p, fmt.Errorf("still out of stock: %w", err))
	}

	if err := s.driver.AddVariantToBag(ctx, p.Color, p.Size); err != nil {
		return failedProduct(p, fmt.Errorf("add to bag failed: %w", err))
	}

	s.report(StateAddingProducts, "added %s to the bag", p)
	return nil
}

func (s *Sequencer) awaitSchedule(ctx context.Context, req *CheckoutRequest) error {
	if req.Schedule.IsZero() {
		return nil
	}

	// A run can start hours after the clock was sampled; re-sample before
	// gating on it.
	if rs, ok := s.clock.(Resyncer); ok && rs.Stale() {
		if err := rs.Sync(ctx); err != nil {
			s.log.Warn("clock resync failed, using last offset", zap.Error(err))
		} else {
			s.report(StateAwaitingSchedule, "clock resynchronized")
		}
	}

	if !req.Schedule.After(s.clock.Now()) {
		return nil
	}

	s.report(StateAwaitingSchedule, "waiting until %s", req.Schedule.Format(time.RFC3339))

	floor := time.Duration(s.cfg.ScheduleTickMs) * time.Millisecond
	if err := WaitUntil(ctx, s.clock, req.Schedule, floor); err != nil {
		return failed(ReasonCanceled, err)
	}

	s.report(StateAwaitingSchedule, "scheduled time reached")
	return nil
}

func (s *Sequencer) fillPayment(ctx context.Context, req *CheckoutRequest) error {
	sel := s.cfg.Selectors
	s.report(StateFillingPayment, "proceeding to payment")

	if err := s.driver.Click(ctx, sel.ProceedPaymentButton); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("order button: %w", err))
	}

	if err := s.driver.WaitVisible(ctx, sel.DeliveryAddressItem, s.elementTimeout()); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("delivery addresses: %w", err))
	}
	// The most recently added address is listed last.
	if err := s.driver.ClickLast(ctx, sel.DeliveryAddressItem); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("select address: %w", err))
	}

	if err := s.driver.Click(ctx, sel.ProceedCheckoutButton); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("checkout button: %w", err))
	}

	if err := s.driver.Click(ctx, sel.PaypalButton); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("paypal button: %w", err))
	}
	if err := s.driver.SwitchToPopup(ctx, s.pageTimeout()); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("paypal window: %w", err))
	}

	var err error
	switch req.Payment.Method {
	case PaymentCard:
		err = s.fillCard(ctx, req.Payment.Card)
	default:
		err = s.fillPaypal(ctx, req.Payment)
	}
	if err != nil {
		return err
	}

	if bad, _ := s.driver.Exists(ctx, sel.PaymentErrorNotice); bad {
		notice, _ := s.driver.Text(ctx, sel.PaymentErrorNotice)
		return failed(ReasonPaymentRejected, fmt.Errorf("payment form rejected: %s", notice))
	}

	s.report(StateFillingPayment, "payment details filled")
	return nil
}

func (s *Sequencer) fillPaypal(ctx context.Context, pay PaymentDetails) error {
	sel := s.cfg.Selectors

	if err := s.driver.WaitVisible(ctx, sel.PaypalEmailInput, s.elementTimeout()); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("paypal login form: %w", err))
	}
	if err := s.driver.Type(ctx, sel.PaypalEmailInput, pay.PaypalEmail); err != nil {
		return failed(ReasonAutomation, err)
	}
	if err := s.driver.Click(ctx, sel.PaypalNextButton); err != nil {
		return failed(ReasonAutomation, err)
	}

	if err := s.driver.WaitVisible(ctx, sel.PaypalPasswordInput, s.elementTimeout()); err != nil {
		return failed(ReasonPaymentRejected, fmt.Errorf("paypal did not accept the email: %w", err))
	}
	if err := s.driver.Type(ctx, sel.PaypalPasswordInput, pay.PaypalPassword); err != nil {
		return failed(ReasonAutomation, err)
	}
	if err := s.driver.Click(ctx, sel.PaypalLoginButton); err != nil {
		return failed(ReasonAutomation, err)
	}

	return nil
}

func (s *Sequencer) fillCard(ctx context.Context, card *CardDetails) error {
	sel := s.cfg.Selectors

	// Guest checkout path: pay with a card instead of a PayPal account.
	if err := s.driver.Click(ctx, sel.CardOptionButton); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("card option: %w", err))
	}

	if err := s.driver.WaitVisible(ctx, sel.CardNumberInput, s.elementTimeout()); err != nil {
		return failed(ReasonAutomation, fmt.Errorf("card form: %w", err))
	}

	fields := []struct {
		selector string
		value    string
	}{
		{sel.CardNumberInput, card.Number},
		{sel.CardExpiryInput, card.Expiry},
		{sel.CardCvvInput, card.CVV},
		{sel.CardFirstNameInput, card.FirstName},
		{sel.CardLastNameInput, card.LastName},
		{sel.CardAddressInput, card.Address},
		{sel.CardCityInput, card.City},
		{sel.CardStateInput, card.State},
		{sel.CardZipInput, card.ZipCode},
		{sel.CardPhoneInput, card.Phone},
	}
	for _, f := range fields {
		if err := s.driver.Type(ctx, f.selector, f.value); err != nil {
			return failed(ReasonAutomation, fmt.Errorf("card field %s: %w", f.selector, err))
		}
	}

	return nil
}

func (s *Sequencer) submit(ctx context.Context, _ *CheckoutRequest) error {
	sel := s.cfg.Selectors

	if s.cfg.DryRun {
		s.report(StateSubmitting, "dry run: stopping before the final pay button")
		return nil
	}

	s.report(StateSubmitting, "submitting the order")
	if err := s.driver.Click(ctx, sel.PayNowButton); err != nil {
		return failed(ReasonSubmissionError, fmt.Errorf("pay button: %w", err))
	}

	err := Poll(ctx, s.pollInterval(), s.pageTimeout(), func() (bool, error) {
		if bad, _ := s.driver.Exists(ctx, sel.SubmissionErrorNotice); bad {
			return false, Permanent(errors.New("store reported a submission error"))
		}
		return s.driver.Exists(ctx, sel.ConfirmationIndicator)
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return failed(ReasonCanceled, err)
		case errors.Is(err, ErrPollTimeout):
			return failed(ReasonSubmissionTimeout, err)
		default:
			return failed(ReasonSubmissionError, err)
		}
	}

	// The PayPal window closes itself on some flows; ignore failures here.
	_ = s.driver.ClosePopup(ctx)

	return nil
}
