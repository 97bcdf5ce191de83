// Package reconcile drives an order from checkout to credited.
//
// The provider redirect only tells us that a client came back. Whether the
// order was paid is always asked of the gateway server-to-server, and the
// grant is applied through the ledger keyed by order id, so retried or
// concurrent completions converge on one grant.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"travel-marketplace/internal/domain/access"
	"travel-marketplace/internal/domain/orders"
	"travel-marketplace/internal/events"
	"travel-marketplace/internal/gateway"
	"travel-marketplace/internal/handoff"
	"travel-marketplace/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Authorizer interface {
	Authorize(ctx context.Context, userID uint, action access.Action) (bool, error)
}

type Config struct {
	// ReturnBase is the public origin the provider redirects back to.
	ReturnBase string
	HandoffTTL time.Duration
	// Retention is how long expired handoff records are kept before purge.
	Retention  time.Duration
	Gateway    RetryPolicy
	SweepBatch int
}

type Deps struct {
	DB       *gorm.DB
	Ledger   *ledger.Ledger
	Handoffs handoff.Store
	Gateway  gateway.Gateway
	Gate     Authorizer
	Events   events.Publisher
	Logger   *slog.Logger
}

type Reconciler struct {
	db       *gorm.DB
	orders   *Repository
	ledger   *ledger.Ledger
	handoffs handoff.Store
	gateway  gateway.Gateway
	gate     Authorizer
	events   events.Publisher
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
}

func New(d Deps, cfg Config) *Reconciler {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if cfg.HandoffTTL <= 0 {
		cfg.HandoffTTL = 10 * time.Minute
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &Reconciler{
		db:       d.DB,
		orders:   NewRepository(d.DB),
		ledger:   d.Ledger,
		handoffs: d.Handoffs,
		gateway:  d.Gateway,
		gate:     d.Gate,
		events:   d.Events,
		log:      d.Logger.With("component", "reconciler"),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	cp := *r
	cp.now = now
	return &cp
}

type InitiateRequest struct {
	UserID       uint
	Amount       int64
	Currency     string
	Credits      int64
	PackageID    *uint
	Product      string
	AccessToken  string
	RefreshToken string
}

type InitiateResult struct {
	OrderID     string    `json:"order_id"`
	HandoffID   string    `json:"handoff_id"`
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Session carries the credentials recovered from a fresh handoff redemption.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type ReconciliationResult struct {
	OrderID       string        `json:"order_id"`
	UserID        uint          `json:"user_id"`
	Status        orders.Status `json:"status"`
	Granted       bool          `json:"granted"`
	Balance       int64         `json:"balance"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Session       *Session      `json:"session,omitempty"`
}

// Initiate opens an order and its provider checkout. The returned redirect
// URL is where the client should go next.
func (r *Reconciler) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	allowed, err := r.gate.Authorize(ctx, req.UserID, access.ActionPurchaseCredits)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("authorize purchase: %w", err)
	}
	if !allowed {
		return InitiateResult{}, ErrForbidden
	}
	if req.Amount <= 0 || req.Credits <= 0 || strings.TrimSpace(req.Currency) == "" {
		return InitiateResult{}, ErrInvalidRequest
	}

	now := r.now()
	o := orders.Order{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		PackageID:        req.PackageID,
		Amount:           req.Amount,
		Currency:         strings.ToLower(req.Currency),
		CreditsRequested: req.Credits,
		Status:           orders.StatusPending,
		ExpiresAt:        now.Add(r.cfg.HandoffTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.orders.Create(ctx, &o); err != nil {
		return InitiateResult{}, err
	}
	log := r.log.With("order_id", o.ID, "user_id", o.UserID)

	handoffID, expiresAt, err := r.handoffs.Create(ctx, req.UserID, req.AccessToken, req.RefreshToken, o.ID)
	if err != nil {
		r.fail(ctx, o, "handoff_unavailable")
		return InitiateResult{}, fmt.Errorf("create handoff for order %s: %w", o.ID, err)
	}

	product := req.Product
	if product == "" {
		product = fmt.Sprintf("%d credits", req.Credits)
	}
	returnURL := r.returnURL(handoffID, o.ID)
	checkout, err := withRetry(ctx, r.cfg.Gateway, log, "create_checkout", nil,
		func(ctx context.Context) (gateway.Checkout, error) {
			return r.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
				Order:     o,
				Product:   product,
				ReturnURL: returnURL,
				CancelURL: returnURL + "&canceled=1",
			})
		})
	if err != nil {
		log.Error("checkout creation failed", "error", err)
		r.fail(ctx, o, "checkout_unavailable")
		return InitiateResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	moved, err := r.orders.Transition(ctx, o.ID, orders.StatusAwaitingConfirmation, r.now(), map[string]interface{}{
		"provider_ref": checkout.ProviderRef,
		"expires_at":   expiresAt,
	})
	if err != nil {
		return InitiateResult{}, err
	}
	if !moved {
		return InitiateResult{}, fmt.Errorf("%w: order %s closed during checkout", ErrOrderAlreadyTerminal, o.ID)
	}

	log.Info("purchase initiated", "credits", o.CreditsRequested, "amount", o.Amount, "currency", o.Currency)
	return InitiateResult{
		OrderID:     o.ID,
		HandoffID:   handoffID,
		RedirectURL: checkout.RedirectURL,
		ExpiresAt:   expiresAt,
	}, nil
}

func (r *Reconciler) returnURL(handoffID, orderID string) string {
	q := url.Values{}
	q.Set("handoff_id", handoffID)
	q.Set("order_ref", orderID)
	return strings.TrimRight(r.cfg.ReturnBase, "/") + "/purchases/return?" + q.Encode()
}

// Complete handles the client's return from the provider. The handoff id
// and order reference are the only inputs taken from the request.
func (r *Reconciler) Complete(ctx context.Context, handoffID, orderRef string) (ReconciliationResult, error) {
	b, err := r.handoffs.Binding(ctx, handoffID)
	if err != nil {
		return ReconciliationResult{}, err
	}
	if orderRef != b.OrderID {
		r.log.Warn("order reference mismatch on return", "order_id", b.OrderID, "order_ref", orderRef)
		return ReconciliationResult{}, ErrOrderMismatch
	}
	log := r.log.With("order_id", b.OrderID, "user_id", b.UserID)

	o, err := r.orders.Get(ctx, b.OrderID)
	if err != nil {
		log.Error("handoff bound to a missing order", "error", err)
		return ReconciliationResult{}, err
	}
	if o.UserID != b.UserID {
		log.Error("handoff user does not own the order", "order_user_id", o.UserID)
		return ReconciliationResult{}, ErrOrderMismatch
	}
	if b.Expired(r.now()) && o.Status != orders.StatusPaid {
		log.Info("return after handoff expiry", "status", o.Status)
		return ReconciliationResult{}, handoff.ErrExpired
	}

	res, err := r.reconcile(ctx, o)
	if err != nil {
		return ReconciliationResult{}, err
	}

	// Credentials are released only once the order state is known, so a
	// gateway outage does not burn the handoff.
	if !b.Consumed {
		red, err := r.handoffs.Redeem(ctx, handoffID)
		switch {
		case err == nil:
			res.Session = &Session{AccessToken: red.AccessToken, RefreshToken: red.RefreshToken}
		case errors.Is(err, handoff.ErrNotFound), errors.Is(err, handoff.ErrExpired):
			// Redeemed by a concurrent completion, or the window closed meanwhile.
		default:
			return ReconciliationResult{}, err
		}
	}
	if res.Session == nil {
		// A spent handoff id has been through the provider's redirect; it
		// only tells the holder how the order ended.
		res.UserID, res.Balance, res.TransactionID = 0, 0, ""
	}
	return res, nil
}

// Reconcile re-verifies one order with the gateway. Safe to call any number
// of times, in any order, alongside Complete.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (ReconciliationResult, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return ReconciliationResult{}, err
	}
	return r.reconcile(ctx, o)
}

func (r *Reconciler) reconcile(ctx context.Context, o orders.Order) (ReconciliationResult, error) {
	log := r.log.With("order_id", o.ID)

	switch o.Status {
	case orders.StatusPaid:
		return r.settle(ctx, o)
	case orders.StatusFailed, orders.StatusExpired:
		return r.result(ctx, o, o.Status), nil
	}

	st, err := r.queryStatus(ctx, o)
	if errors.Is(err, gateway.ErrNoCheckout) {
		return r.result(ctx, o, o.Status), nil
	}
	if err != nil {
		log.Error("payment status unavailable, order left open", "status", o.Status, "error", err)
		return ReconciliationResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch st {
	case gateway.StatusPaid:
		res, err := r.settle(ctx, o)
		if errors.Is(err, ErrOrderAlreadyTerminal) {
			cur, gerr := r.orders.Get(ctx, o.ID)
			if gerr != nil {
				return ReconciliationResult{}, gerr
			}
			return r.result(ctx, cur, cur.Status), nil
		}
		return res, err
	case gateway.StatusFailed:
		r.fail(ctx, o, "payment_failed")
		cur, err := r.orders.Get(ctx, o.ID)
		if err != nil {
			return ReconciliationResult{}, err
		}
		if cur.Status == orders.StatusPaid {
			return r.settle(ctx, cur)
		}
		return r.result(ctx, cur, cur.Status), nil
	default:
		return r.result(ctx, o, o.Status), nil
	}
}

// settle marks the order paid and grants its credits in one transaction.
// An order that is already paid replays the original grant.
func (r *Reconciler) settle(ctx context.Context, o orders.Order) (ReconciliationResult, error) {
	log := r.log.With("order_id", o.ID, "user_id", o.UserID)
	now := r.now()

	var grant ledger.GrantResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.orders.WithTx(tx)
		moved, err := repo.Transition(ctx, o.ID, orders.StatusPaid, now, map[string]interface{}{
			"confirmed_at": now,
		})
		if err != nil {
			return err
		}
		if !moved {
			cur, err := repo.Get(ctx, o.ID)
			if err != nil {
				return err
			}
			if cur.Status != orders.StatusPaid {
				return fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyTerminal, o.ID, cur.Status)
			}
		}

		res, err := r.ledger.WithTx(tx).Grant(ctx, o.UserID, o.CreditsRequested, grantRemark(o), o.ID)
		if err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		grant = res
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderAlreadyTerminal) {
			log.Error("gateway reports payment for a closed order", "error", err)
		} else {
			log.Error("settlement failed", "error", err)
		}
		return ReconciliationResult{}, err
	}

	if grant.Granted {
		log.Info("order paid, credits granted", "credits", o.CreditsRequested, "balance", grant.Balance, "transaction_id", grant.TransactionID)
		r.publish(ctx, o, events.OrderPaid, func(e *events.Event) {
			e.Granted = true
			e.TransactionID = grant.TransactionID
		})
	}

	return ReconciliationResult{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        orders.StatusPaid,
		Granted:       grant.Granted,
		Balance:       grant.Balance,
		TransactionID: grant.TransactionID,
	}, nil
}

// fail closes an open order as failed. It is a no-op on closed orders.
func (r *Reconciler) fail(ctx context.Context, o orders.Order, reason string) {
	moved, err := r.orders.Transition(ctx, o.ID, orders.StatusFailed, r.now(), map[string]interface{}{
		"failure_reason": reason,
	})
	if err != nil {
		r.log.Error("could not mark order failed", "order_id", o.ID, "reason", reason, "error", err)
		return
	}
	if moved {
		r.log.Info("order failed", "order_id", o.ID, "reason", reason)
		r.publish(ctx, o, events.OrderFailed, func(e *events.Event) { e.Reason = reason })
	}
}

func (r *Reconciler) queryStatus(ctx context.Context, o orders.Order) (gateway.Status, error) {
	return withRetry(ctx, r.cfg.Gateway, r.log.With("order_id", o.ID), "query_status",
		func(err error) bool { return errors.Is(err, gateway.ErrNoCheckout) },
		func(ctx context.Context) (gateway.Status, error) {
			return r.gateway.QueryStatus(ctx, o)
		})
}

func (r *Reconciler) result(ctx context.Context, o orders.Order, st orders.Status) ReconciliationResult {
	res := ReconciliationResult{OrderID: o.ID, UserID: o.UserID, Status: st}
	if b, err := r.ledger.Balance(ctx, o.UserID); err == nil {
		res.Balance = b
	} else {
		r.log.Warn("balance lookup failed", "order_id", o.ID, "error", err)
	}
	return res
}

func (r *Reconciler) publish(ctx context.Context, o orders.Order, t events.Type, with func(*events.Event)) {
	e := events.Event{
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Credits:    o.CreditsRequested,
		Amount:     o.Amount,
		Currency:   o.Currency,
		OccurredAt: r.now(),
	}
	if with != nil {
		with(&e)
	}
	if err := r.events.Publish(ctx, e); err != nil {
		r.log.Warn("event publish failed", "order_id", o.ID, "event", t, "error", err)
	}
}

func grantRemark(o orders.Order) string {
	return fmt.Sprintf("purchase %d credits (order %s)", o.CreditsRequested, o.ID)
}

// Order returns one order, scoped to its owner.
func (r *Reconciler) Order(ctx context.Context, userID uint, orderID string) (orders.Order, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.UserID != userID {
		return orders.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (r *Reconciler) OrdersForUser(ctx context.Context, userID uint, limit int) ([]orders.Order, error) {
	return r.orders.ListForUser(ctx, userID, limit)
}
