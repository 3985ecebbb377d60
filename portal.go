package dealerportal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/cart"
	"github.com/askgroup/dealerportal/guard"
	"github.com/askgroup/dealerportal/internal/audit"
	"github.com/askgroup/dealerportal/storage"
	"github.com/sourcegraph/conc/pool"
)

// Portal owns one session, one cart and the route policy for an
// application run. Build it with New().Build().
type Portal struct {
	config  Config
	api     *api.Client
	session *SessionStore
	cart    *cart.Cart
	policy  *guard.Policy
	storage storage.Storage
	metrics *Metrics
	audit   *audit.Dispatcher
	logger  *log.Logger
	closers []func() error
}

func (p *Portal) Session() *SessionStore { return p.session }

func (p *Portal) Cart() *cart.Cart { return p.cart }

func (p *Portal) Policy() *guard.Policy { return p.policy }

func (p *Portal) API() *api.Client { return p.api }

func (p *Portal) Storage() storage.Storage { return p.storage }

// Config returns a copy of the configuration the portal was built with.
func (p *Portal) Config() Config { return cloneConfig(p.config) }

// Check gates target for the current session.
func (p *Portal) Check(target string) guard.Decision {
	return p.policy.Check(p.session, target)
}

// Home is the landing page for the current session.
func (p *Portal) Home() string {
	return p.policy.Landing(p.session).To
}

// Close flushes audit events and releases owned connections.
func (p *Portal) Close() error {
	if p == nil {
		return nil
	}
	if p.audit != nil {
		p.audit.Close()
	}
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditDropped counts audit events lost to backpressure.
func (p *Portal) AuditDropped() uint64 {
	if p == nil || p.audit == nil {
		return 0
	}
	return p.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type.
func (p *Portal) AuditDroppedByType() map[string]uint64 {
	if p == nil || p.audit == nil {
		return nil
	}
	return p.audit.DroppedByType()
}

// MetricsSnapshot copies the portal counters.
func (p *Portal) MetricsSnapshot() MetricsSnapshot {
	if p == nil || p.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return p.metrics.Snapshot()
}

// CheckoutOptions tunes Checkout.
type CheckoutOptions struct {
	// DealerID skips the dealer profile lookup when set.
	DealerID        string
	ExternalRefCode string
	// Submit moves the new draft order to submitted.
	Submit bool
}

// Checkout turns the cart into a purchase order. The cart is cleared only
// once the order exists on the server.
func (p *Portal) Checkout(ctx context.Context, opts CheckoutOptions) (*api.PurchaseOrder, error) {
	if p == nil || p.session == nil {
		return nil, ErrPortalNotReady
	}
	if !p.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	items := p.cart.OrderItems()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := p.checkout(ctx, opts, items)
	u := p.session.User()
	if err != nil {
		p.metrics.Inc(MetricCheckoutFailure)
		emitAudit(ctx, p.audit, AuditOrderSubmitted, u, err, nil)
		return order, err
	}
	p.metrics.Inc(MetricCheckoutSuccess)
	emitAudit(ctx, p.audit, AuditOrderSubmitted, u, nil, map[string]string{
		"po_number": order.PONumber,
		"status":    order.Status,
	})
	return order, nil
}

func (p *Portal) checkout(ctx context.Context, opts CheckoutOptions, items []api.PurchaseOrderItemCreate) (*api.PurchaseOrder, error) {
	dealerID := opts.DealerID
	if dealerID == "" {
		profile, err := p.api.MyDealerProfile(ctx)
		if errors.Is(err, api.ErrNotFound) {
			return nil, ErrNoDealerProfile
		}
		if err != nil {
			return nil, err
		}
		if profile.DealerID == "" {
			return nil, ErrNoDealerProfile
		}
		dealerID = profile.DealerID
	}

	order, err := p.api.CreatePurchaseOrder(ctx, api.PurchaseOrderCreate{
		DealerID:        dealerID,
		ExternalRefCode: opts.ExternalRefCode,
		Items:           items,
	})
	if err != nil {
		return nil, err
	}
	p.cart.Clear()

	if !opts.Submit {
		return order, nil
	}
	submitted, err := p.api.SubmitPurchaseOrder(ctx, order.POID)
	if err != nil {
		return order, fmt.Errorf("order %s created but not submitted: %w", order.PONumber, err)
	}
	return submitted, nil
}

// DefaultOrderWorkers bounds concurrent detail fetches in LoadOrders.
const DefaultOrderWorkers = 4

// LoadOrders fetches full details for poIDs with at most workers requests
// in flight, returning them sorted by id. The first failure cancels the
// rest.
func (p *Portal) LoadOrders(ctx context.Context, poIDs []int, workers int) ([]api.PurchaseOrder, error) {
	if p == nil || p.api == nil {
		return nil, ErrPortalNotReady
	}
	if len(poIDs) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = DefaultOrderWorkers
	}

	wp := pool.NewWithResults[api.PurchaseOrder]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(workers)

	for _, id := range poIDs {
		wp.Go(func(ctx context.Context) (api.PurchaseOrder, error) {
			order, err := p.api.GetPurchaseOrder(ctx, id)
			if err != nil {
				return api.PurchaseOrder{}, err
			}
			return *order, nil
		})
	}

	orders, err := wp.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].POID < orders[j].POID })
	return orders, nil
}
