package ordersync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// errStopAndCommit ends the reconciliation early without rolling back
var errStopAndCommit = errors.New("stop and commit")

// ReconcileResult describes what a reconciliation did
type ReconcileResult struct {
	Order               *order.Order
	Created             bool
	StateChanged        bool
	CollapsedDuplicates int
	Rows                int
	Tags                int
	WarehouseAssigned   bool
	PaymentDateSet      bool
	// UnknownProduct is set when a line item without SKU ended a
	// commit_partial reconciliation early
	UnknownProduct bool
}

// ReconcilerConfig contains the collaborators and policies of a Reconciler
type ReconcilerConfig struct {
	Scope            order.ReconcileScope
	IDs              shared.IDGenerator
	Warehouse        order.WarehouseRecommender
	WarehouseTimeout time.Duration
	UnknownSKUPolicy order.UnknownSKUPolicy
	CustomerPolicy   order.CustomerMergePolicy
	Metrics          Metrics
	Clock            func() time.Time
	Logger           *zap.Logger
}

// Reconciler upserts one normalized payload into the order aggregate,
// serialized per reconciliation key
type Reconciler struct {
	scope            order.ReconcileScope
	ids              shared.IDGenerator
	warehouse        order.WarehouseRecommender
	warehouseTimeout time.Duration
	unknownSKU       order.UnknownSKUPolicy
	customerPolicy   order.CustomerMergePolicy
	metrics          Metrics
	now              func() time.Time
	logger           *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		scope:            cfg.Scope,
		ids:              cfg.IDs,
		warehouse:        cfg.Warehouse,
		warehouseTimeout: cfg.WarehouseTimeout,
		unknownSKU:       cfg.UnknownSKUPolicy,
		customerPolicy:   cfg.CustomerPolicy,
		metrics:          cfg.Metrics,
		now:              cfg.Clock,
		logger:           cfg.Logger,
	}
	if !r.unknownSKU.IsValid() {
		r.unknownSKU = order.UnknownSKURollback
	}
	if r.customerPolicy == "" {
		r.customerPolicy = order.CustomerFirstWriteWins
	}
	if r.metrics == nil {
		r.metrics = NopMetrics{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Reconcile applies payload to the order identified by (shop, external id,
// test flag) in one transaction. desired is the state derived from the
// payload; an unset state leaves the stored state alone.
//
// A line item without SKU is handled per the unknown-SKU policy. Under
// rollback the error wraps order.ErrUnknownProduct and nothing is written.
// Under commit_partial the writes made before the item are committed and
// the result is returned together with an error wrapping
// order.ErrUnknownProduct.
func (r *Reconciler) Reconcile(ctx context.Context, shop *order.Shop, payload *order.NormalizedOrder, desired order.State) (*ReconcileResult, error) {
	start := time.Now()
	key := order.Key{
		ShopID:          shop.ID,
		ExternalOrderID: payload.Fields.ExternalOrderID,
		TestOrder:       payload.Fields.TestOrder,
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "order_reconciler", "reconcile",
		telemetry.SpanAttrExternalOrderID, key.ExternalOrderID,
		telemetry.SpanAttrTestOrder, key.TestOrder)
	defer span.End()
	ctx, _ = logger.WithExternalOrderID(ctx, logger.LOr(ctx, r.logger), key.ExternalOrderID)

	result := &ReconcileResult{}
	err := r.scope.Execute(ctx, func(repos order.Repositories) error {
		*result = ReconcileResult{}
		err := r.reconcile(ctx, repos, key, payload, desired, result)
		if errors.Is(err, errStopAndCommit) {
			return nil
		}
		return err
	})
	if err == nil && result.UnknownProduct {
		err = fmt.Errorf("%w: line item without SKU, earlier writes kept", order.ErrUnknownProduct)
	}

	telemetry.RecordError(span, err)
	if result.Order != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrOrderID, result.Order.ID,
			telemetry.SpanAttrCreated, result.Created)
	}

	r.metrics.ReconcileFinished(ctx, OutcomeOf(err), time.Since(start))
	if result.CollapsedDuplicates > 0 && (err == nil || result.UnknownProduct) {
		r.metrics.DuplicatesCollapsed(ctx, result.CollapsedDuplicates)
	}

	if err != nil {
		if result.UnknownProduct {
			return result, err
		}
		return nil, err
	}
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, repos order.Repositories, key order.Key, payload *order.NormalizedOrder, desired order.State, result *ReconcileResult) error {
	log := logger.LOr(ctx, r.logger).With(
		zap.Int64("shop_id", key.ShopID),
		zap.Bool("test_order", key.TestOrder),
	)

	if err := repos.Orders.LockKey(ctx, key); err != nil {
		return fmt.Errorf("failed to lock order key: %w", err)
	}

	currency, err := repos.Reference.ResolveCurrency(ctx, payload.CurrencyCode)
	if err != nil {
		return err
	}

	o, err := r.loadOrCreate(ctx, repos, key, payload, currency.ID, desired, result)
	if err != nil {
		return err
	}
	if result.CollapsedDuplicates > 0 {
		log.Warn("Collapsed duplicate orders",
			zap.Int64("kept_order_id", o.ID),
			zap.Int("deleted", result.CollapsedDuplicates))
	}

	o.Apply(payload.Fields, currency.ID)
	if err := r.mergeCustomer(ctx, repos, o, payload.Customer); err != nil {
		return err
	}
	result.StateChanged = o.TransitionTo(desired)
	if err := repos.Orders.Save(ctx, o); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	result.Order = o

	if err := r.replaceRows(ctx, repos, o, payload.LineItems, result); err != nil {
		if errors.Is(err, errStopAndCommit) {
			log.Warn("Line item without SKU, keeping partial reconciliation",
				zap.Int64("order_id", o.ID),
				zap.Int("rows_written", result.Rows))
		}
		return err
	}

	if err := r.replaceTags(ctx, repos, o, payload.Tags, result); err != nil {
		return err
	}

	if !o.HasWarehouse() {
		code, err := r.recommendWarehouse(ctx, o)
		if err != nil {
			return fmt.Errorf("%w: warehouse recommendation: %v", order.ErrExternalDependency, err)
		}
		o.AssignWarehouse(code)
		result.WarehouseAssigned = o.HasWarehouse()
	}

	result.PaymentDateSet = o.MarkPaidIfDue(r.now())

	if result.WarehouseAssigned || result.PaymentDateSet {
		if err := repos.Orders.Save(ctx, o); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
	}

	log.Debug("Order reconciled",
		zap.Int64("order_id", o.ID),
		zap.Bool("created", result.Created),
		zap.String("state", o.State.String()),
		zap.Int("rows", result.Rows),
		zap.Int("tags", result.Tags))
	return nil
}

// loadOrCreate returns the locked order for key. When several exist the
// oldest survives and the rest are deleted with their rows and tag links.
func (r *Reconciler) loadOrCreate(ctx context.Context, repos order.Repositories, key order.Key, payload *order.NormalizedOrder, currencyID int64, desired order.State, result *ReconcileResult) (*order.Order, error) {
	matches, err := repos.Orders.FindForUpdate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	switch len(matches) {
	case 0:
		o := order.NewOrder(r.ids.NextID(), key.ShopID, currencyID, payload.Fields, desired)
		if err := repos.Orders.Create(ctx, o); err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		result.Created = true
		return o, nil
	case 1:
		return matches[0], nil
	default:
		duplicates := make([]int64, 0, len(matches)-1)
		for _, m := range matches[1:] {
			duplicates = append(duplicates, m.ID)
		}
		if err := repos.Orders.DeleteByIDs(ctx, duplicates); err != nil {
			return nil, fmt.Errorf("failed to delete duplicate orders: %w", err)
		}
		result.CollapsedDuplicates = len(duplicates)
		return matches[0], nil
	}
}

func (r *Reconciler) mergeCustomer(ctx context.Context, repos order.Repositories, o *order.Order, incoming order.CustomerDetails) error {
	details := incoming
	switch {
	case !o.HasCustomerDetails():
		details.ID = r.ids.NextID()
		if err := repos.Customers.Create(ctx, &details); err != nil {
			return fmt.Errorf("failed to create customer details: %w", err)
		}
		o.AttachCustomerDetails(details.ID)
	case r.customerPolicy == order.CustomerLatestWins:
		details.ID = *o.CustomerDetailsID
		if err := repos.Customers.Save(ctx, &details); err != nil {
			return fmt.Errorf("failed to update customer details: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) replaceRows(ctx context.Context, repos order.Repositories, o *order.Order, items []order.LineItem, result *ReconcileResult) error {
	if err := repos.Rows.DeleteByOrderID(ctx, o.ID); err != nil {
		return fmt.Errorf("failed to delete order rows: %w", err)
	}

	packages, err := r.resolvePackages(ctx, repos.Reference, items)
	if err != nil {
		return err
	}

	for i, item := range items {
		var pkg *order.Package
		switch {
		case item.HasSKU():
			pkg = packages[item.SKU]
		case r.unknownSKU == order.UnknownSKUPlaceholder:
			pkg = packages[order.UnknownPackageIdentifier]
		case r.unknownSKU == order.UnknownSKUCommitPartial:
			result.UnknownProduct = true
			return errStopAndCommit
		default:
			return fmt.Errorf("%w: line item %d has no SKU", order.ErrUnknownProduct, i)
		}

		if err := repos.Rows.Create(ctx, order.NewOrderRow(r.ids.NextID(), o.ID, pkg.ID, item)); err != nil {
			return fmt.Errorf("failed to create order row: %w", err)
		}
		result.Rows++
	}
	return nil
}

// resolvePackages upserts the packages of every line item that will get a
// row, in identifier order. Concurrent transactions then take the unique
// index locks in the same order and cannot deadlock on each other.
func (r *Reconciler) resolvePackages(ctx context.Context, ref order.ReferenceResolver, items []order.LineItem) (map[string]*order.Package, error) {
	// identifier -> resolved through the unknown placeholder
	placeholder := make(map[string]bool)
	for _, item := range items {
		if item.HasSKU() {
			if _, ok := placeholder[item.SKU]; !ok {
				placeholder[item.SKU] = false
			}
			continue
		}
		if r.unknownSKU != order.UnknownSKUPlaceholder {
			break
		}
		placeholder[order.UnknownPackageIdentifier] = true
	}

	keys := make([]string, 0, len(placeholder))
	for k := range placeholder {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	packages := make(map[string]*order.Package, len(keys))
	for _, k := range keys {
		var (
			pkg *order.Package
			err error
		)
		if placeholder[k] {
			pkg, err = ref.ResolveUnknownPackage(ctx)
		} else {
			pkg, err = ref.ResolvePackage(ctx, k)
		}
		if err != nil {
			return nil, err
		}
		packages[k] = pkg
	}
	return packages, nil
}

func (r *Reconciler) replaceTags(ctx context.Context, repos order.Repositories, o *order.Order, tags string, result *ReconcileResult) error {
	if err := repos.TagLinks.DeleteByOrderID(ctx, o.ID); err != nil {
		return fmt.Errorf("failed to delete tag links: %w", err)
	}

	names := order.SplitTags(tags)
	distinct := make([]string, 0, len(names))
	resolved := make(map[string]*order.Tag, len(names))
	for _, name := range names {
		if _, ok := resolved[name]; !ok {
			resolved[name] = nil
			distinct = append(distinct, name)
		}
	}
	// same lock order as resolvePackages
	sort.Strings(distinct)
	for _, name := range distinct {
		tag, err := repos.Reference.ResolveTag(ctx, name)
		if err != nil {
			return err
		}
		resolved[name] = tag
	}

	for _, name := range names {
		link := &order.TagLink{ID: r.ids.NextID(), OrderID: o.ID, TagID: resolved[name].ID}
		if err := repos.TagLinks.Create(ctx, link); err != nil {
			return fmt.Errorf("failed to link tag: %w", err)
		}
		result.Tags++
	}
	return nil
}

func (r *Reconciler) recommendWarehouse(ctx context.Context, o *order.Order) (string, error) {
	if r.warehouse == nil {
		return "", nil
	}
	if r.warehouseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.warehouseTimeout)
		defer cancel()
	}
	return r.warehouse.Recommend(ctx, o)
}
