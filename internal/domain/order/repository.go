package order

import "context"

// ShopRepository looks up and manages shops
type ShopRepository interface {
	// FindByDomain returns shared.ErrNotFound when no shop has the domain
	FindByDomain(ctx context.Context, domain string) (*Shop, error)
	Create(ctx context.Context, shop *Shop) error
	Save(ctx context.Context, shop *Shop) error
	List(ctx context.Context) ([]*Shop, error)
}

// OrderRepository persists orders. Lock methods must run inside a ReconcileScope.
type OrderRepository interface {
	// LockKey takes an exclusive lock on the reconciliation key, creating the
	// key row if needed. Held until the surrounding transaction ends.
	LockKey(ctx context.Context, key Key) error
	// FindForUpdate returns all orders matching key, locked, lowest ID first
	FindForUpdate(ctx context.Context, key Key) ([]*Order, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
	Create(ctx context.Context, order *Order) error
	Save(ctx context.Context, order *Order) error
	// DeleteByIDs deletes orders together with their rows and tag links
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// CustomerDetailsRepository persists customer details
type CustomerDetailsRepository interface {
	Create(ctx context.Context, details *CustomerDetails) error
	Save(ctx context.Context, details *CustomerDetails) error
	FindByID(ctx context.Context, id int64) (*CustomerDetails, error)
}

// OrderRowRepository persists order rows
type OrderRowRepository interface {
	DeleteByOrderID(ctx context.Context, orderID int64) error
	Create(ctx context.Context, row *OrderRow) error
	FindByOrderID(ctx context.Context, orderID int64) ([]*OrderRow, error)
}

// TagLinkRepository persists order tag links
type TagLinkRepository interface {
	DeleteByOrderID(ctx context.Context, orderID int64) error
	Create(ctx context.Context, link *TagLink) error
	// FindTagNames returns the tag names linked to an order in link order
	FindTagNames(ctx context.Context, orderID int64) ([]string, error)
}

// Repositories groups the repositories bound to one transaction
type Repositories struct {
	Orders    OrderRepository
	Customers CustomerDetailsRepository
	Rows      OrderRowRepository
	TagLinks  TagLinkRepository
	Reference ReferenceResolver
}

// ReconcileScope runs fn in a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type ReconcileScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}
