package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReferenceRepository implements order.ReferenceResolver on top of the
// unique indexes of currencies, packages and order tags. Creation is
// INSERT ... ON CONFLICT DO NOTHING followed by a read, so concurrent
// resolvers of the same key converge on one row.
type GormReferenceRepository struct {
	db  *gorm.DB
	ids shared.IDGenerator
}

// NewGormReferenceRepository creates a new GormReferenceRepository
func NewGormReferenceRepository(db *gorm.DB, ids shared.IDGenerator) *GormReferenceRepository {
	return &GormReferenceRepository{db: db, ids: ids}
}

// ResolveCurrency finds or creates the currency with the trimmed code
func (r *GormReferenceRepository) ResolveCurrency(ctx context.Context, code string) (*order.Currency, error) {
	name := order.NormalizeCurrencyCode(code)
	var model models.CurrencyModel
	err := r.getOrCreate(ctx, &model, "name", name, &models.CurrencyModel{ID: r.ids.NextID(), Name: name})
	if err != nil {
		return nil, fmt.Errorf("resolve currency %q: %w", name, err)
	}
	return model.ToDomain(), nil
}

// ResolvePackage finds or creates the package identified by sku
func (r *GormReferenceRepository) ResolvePackage(ctx context.Context, sku string) (*order.Package, error) {
	var model models.PackageModel
	candidate := models.PackageModelFromDomain(order.NewPackageFromSKU(r.ids.NextID(), sku))
	if err := r.getOrCreate(ctx, &model, "identifier", sku, candidate); err != nil {
		return nil, fmt.Errorf("resolve package %q: %w", sku, err)
	}
	return model.ToDomain(), nil
}

// ResolveUnknownPackage finds or creates the placeholder package
func (r *GormReferenceRepository) ResolveUnknownPackage(ctx context.Context) (*order.Package, error) {
	var model models.PackageModel
	candidate := models.PackageModelFromDomain(order.NewUnknownPackage(r.ids.NextID()))
	if err := r.getOrCreate(ctx, &model, "identifier", order.UnknownPackageIdentifier, candidate); err != nil {
		return nil, fmt.Errorf("resolve unknown package: %w", err)
	}
	return model.ToDomain(), nil
}

// ResolveTag finds or creates the tag with the given name
func (r *GormReferenceRepository) ResolveTag(ctx context.Context, name string) (*order.Tag, error) {
	var model models.OrderTagModel
	if err := r.getOrCreate(ctx, &model, "name", name, &models.OrderTagModel{ID: r.ids.NextID(), Name: name}); err != nil {
		return nil, fmt.Errorf("resolve tag %q: %w", name, err)
	}
	return model.ToDomain(), nil
}

// getOrCreate loads dest by its unique column, inserting candidate first when
// the row does not exist. dest and candidate must be distinct values: a
// populated primary key on dest would narrow the final read.
func (r *GormReferenceRepository) getOrCreate(ctx context.Context, dest any, column string, value string, candidate any) error {
	db := r.db.WithContext(ctx)
	err := db.Where(column+" = ?", value).Take(dest).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		DoNothing: true,
	}).Create(candidate).Error; err != nil {
		return err
	}

	return db.Where(column+" = ?", value).Take(dest).Error
}

var _ order.ReferenceResolver = (*GormReferenceRepository)(nil)
