// Package shopadmin onboards shops and manages their webhook shared secrets.
package shopadmin

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ShopInput describes one shop to create or update
type ShopInput struct {
	Domain string `yaml:"domain" json:"domain" validate:"required,fqdn"`
	Name   string `yaml:"name" json:"name" validate:"max=255"`
	Secret string `yaml:"secret" json:"secret" validate:"max=255"`
}

// ImportShop is one entry of an ImportFile. A missing secret leaves the
// stored one untouched; an explicit empty secret clears it.
type ImportShop struct {
	Domain string  `yaml:"domain" validate:"required,fqdn"`
	Name   string  `yaml:"name" validate:"max=255"`
	Secret *string `yaml:"secret" validate:"omitempty,max=255"`
}

// ImportFile is the YAML document accepted by Import
type ImportFile struct {
	Shops []ImportShop `yaml:"shops" validate:"dive"`
}

// ImportResult counts the outcome of an import
type ImportResult struct {
	Created   int
	Updated   int
	Unchanged int
}

// Service manages shops
type Service struct {
	shops    order.ShopRepository
	ids      shared.IDGenerator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a shop admin service
func NewService(shops order.ShopRepository, ids shared.IDGenerator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		shops:    shops,
		ids:      ids,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers a new shop. Returns shared.ErrAlreadyExists for a taken domain.
func (s *Service) Create(ctx context.Context, in ShopInput) (*order.Shop, error) {
	in.Domain = order.NormalizeDomain(in.Domain)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	shop := order.NewShop(s.ids.NextID(), in.Domain, in.Name, in.Secret)
	if err := s.shops.Create(ctx, shop); err != nil {
		return nil, err
	}
	s.logger.Info("Shop created",
		zap.Int64("shop_id", shop.ID),
		zap.String("shop_domain", shop.Domain),
		zap.Bool("signed", shop.HasSecret()),
	)
	return shop, nil
}

// List returns all shops ordered by domain
func (s *Service) List(ctx context.Context) ([]*order.Shop, error) {
	return s.shops.List(ctx)
}

// SetSecret replaces the shared secret of an existing shop. An empty secret
// turns off signature verification for that shop.
func (s *Service) SetSecret(ctx context.Context, domain, secret string) (*order.Shop, error) {
	shop, err := s.shops.FindByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	shop.RotateSecret(secret)
	if err := s.shops.Save(ctx, shop); err != nil {
		return nil, err
	}
	s.logger.Info("Shop secret rotated",
		zap.String("shop_domain", shop.Domain),
		zap.Bool("signed", shop.HasSecret()),
	)
	return shop, nil
}

// Import reads an ImportFile from r and upserts every shop in it. Existing
// shops get their name replaced, and their secret only when the entry sets one.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var file ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &ImportResult{}, nil
		}
		return nil, fmt.Errorf("%w: decode shops: %v", shared.ErrInvalidInput, err)
	}

	seen := make(map[string]struct{}, len(file.Shops))
	for i := range file.Shops {
		file.Shops[i].Domain = order.NormalizeDomain(file.Shops[i].Domain)
		d := file.Shops[i].Domain
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("%w: shop %q listed twice", shared.ErrInvalidInput, d)
		}
		seen[d] = struct{}{}
	}
	if err := s.validate.Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	res := &ImportResult{}
	for _, in := range file.Shops {
		existing, err := s.shops.FindByDomain(ctx, in.Domain)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			create := ShopInput{Domain: in.Domain, Name: in.Name}
			if in.Secret != nil {
				create.Secret = *in.Secret
			}
			if _, err := s.Create(ctx, create); err != nil {
				return res, fmt.Errorf("create %s: %w", in.Domain, err)
			}
			res.Created++
		case err != nil:
			return res, fmt.Errorf("find %s: %w", in.Domain, err)
		case existing.Name == in.Name && (in.Secret == nil || existing.SharedSecret == *in.Secret):
			res.Unchanged++
		default:
			existing.Name = in.Name
			if in.Secret != nil {
				existing.RotateSecret(*in.Secret)
			}
			if err := s.shops.Save(ctx, existing); err != nil {
				return res, fmt.Errorf("update %s: %w", in.Domain, err)
			}
			res.Updated++
		}
	}

	s.logger.Info("Shops imported",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
	)
	return res, nil
}
