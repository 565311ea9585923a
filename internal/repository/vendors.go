package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// VendorRepository persists domain.Vendor and domain.Product rows.
type VendorRepository struct {
	db *sqlx.DB
}

// UpsertVendor inserts a vendor if absent, leaving the display name alone
// on conflict (the first-seen spelling wins; renames are an admin action).
func (r *VendorRepository) UpsertVendor(ctx context.Context, v *domain.Vendor) error {
	const q = `
INSERT INTO vendors (vendor_norm, display_name, created_at)
VALUES (:vendor_norm, :display_name, now())
ON CONFLICT (vendor_norm) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, q, v)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "upsert vendor")
	}
	return nil
}

// UpsertProduct inserts a product if absent.
func (r *VendorRepository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	const q = `
INSERT INTO products (product_key, vendor_norm, product_norm, display_name, created_at)
VALUES (:product_key, :vendor_norm, :product_norm, :display_name, now())
ON CONFLICT (product_key) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "upsert product")
	}
	return nil
}

// GetProduct loads a product by its vendor_norm/product_norm key.
func (r *VendorRepository) GetProduct(ctx context.Context, productKey string) (*domain.Product, error) {
	var p domain.Product
	const q = `SELECT product_key, vendor_norm, product_norm, display_name, created_at FROM products WHERE product_key = $1`
	if err := r.db.GetContext(ctx, &p, q, productKey); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "get product")
	}
	return &p, nil
}
