package customers

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

// UpsertInput is the customer identity submitted with a checkout.
type UpsertInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     *string
	Address   *types.Address
}

// Repository manages customer identities keyed by lowercased email.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	// UpsertByEmail creates the customer or refreshes an existing row with
	// the non-empty incoming fields. Empty input never blanks a stored value.
	UpsertByEmail(ctx context.Context, in UpsertInput) (*models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) UpsertByEmail(ctx context.Context, in UpsertInput) (*models.Customer, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}

	existing, err := r.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing == nil {
		created := &models.Customer{
			Email:     email,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Phone:     in.Phone,
			Address:   in.Address,
		}
		if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
			return nil, err
		}
		return created, nil
	}

	updates := refreshFields(in)
	if len(updates) > 0 {
		err := r.db.WithContext(ctx).
			Model(&models.Customer{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}
	return r.FindByEmail(ctx, email)
}

func refreshFields(in UpsertInput) map[string]any {
	updates := map[string]any{}
	if name := strings.TrimSpace(in.FirstName); name != "" {
		updates["first_name"] = name
	}
	if name := strings.TrimSpace(in.LastName); name != "" {
		updates["last_name"] = name
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil && strings.TrimSpace(in.Address.Line1) != "" {
		updates["address"] = in.Address
	}
	return updates
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
