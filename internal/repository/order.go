package repository

import (
	"context"
	"errors"
	"gym-billing-reconciler/internal/model"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrEmptyCart = errors.New("cart is empty")

type CreateOrderInput struct {
	UserID          string
	StripeSessionID string
	ShippingAddress model.ShippingAddress
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
}

type OrderRepository interface {
	// CreateFromCart converts the user's cart into a pending order. A second call with
	// the same session ID returns the order created by the first with created set to false.
	CreateFromCart(ctx context.Context, in CreateOrderInput) (order *model.Order, created bool, err error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error)
	MarkPaid(ctx context.Context, orderID string) (*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) CreateFromCart(ctx context.Context, in CreateOrderInput) (*model.Order, bool, error) {
	var order model.Order
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Items").
			Where("stripe_session_id = ?", in.StripeSessionID).
			First(&order).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var cart []model.CartItem
		if err := tx.Where("user_id = ?", in.UserID).Order("id ASC").Find(&cart).Error; err != nil {
			return err
		}
		if len(cart) == 0 {
			return ErrEmptyCart
		}

		orderID := uuid.NewString()
		subtotal := decimal.Zero
		items := make([]model.OrderItem, len(cart))
		for i, c := range cart {
			subtotal = subtotal.Add(c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))))
			items[i] = model.OrderItem{
				OrderID:     orderID,
				ProductID:   c.ProductID,
				ProductName: c.ProductName,
				UnitPrice:   c.UnitPrice,
				Quantity:    c.Quantity,
			}
		}

		order = model.Order{
			ID:              orderID,
			UserID:          in.UserID,
			Items:           items,
			Subtotal:        subtotal,
			ShippingCost:    in.ShippingCost,
			Tax:             in.Tax,
			TotalAmount:     subtotal.Add(in.ShippingCost).Add(in.Tax),
			ShippingAddress: in.ShippingAddress,
			StripeSessionID: in.StripeSessionID,
			PaymentStatus:   model.PaymentStatusPending,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		created = true

		return tx.Where("user_id = ?", in.UserID).Delete(&model.CartItem{}).Error
	})
	if err != nil {
		return nil, false, err
	}

	return &order, created, nil
}

func (r *orderRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Update the record
		result := tx.Model(&model.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"payment_status": model.PaymentStatusPaid,
				"updated_at":     time.Now(),
			})

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// Fetch the updated record within the same transaction
		return tx.Preload("Items").Where("id = ?", orderID).First(&order).Error
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
