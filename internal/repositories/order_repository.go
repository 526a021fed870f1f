package repositories

import (
	"errors"

	"stitchhub_backend/internal/models"

	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	FindByID(id string) (*models.Order, error)
	FindByTransactionID(transactionID string) (*models.Order, error)
	Create(order *models.Order) error
	Save(order *models.Order) error
	// ApplyPayment накапливает оплату заказа; в production заказ
	// переходит только когда сумма набрана полностью.
	ApplyPayment(orderID string, amount float64) error
}

type OrderRepositoryImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{db: db}
}

func (r *OrderRepositoryImpl) WithTx(tx *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{db: tx}
}

func (r *OrderRepositoryImpl) FindByID(id string) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepositoryImpl) FindByTransactionID(transactionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepositoryImpl) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *OrderRepositoryImpl) Save(order *models.Order) error {
	return r.db.Save(order).Error
}

func (r *OrderRepositoryImpl) ApplyPayment(orderID string, amount float64) error {
	order, err := r.FindByID(orderID)
	if err != nil {
		return err
	}

	order.AmountPaid += amount
	if order.Status == models.OrderStatusPendingPayment && order.AmountPaid >= order.TotalPrice {
		order.Status = models.OrderStatusInProduction
	}
	return r.db.Save(order).Error
}
