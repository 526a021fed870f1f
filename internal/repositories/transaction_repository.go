package repositories

import (
	"errors"
	"time"

	"stitchhub_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInstallmentNotFound = errors.New("installment not found")
)

type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository

	Create(tx *models.Transaction) error
	// CreateWithInstallments пишет транзакцию плана и все N строк рассрочки
	// одной gorm-транзакцией: либо видны все строки, либо ни одной.
	CreateWithInstallments(tx *models.Transaction, installments []models.Installment) error
	FindByID(id string) (*models.Transaction, error)
	// FindSucceededByReference — проверка идемпотентности: есть ли уже
	// успешная транзакция с этим внешним reference.
	FindSucceededByReference(reference string) (*models.Transaction, error)
	MarkSucceeded(id, reference string) error
	MarkFailed(id string) error
	ListByUser(userID string, limit, offset int) ([]models.Transaction, int64, error)

	FindInstallment(transactionID string, number int) (*models.Installment, error)
	MarkInstallmentPaid(installmentID, reference string, paidAt time.Time) (bool, error)
	NextPendingInstallment(transactionID string) (*models.Installment, error)
	ListInstallments(transactionID string) ([]models.Installment, error)
	CountPaidInstallments(transactionID string) (int64, error)
}

type TransactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (r *TransactionRepositoryImpl) WithTx(tx *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: tx}
}

func (r *TransactionRepositoryImpl) Create(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *TransactionRepositoryImpl) CreateWithInstallments(tx *models.Transaction, installments []models.Installment) error {
	return r.db.Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tx).Error; err != nil {
			return err
		}
		for i := range installments {
			installments[i].TransactionID = tx.ID
		}
		return dbtx.Create(&installments).Error
	})
}

func (r *TransactionRepositoryImpl) FindByID(id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("installment_number ASC")
	}).First(&tx, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) FindSucceededByReference(reference string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.
		Where("gateway_reference = ? AND status = ?", reference, models.TransactionStatusSucceeded).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) MarkSucceeded(id, reference string) error {
	return r.db.Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            models.TransactionStatusSucceeded,
			"gateway_reference": reference,
		}).Error
}

func (r *TransactionRepositoryImpl) MarkFailed(id string) error {
	return r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Update("status", models.TransactionStatusFailed).Error
}

func (r *TransactionRepositoryImpl) ListByUser(userID string, limit, offset int) ([]models.Transaction, int64, error) {
	var txs []models.Transaction
	var total int64

	base := r.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := base.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error
	return txs, total, err
}

func (r *TransactionRepositoryImpl) FindInstallment(transactionID string, number int) (*models.Installment, error) {
	var inst models.Installment
	err := r.db.
		Where("transaction_id = ? AND installment_number = ?", transactionID, number).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// MarkInstallmentPaid переводит pending-кусок в paid. Возвращает false,
// если кусок уже не pending: guard по статусу в WHERE, и проигравший
// гонку конкурент обязан увидеть это по RowsAffected, а не по err == nil.
func (r *TransactionRepositoryImpl) MarkInstallmentPaid(installmentID, reference string, paidAt time.Time) (bool, error) {
	res := r.db.Model(&models.Installment{}).
		Where("id = ? AND status = ?", installmentID, models.InstallmentStatusPending).
		Updates(map[string]interface{}{
			"status":            models.InstallmentStatusPaid,
			"gateway_reference": reference,
			"paid_at":           paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TransactionRepositoryImpl) NextPendingInstallment(transactionID string) (*models.Installment, error) {
	var inst models.Installment
	err := r.db.
		Where("transaction_id = ? AND status = ?", transactionID, models.InstallmentStatusPending).
		Order("installment_number ASC").
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *TransactionRepositoryImpl) ListInstallments(transactionID string) ([]models.Installment, error) {
	var insts []models.Installment
	err := r.db.
		Where("transaction_id = ?", transactionID).
		Order("installment_number ASC").
		Find(&insts).Error
	return insts, err
}

func (r *TransactionRepositoryImpl) CountPaidInstallments(transactionID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Installment{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.InstallmentStatusPaid).
		Count(&count).Error
	return count, err
}
