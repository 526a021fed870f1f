package gateways

import (
	"encoding/json"
	"errors"
	"fmt"

	"stitchhub_backend/internal/models"
)

// Metadata — типизированный payload, который шлюз обязан вернуть
// вербатим при settlement. Раньше это был мешок строк; теперь это
// размеченная структура, валидируемая на границе, где она возвращается
// в систему.
type Metadata struct {
	Kind              models.TransactionKind `json:"kind"`
	Email             string                 `json:"email,omitempty"`
	CourseID          string                 `json:"course_id,omitempty"`
	OrderID           string                 `json:"order_id,omitempty"`
	TransactionID     string                 `json:"transaction_id,omitempty"`
	InstallmentNumber int                    `json:"installment_number,omitempty"`
	TotalInstallments int                    `json:"total_installments,omitempty"`
}

// IsInstallment — платеж относится к плану рассрочки (первый или очередной кусок).
func (m Metadata) IsInstallment() bool {
	return m.Kind == models.TransactionKindInstallment && m.TransactionID != ""
}

// Validate проверяет metadata, вернувшуюся от шлюза.
// Вызывается до любых мутаций состояния.
func (m Metadata) Validate() error {
	if !models.ValidTransactionKind(m.Kind) {
		return fmt.Errorf("metadata: unknown kind %q", m.Kind)
	}
	if m.Email == "" {
		return errors.New("metadata: payer email is required")
	}
	if m.IsInstallment() {
		if m.InstallmentNumber < 1 {
			return fmt.Errorf("metadata: installment_number %d out of range", m.InstallmentNumber)
		}
		if m.TotalInstallments > 0 && m.InstallmentNumber > m.TotalInstallments {
			return fmt.Errorf("metadata: installment %d exceeds total %d", m.InstallmentNumber, m.TotalInstallments)
		}
	}
	return nil
}

// ParseMetadata разбирает metadata из webhook-payload. Провайдеры
// отдают пустую metadata по-разному: null, "", {}.
func ParseMetadata(raw json.RawMessage) (Metadata, error) {
	var md Metadata
	if len(raw) == 0 {
		return md, errors.New("metadata missing from settlement payload")
	}
	s := string(raw)
	if s == "null" || s == `""` {
		return md, errors.New("metadata missing from settlement payload")
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return md, fmt.Errorf("malformed metadata: %w", err)
	}
	return md, nil
}
