package validator

import (
	"log"

	"stitchhub_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует все кастомные функции валидации в
// переданном экземпляре валидатора.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Если правило не удалось зарегистрировать, приложение
			// не должно запускаться.
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'is-transaction-kind': Проверяет вид платежа
	mustRegister("is-transaction-kind", validateTransactionKind)

	// 'is-gateway': Проверяет имя платежного шлюза
	mustRegister("is-gateway", validateGatewayName)
}

func validateTransactionKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // пустые проверяет 'required'
	}
	return models.ValidTransactionKind(models.TransactionKind(value))
}

func validateGatewayName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch value {
	case "paystack", "flutterwave":
		return true
	default:
		return false
	}
}
