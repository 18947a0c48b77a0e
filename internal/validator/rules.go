package validator

import (
	"log"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"rentora_backend/internal/models"
)

// registerCustomRules регистрирует кастомные правила и типы.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Без правила приложение запускать нельзя
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("gateway", validateGateway)
	mustRegister("payment_kind", validatePaymentKind)
	mustRegister("subject_type", validateSubjectType)

	// decimal.Decimal проверяется как число: работают required, gt, lte
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
}

func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

func validateGateway(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // 'required' обрабатывает пустые
	}
	switch models.PaymentMethod(value) {
	case models.PaymentMethodVNPay, models.PaymentMethodMoMo, models.PaymentMethodZaloPay:
		return true
	default:
		return false
	}
}

func validatePaymentKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.PaymentKind(value) {
	case models.PaymentKindDeposit, models.PaymentKindRent:
		return true
	default:
		return false
	}
}

func validateSubjectType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.SubjectType(value) {
	case models.SubjectTypeAccommodation, models.SubjectTypeContract:
		return true
	default:
		return false
	}
}
