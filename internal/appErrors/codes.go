package appErrors

// Коды ошибок сгруппированные по доменам
const (
	// Аутентификация и авторизация
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"

	// Валидация
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidRequest   ErrorCode = "INVALID_REQUEST"

	// Ресурсы
	CodeUserNotFound   ErrorCode = "USER_NOT_FOUND"
	CodeCourseNotFound ErrorCode = "COURSE_NOT_FOUND"
	CodePlanNotFound   ErrorCode = "PLAN_NOT_FOUND"

	// Платежи
	CodeGatewayUnavailable  ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeSignatureInvalid    ErrorCode = "SIGNATURE_INVALID"
	CodeAlreadyPaid         ErrorCode = "ALREADY_PAID"
	CodeDuplicateSettlement ErrorCode = "DUPLICATE_SETTLEMENT"
	CodePartialSideEffect   ErrorCode = "PARTIAL_SIDE_EFFECT"
	CodeUnknownGateway      ErrorCode = "UNKNOWN_GATEWAY"

	// Системные ошибки
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError ErrorCode = "DATABASE_ERROR"
)
