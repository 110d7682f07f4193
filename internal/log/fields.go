package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldCategoryID    = "category_id"
	FieldLevel         = "alert_level"
	FieldPercent       = "percent"
	FieldMonth         = "month"
	FieldSpendMinor    = "spend_minor"
	FieldLimitMinor    = "limit_minor"
	FieldStreakCurrent = "streak_current"
	FieldStreakLongest = "streak_longest"
	FieldTable         = "table"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentBudget    = "budget"
	ComponentStreak    = "streak"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpEvaluate = "evaluate"
	OpRecord   = "record"
	OpPrune    = "prune"
	OpPublish  = "publish"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAlert adds the fields describing one budget alert.
func (f LogFields) WithAlert(categoryID string, level int, percent int64, month string) LogFields {
	f[FieldCategoryID] = categoryID
	f[FieldLevel] = level
	f[FieldPercent] = percent
	f[FieldMonth] = month
	return f
}

// WithSpend adds spend and limit in minor units.
func (f LogFields) WithSpend(spendMinor, limitMinor int64) LogFields {
	f[FieldSpendMinor] = spendMinor
	f[FieldLimitMinor] = limitMinor
	return f
}

func (f LogFields) WithStreak(current, longest int) LogFields {
	f[FieldStreakCurrent] = current
	f[FieldStreakLongest] = longest
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
