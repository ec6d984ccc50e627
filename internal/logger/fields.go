package logger

// Имена полей для структурных логов.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldFrameID    = "frame_id"
	FieldSource     = "source"
	FieldUserID     = "user_id"
	FieldChatID     = "chat_id"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldDurationMS = "duration_ms"
	FieldLabel      = "label"
	FieldScore      = "score"
	FieldFraction   = "anomalous_fraction"
	FieldStrategy   = "strategy"
	FieldDropped    = "dropped"
	FieldAddress    = "address"
	FieldPath       = "path"
	FieldShape      = "shape"
)
