package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrReportNotFound ErrCode = "REPORT_NOT_FOUND"
	ErrNotAssigned    ErrCode = "TEST_NOT_ASSIGNED"

	// ─── Answers & scoring ─────────────────────────────────────────────
	ErrIntegrity   ErrCode = "INTEGRITY_ERROR"
	ErrSubjectBusy ErrCode = "SUBJECT_BUSY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_FAILURE"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validierung fehlgeschlagen. Bitte überprüfen Sie Ihre Eingaben."
	case ErrInvalidID:
		return "Ungültiges ID-Format."
	case ErrInvalidPayload:
		return "Ungültiger Anfrageinhalt."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Ressource nicht gefunden."
	case ErrReportNotFound:
		return "Für diesen Test wurde noch kein Bericht erstellt."
	case ErrNotAssigned:
		return "Dieser Test ist dem Patienten nicht zugewiesen."

	// ─── Answers & scoring ─────────────────────────────────────────────
	case ErrIntegrity:
		return "Gespeicherte Antworten passen nicht zum Fragenkatalog."
	case ErrSubjectBusy:
		return "Für diesen Patienten wird gerade eine Eingabe gespeichert. Bitte erneut versuchen."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Zu viele Anfragen. Bitte versuchen Sie es später erneut."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrUpstream:
		return "Ein abhängiger Dienst ist nicht erreichbar."
	case ErrInternal:
		return "Interner Serverfehler."
	default:
		return "Ein unerwarteter Fehler ist aufgetreten."
	}
}
