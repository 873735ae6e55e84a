package models

const (
	ReasonUnknown      = "Unknown"
	ReasonNotSpecified = "Not specified"
	ReasonNotAvailable = "N/A"
)

// ReasonOr returns the record's return reason, or fallback when it is empty.
func ReasonOr(r OrderRecord, fallback string) string {
	if r.ReturnReason == "" {
		return fallback
	}
	return r.ReturnReason
}
