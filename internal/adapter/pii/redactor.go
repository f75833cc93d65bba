package pii

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// maxLoggedBody caps how much of a registry payload ends up in a log line.
const maxLoggedBody = 2048

// Redactor masks secrets and student personal data in registry payloads
// before they are logged.
type Redactor struct {
	fieldsToRedact map[string]struct{} // lower-cased for case-insensitive lookups
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor instance with a given set of fields to redact.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field != "" {
			fieldSet[field] = struct{}{}
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact returns a copy of the JSON payload with every configured field, at
// any depth, replaced by RedactedPlaceholder. The bool reports whether
// anything was masked. Payloads that are not JSON come back as an error.
func (r *Redactor) Redact(payload []byte) ([]byte, bool, error) {
	if len(r.fieldsToRedact) == 0 || len(payload) == 0 {
		return payload, false, nil
	}

	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, false, err
	}

	redacted := r.walk(doc)
	if !redacted {
		return payload, false, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// ForLog renders a payload for a log attribute: redacted and truncated.
// Non-JSON payloads are replaced entirely since they cannot be inspected.
func (r *Redactor) ForLog(payload []byte) string {
	out, _, err := r.Redact(payload)
	if err != nil {
		r.logger.Debug("payload is not JSON, omitting from log", "bytes", len(payload))
		return RedactedPlaceholder
	}
	if len(out) > maxLoggedBody {
		return string(out[:maxLoggedBody]) + "...(truncated)"
	}
	return string(out)
}

func (r *Redactor) walk(node interface{}) bool {
	redacted := false
	switch v := node.(type) {
	case map[string]interface{}:
		for key, child := range v {
			if _, ok := r.fieldsToRedact[strings.ToLower(key)]; ok {
				v[key] = RedactedPlaceholder
				redacted = true
				continue
			}
			if r.walk(child) {
				redacted = true
			}
		}
	case []interface{}:
		for _, child := range v {
			if r.walk(child) {
				redacted = true
			}
		}
	}
	return redacted
}
