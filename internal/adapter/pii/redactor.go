package pii

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/V4T54L/foodhub/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// DefaultFields are the order payload fields masked when none are configured.
var DefaultFields = []string{"customerPhone", "customerEmail"}

// Redactor masks configured fields in event payloads before they leave the
// process.
type Redactor struct {
	fields map[string]struct{}
	logger *slog.Logger
}

// NewRedactor creates a Redactor for the given payload field names. Blank
// names are ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			set[field] = struct{}{}
		}
	}
	return &Redactor{
		fields: set,
		logger: logger.With("component", "pii_redactor"),
	}
}

// Redact rewrites event.Payload with every configured field masked, at any
// depth. The payload is left untouched when nothing matches.
func (r *Redactor) Redact(event *domain.DomainEvent) error {
	if len(r.fields) == 0 || len(event.Payload) == 0 {
		return nil
	}

	var payload any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		r.logger.Warn("failed to unmarshal payload for PII redaction", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to decode payload of event %s: %w", event.ID, err)
	}

	if !r.mask(payload) {
		return nil
	}

	redacted, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal payload after PII redaction", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to encode redacted payload of event %s: %w", event.ID, err)
	}
	event.Payload = redacted
	return nil
}

func (r *Redactor) mask(v any) bool {
	masked := false
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if _, ok := r.fields[key]; ok {
				if s, isString := child.(string); isString && s == "" {
					continue
				}
				node[key] = RedactedPlaceholder
				masked = true
				continue
			}
			if r.mask(child) {
				masked = true
			}
		}
	case []any:
		for _, child := range node {
			if r.mask(child) {
				masked = true
			}
		}
	}
	return masked
}
