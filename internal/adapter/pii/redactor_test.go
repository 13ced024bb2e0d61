package pii

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor(DefaultFields, logger)

	tests := []struct {
		name      string
		payload   string
		expected  string
		unchanged bool
		expectErr bool
	}{
		{
			name:     "Redact order contact fields",
			payload:  `{"id":"o-1","customerName":"Ann","customerPhone":"+1555","customerEmail":"ann@example.com"}`,
			expected: `{"id":"o-1","customerName":"Ann","customerPhone":"[REDACTED]","customerEmail":"[REDACTED]"}`,
		},
		{
			name:     "Redact nested fields",
			payload:  `{"orders":[{"customerPhone":"+1555"},{"note":"x"}]}`,
			expected: `{"orders":[{"customerPhone":"[REDACTED]"},{"note":"x"}]}`,
		},
		{
			name:      "Empty values are left alone",
			payload:   `{"customerPhone":"","total":12.5}`,
			unchanged: true,
		},
		{
			name:      "No fields to redact",
			payload:   `{"id":"item-1","price":9.5}`,
			unchanged: true,
		},
		{
			name:      "Invalid JSON payload",
			payload:   `{"customerPhone":"+1555"`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &domain.DomainEvent{ID: "evt-1", Payload: json.RawMessage(tt.payload)}

			err := redactor.Redact(event)

			if tt.expectErr {
				assert.Error(t, err)
				assert.Equal(t, tt.payload, string(event.Payload))
				return
			}
			require.NoError(t, err)
			if tt.unchanged {
				assert.Equal(t, tt.payload, string(event.Payload))
				return
			}
			assert.JSONEq(t, tt.expected, string(event.Payload))
		})
	}
}

func TestRedactor_NoFieldsConfigured(t *testing.T) {
	redactor := NewRedactor([]string{" ", ""}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	event := &domain.DomainEvent{Payload: json.RawMessage(`{"customerPhone":"+1555"}`)}

	require.NoError(t, redactor.Redact(event))
	assert.Equal(t, `{"customerPhone":"+1555"}`, string(event.Payload))
}
