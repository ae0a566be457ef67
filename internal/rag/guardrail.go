package rag

import (
	"errors"
	"strings"
)

var (
	// ErrGuardrail rejects questions describing an emergency.
	ErrGuardrail = errors.New("emergency question")
	// ErrInvalidQuery rejects malformed queries.
	ErrInvalidQuery = errors.New("invalid query")
)

// EmergencyMessage is shown instead of an answer when the guardrail trips.
const EmergencyMessage = "This service can't provide emergency advice. Call your local emergency number."

// emergencyPhrases are matched case-insensitively as substrings; "suicid"
// covers suicide and suicidal.
var emergencyPhrases = []string{"chest pain", "shortness of breath", "suicid", "overdose"}

// CheckGuardrail returns ErrGuardrail when the question mentions an emergency.
func CheckGuardrail(question string) error {
	q := strings.ToLower(question)
	for _, phrase := range emergencyPhrases {
		if strings.Contains(q, phrase) {
			return ErrGuardrail
		}
	}
	return nil
}
