package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "sk-openai-test-0123456789"

func TestSecretString_FormatVerbsRedact(t *testing.T) {
	s := SecretString(testSecret)

	for _, verb := range []string{"%s", "%v", "%+v"} {
		result := fmt.Sprintf(verb, s)
		if strings.Contains(result, testSecret) {
			t.Errorf("fmt.Sprintf(%s) leaked the raw secret: %s", verb, result)
		}
		if result != redactedPlaceholder {
			t.Errorf("fmt.Sprintf(%s) = %q, want %q", verb, result, redactedPlaceholder)
		}
	}
}

func TestSecretString_MarshalJSON_InStruct(t *testing.T) {
	type aiSettings struct {
		APIKey SecretString `json:"api_key"`
		Model  string       `json:"model"`
	}

	data, err := json.Marshal(aiSettings{APIKey: SecretString(testSecret), Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}

	result := string(data)
	if strings.Contains(result, testSecret) {
		t.Errorf("json.Marshal leaked the raw secret: %s", result)
	}
	if !strings.Contains(result, redactedPlaceholder) {
		t.Errorf("json.Marshal did not contain the placeholder: %s", result)
	}
}

func TestSecretString_UnmaskAndIsSet(t *testing.T) {
	s := SecretString(testSecret)
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
	if !s.IsSet() {
		t.Error("IsSet() = false for a configured secret")
	}

	var empty SecretString
	if empty.IsSet() {
		t.Error("IsSet() = true for an empty secret")
	}
	if empty.String() != redactedPlaceholder {
		t.Errorf("String() on empty secret = %q, want placeholder", empty.String())
	}
}
