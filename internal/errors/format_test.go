package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_BasicError(t *testing.T) {
	err := New(ErrCodeTextNotFound, "text 'vergil.aeneid' not found", nil)

	result := FormatForCLI(err)

	assert.Contains(t, result, "text 'vergil.aeneid' not found")
	assert.Contains(t, result, "ERR_201_TEXT_NOT_FOUND")
}

func TestFormatForCLI_WithSuggestion(t *testing.T) {
	err := New(ErrCodeTextAlreadyIngested, "text already ingested", nil).
		WithSuggestion("delete the text before reingesting")

	result := FormatForCLI(err)

	assert.Contains(t, result, "Hint:")
	assert.Contains(t, result, "delete the text before reingesting")
}

func TestFormatForCLI_StandardError(t *testing.T) {
	err := errors.New("something went wrong")

	result := FormatForCLI(err)

	assert.Contains(t, result, "something went wrong")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatForCLI_ShortFormat(t *testing.T) {
	err := New(ErrCodeTextNotFound, "text not found", nil)

	result := FormatForCLI(err)

	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 5, "should be concise")
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := New(ErrCodeTextNotFound, "text not found", nil).
		WithDetail("text_id", "vergil.aeneid").
		WithSuggestion("check the text identifier")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeTextNotFound, result["code"])
	assert.Equal(t, "text not found", result["message"])
	assert.Equal(t, string(CategoryNotFound), result["category"])
	assert.Equal(t, string(SeverityError), result["severity"])
	assert.Equal(t, "check the text identifier", result["suggestion"])

	details, ok := result["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vergil.aeneid", details["text_id"])
}

func TestFormatJSON_StandardError(t *testing.T) {
	err := errors.New("generic error")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeInternal, result["code"])
	assert.Equal(t, "generic error", result["message"])
}

func TestFormatJSON_NilError(t *testing.T) {
	data, err := FormatJSON(nil)

	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatJSON_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeInternal, "operation failed", cause)

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "underlying error", result["cause"])
}

func TestFormatForLog_IncludesCodeAndCategory(t *testing.T) {
	err := New(ErrCodeSearchNotFound, "search missing", nil).WithDetail("search_id", "abc-123")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeSearchNotFound, fields["error_code"])
	assert.Equal(t, string(CategoryNotFound), fields["category"])
	assert.Equal(t, "abc-123", fields["detail_search_id"])
}

func TestFormatForLog_NilError(t *testing.T) {
	assert.Nil(t, FormatForLog(nil))
}

func TestFormatForLog_StandardError(t *testing.T) {
	fields := FormatForLog(errors.New("plain"))

	assert.Equal(t, "plain", fields["error"])
}
