package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseJSON_KeepsNumbers(t *testing.T) {
	var out map[string]any
	require.NoError(t, ParseJSON(`{"max_results": 5, "confidence": 0.9}`, &out))
	assert.Equal(t, json.Number("5"), out["max_results"])
	assert.Equal(t, json.Number("0.9"), out["confidence"])
}

func TestParseJSON_RejectsTrailingData(t *testing.T) {
	var out map[string]any
	assert.Error(t, ParseJSON(`{"a":1} {"b":2}`, &out))
	assert.Error(t, ParseJSON(`{"a":`, &out))
	assert.NoError(t, ParseJSON("{\"a\":1}\n  ", &out))
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"surrounding prose", `Here you go: {"a":{"b":2}} enjoy!`, `{"a":{"b":2}}`, true},
		{"no object", "sorry, no idea", "", false},
		{"reversed braces", "} oops {", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteJSONKeys(t *testing.T) {
	got := QuoteJSONKeys(`{found: false, items: [{name: "a"}]}`)
	assert.JSONEq(t, `{"found": false, "items": [{"name": "a"}]}`, got)

	// 已加引號的鍵不變
	assert.Equal(t, `{"a":1}`, QuoteJSONKeys(`{"a":1}`))
}

func TestJoinAndSplitList(t *testing.T) {
	assert.Equal(t, "beef, potato, carrot", JoinList([]string{" beef", "", "potato ", "carrot"}))
	assert.Equal(t, "", JoinList(nil))

	assert.Equal(t, []string{"beef", "potato"}, SplitList(" beef,, potato ,"))
	assert.Nil(t, SplitList("  "))
}

func TestRequestIDContext(t *testing.T) {
	assert.Empty(t, RequestIDFrom(context.Background()))
	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestIDFrom(ctx))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "sk-o...wxyz", MaskSecret("sk-or-v1-abcdefghijklmnopqrstuvwxyz"))
}

func TestCustomError_IsMatchesWrapped(t *testing.T) {
	cause := errors.New("upstream 503")
	err := fmt.Errorf("lookup: %w", ErrAIServiceError.Wrap(cause))

	assert.ErrorIs(t, err, ErrAIServiceError)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, "lookup: generative backend error: upstream 503", err.Error())
}

type kindError struct{}

func (kindError) Error() string           { return "missing recipe" }
func (kindError) ValidationFailure() bool { return true }

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(NewValidationError("bad input")))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", kindError{})))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestFilterFields(t *testing.T) {
	out := filterFields([]zap.Field{
		zap.String("openrouter_api_key", "sk-secret"),
		zap.String("redis_password", "p"),
		zap.String("dataset_dsn", "postgres://u:p@h/db"),
		zap.String("model", "m"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "model", out[0].Key)
}
