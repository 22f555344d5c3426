package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOkAndFail(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, 42, ok.Result)

	fail := Fail("boom")
	assert.False(t, fail.IsSuccess())
	assert.Equal(t, "boom", fail.Err)

	failf := Failf("boom %d", 7)
	assert.Equal(t, "boom 7", failf.Err)
}

func TestNormalizeNonMapValue(t *testing.T) {
	env := Normalize(42)
	assert.True(t, env.IsSuccess())
	assert.Equal(t, 42, env.Result)
}

func TestNormalizeMapWithoutStatusIsWrapped(t *testing.T) {
	v := map[string]any{"symbol": "AAPL", "price": 207.4}
	env := Normalize(v)
	assert.True(t, env.IsSuccess())
	assert.Equal(t, v, env.Result)
}

func TestNormalizeEnvelopeShapedMap(t *testing.T) {
	v := map[string]any{"status": "error", "error": "not found"}
	env := Normalize(v)
	assert.False(t, env.IsSuccess())
	assert.Equal(t, "not found", env.Err)
}

func TestNormalizeEnvelopeShapedSuccessMap(t *testing.T) {
	v := map[string]any{"status": "success", "result": 99}
	env := Normalize(v)
	assert.True(t, env.IsSuccess())
	assert.Equal(t, 99, env.Result)
}

func TestNormalizeUnrecognizedStatusIsOpaqueSuccess(t *testing.T) {
	v := map[string]any{"status": "weird", "result": 1}
	env := Normalize(v)
	assert.True(t, env.IsSuccess())
	assert.Equal(t, v, env.Result)
}

func TestNormalizeNonStringErrorIsStringified(t *testing.T) {
	v := map[string]any{"status": "error", "error": 404}
	env := Normalize(v)
	assert.Equal(t, "404", env.Err)
}
