package errors_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/agentstation/syncmerge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("field", "", "cannot be empty")
		assert.Equal(t, "validation failed for field field: cannot be empty", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "bad value"}
		assert.Equal(t, "validation failed: bad value", err.Error())
	})
}

func TestConfigError(t *testing.T) {
	t.Run("with key", func(t *testing.T) {
		err := pkgerrors.NewConfigError("validator", "constraints.summary.type", "unknown type \"strng\"", nil)
		assert.Equal(t, `configuration error in validator: constraints.summary.type: unknown type "strng"`, err.Error())
		assert.True(t, pkgerrors.IsConfigError(err))
	})

	t.Run("wraps cause", func(t *testing.T) {
		cause := errors.New("missing bracket")
		err := pkgerrors.WrapConfig("matcher", "blacklist", cause)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)
	})

	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapConfig("x", "y", nil))
	})
}

func TestMergeError(t *testing.T) {
	cause := pkgerrors.ErrCyclicValue
	err := pkgerrors.NewMergeError("labels", "UNION", cause)
	assert.Contains(t, err.Error(), "labels")
	assert.Contains(t, err.Error(), "UNION")
	assert.ErrorIs(t, err, pkgerrors.ErrCyclicValue)

	bare := pkgerrors.NewMergeError("labels", "", cause)
	assert.NotContains(t, bare.Error(), "using")
}

func TestTimeoutError(t *testing.T) {
	err := pkgerrors.NewTimeoutError("analyze", "10ms", "budget exhausted")
	assert.Equal(t, "operation analyze timed out after 10ms: budget exhausted", err.Error())
	assert.True(t, pkgerrors.IsTimeout(err))

	noDuration := pkgerrors.NewTimeoutError("analyze", "", "budget exhausted")
	assert.Equal(t, "operation analyze timed out: budget exhausted", noDuration.Error())
}

func TestParseAndIOErrors(t *testing.T) {
	cause := errors.New("unexpected token")

	parse := pkgerrors.WrapParse("yaml", "local.yaml", cause)
	assert.Contains(t, parse.Error(), "local.yaml")
	assert.ErrorIs(t, parse, cause)

	io := pkgerrors.WrapIO("read", "/tmp/x", cause)
	assert.Equal(t, "IO error during read of /tmp/x: unexpected token", io.Error())
	assert.ErrorIs(t, io, cause)

	assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
	assert.NoError(t, pkgerrors.WrapParse("yaml", "x", nil))
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		pkgerrors.ErrInvalidInput,
		pkgerrors.ErrInvalidConfig,
		pkgerrors.ErrCyclicValue,
		pkgerrors.ErrUnknownAlgorithm,
		pkgerrors.ErrUnknownStrategy,
		pkgerrors.ErrTimeout,
		pkgerrors.ErrCanceled,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
	assert.True(t, pkgerrors.IsCanceled(pkgerrors.ErrCanceled))
}
