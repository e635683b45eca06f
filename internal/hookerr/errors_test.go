package hookerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorClassification(t *testing.T) {
	err := Configf("/etc/app/app.yaml", "unresolved variable %s", "DB_HOST")
	assert.True(t, IsConfig(err))
	assert.Contains(t, err.Error(), "/etc/app/app.yaml")
	assert.Contains(t, err.Error(), "DB_HOST")

	wrapped := fmt.Errorf("loading settings: %w", err)
	assert.True(t, IsConfig(wrapped), "classification survives wrapping")
	assert.False(t, IsConfig(errors.New("plain")))
}

func TestConfigErrorWithoutPath(t *testing.T) {
	err := NewConfigError("", errors.New("boom"))
	assert.Equal(t, "config: boom", err.Error())
}

func TestTimeoutErrorClassification(t *testing.T) {
	err := &TimeoutError{Stage: "classify", Budget: "100ms"}
	assert.True(t, IsTimeout(fmt.Errorf("stage: %w", error(err))))
	assert.Contains(t, err.Error(), "classify")
	assert.False(t, IsTimeout(errors.New("deadline exceeded")), "only the typed error classifies")
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("read-only filesystem")
	err := &PersistenceError{Op: "save", Path: "/var/lib/sessions/s1.json", Err: cause}
	assert.True(t, IsPersistence(err))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsConfig(err))
}
