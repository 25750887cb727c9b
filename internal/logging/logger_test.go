package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFields(t *testing.T) {
	fields := toFields([]interface{}{"job", "abc", "regions", 3, "dangling"})

	assert.Equal(t, "abc", fields["job"])
	assert.Equal(t, 3, fields["regions"])
	assert.Equal(t, "(missing)", fields["dangling"])
}

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { _ = Configure("info", "text") })

	require.NoError(t, Configure("debug", "json"))
	assert.Equal(t, "debug", base.GetLevel().String())

	assert.Error(t, Configure("loud", "text"))
	assert.Error(t, Configure("info", "xml"))
}

func TestWithKeepsPrefix(t *testing.T) {
	l := NewLogger("Processor").With("job", "1")
	assert.Equal(t, "Processor", l.prefix)
	assert.Equal(t, "1", l.entry.Data["job"])
	assert.Equal(t, "Processor", l.entry.Data["component"])
}
