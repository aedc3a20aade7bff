package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	dp.RegisterProbe("self", func() any {
		dp.UnregisterProbe("answer")
		return "ok"
	})

	state := dp.DumpState()
	assert.Len(t, state, 2)
	assert.Equal(t, "ok", state["self"])

	state = dp.DumpState()
	assert.NotContains(t, state, "answer")
}

func TestPlatformProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	state := dp.DumpState()
	assert.Contains(t, state, "platform.cpus")
	assert.Contains(t, state, "platform.goroutines")
	assert.Contains(t, state, "platform.affinity")
}
