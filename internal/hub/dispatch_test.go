// ABOUTME: Tests for remote trigger dispatch
// ABOUTME: Validates fire-and-forget enqueue and not-connected handling

package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireTrigger(t *testing.T) {
	h, _ := setupTestHub(t)
	link := &fakeLink{}
	h.registry.Put("dev-1", link)

	require.NoError(t, h.FireTrigger("dev-1", "trg-1"))

	frames := link.sent()
	require.Len(t, frames, 1)
	frame := frameAsMap(t, frames[0])
	assert.Equal(t, "fire_trigger", frame["type"])
	assert.Equal(t, "trg-1", frame["triggerId"])
}

func TestFireTrigger_NotConnected(t *testing.T) {
	h, _ := setupTestHub(t)

	err := h.FireTrigger("dev-1", "trg-1")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestFireTrigger_EnqueueFailure(t *testing.T) {
	h, _ := setupTestHub(t)
	link := &fakeLink{reject: true}
	h.registry.Put("dev-1", link)

	err := h.FireTrigger("dev-1", "trg-1")
	assert.ErrorIs(t, err, ErrNotConnected)
}
