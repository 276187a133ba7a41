package tsfleet

import (
	"testing"
	"time"

	"github.com/cuemby/catalogd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatThenLive(t *testing.T) {
	r := New()
	r.Heartbeat(types.TSDescriptor{ServerID: "ts-1", Address: "10.0.0.1:7300"})

	live := r.Live()
	require.Len(t, live, 1)
	assert.Equal(t, "ts-1", live[0].ServerID)
}

func TestLiveExcludesStaleServers(t *testing.T) {
	r := New()
	r.mu.Lock()
	r.servers["ts-old"] = entry{
		desc:     types.TSDescriptor{ServerID: "ts-old"},
		lastSeen: time.Now().Add(-time.Hour),
	}
	r.mu.Unlock()

	assert.Empty(t, r.Live())
}

func TestHeartbeatOverwritesPriorDescriptor(t *testing.T) {
	r := New()
	r.Heartbeat(types.TSDescriptor{ServerID: "ts-1", NumLiveReplicas: 1})
	r.Heartbeat(types.TSDescriptor{ServerID: "ts-1", NumLiveReplicas: 5})

	live := r.Live()
	require.Len(t, live, 1)
	assert.Equal(t, 5, live[0].NumLiveReplicas)
}
