package peer

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates_Override(t *testing.T) {
	got := Candidates("ws://10.0.0.5:8765", net.ParseIP("192.168.1.50"), 8765)
	assert.Equal(t, []string{"ws://10.0.0.5:8765"}, got)
}

func TestCandidates_LocalSubnet(t *testing.T) {
	got := Candidates("", net.ParseIP("192.168.1.100"), 8765)

	want := []string{
		"ws://localhost:8765",
		"ws://127.0.0.1:8765",
		"ws://192.168.1.1:8765",
		"ws://192.168.1.5:8765",
		"ws://192.168.1.101:8765",
		"ws://192.168.1.102:8765",
		"ws://192.168.1.195:8765",
		"ws://192.168.1.200:8765",
		"ws://192.168.1.250:8765",
	}
	assert.Equal(t, want, got, "own address skipped and known hosts de-duplicated")
}

func TestCandidates_FallbackNetworks(t *testing.T) {
	got := Candidates("", nil, 0)

	assert.Equal(t, "ws://localhost:8765", got[0])
	assert.Equal(t, "ws://127.0.0.1:8765", got[1])
	assert.Equal(t, "ws://192.168.1.1:8765", got[2])
	assert.Contains(t, got, "ws://10.0.0.195:8765")
	assert.Contains(t, got, "ws://172.16.0.5:8765")
	// 2 loopback + 4 networks * 4 offsets; known hosts already present.
	assert.Len(t, got, 18)

	seen := map[string]bool{}
	for _, u := range got {
		assert.False(t, seen[u], "duplicate %s", u)
		seen[u] = true
	}
}

func TestCandidates_IPv6Ignored(t *testing.T) {
	got := Candidates("", net.ParseIP("fe80::1"), 9000)
	assert.Contains(t, got, "ws://192.168.0.100:9000")
}
