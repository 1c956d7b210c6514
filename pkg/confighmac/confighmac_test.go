package confighmac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_DeterministicPerMachine(t *testing.T) {
	k1, err := DeriveKey("machine-a")
	require.NoError(t, err)
	k2, err := DeriveKey("machine-a")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveKey("machine-b")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestCanonicalJSON_OrderIndependent(t *testing.T) {
	a := []PolicyEntry{{ID: "z", Action: "deny"}, {ID: "a", Action: "allow"}}
	b := []PolicyEntry{{ID: "a", Action: "allow"}, {ID: "z", Action: "deny"}}

	ca, err := CanonicalJSON(a)
	require.NoError(t, err)
	cb, err := CanonicalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestVerifier_AcceptsMatchingMAC(t *testing.T) {
	v, err := NewVerifier("machine-a")
	require.NoError(t, err)

	policies := []PolicyEntry{{ID: "p1", Action: "allow"}}
	key, err := DeriveKey("machine-a")
	require.NoError(t, err)
	mac, err := Compute(key, policies)
	require.NoError(t, err)

	assert.NoError(t, v.Verify(policies, mac))
}

func TestVerifier_RejectsTamperedMAC(t *testing.T) {
	v, err := NewVerifier("machine-a")
	require.NoError(t, err)

	policies := []PolicyEntry{{ID: "p1", Action: "allow"}}
	tampered := make([]byte, 32)

	err = v.Verify(policies, tampered)
	require.Error(t, err)
}
