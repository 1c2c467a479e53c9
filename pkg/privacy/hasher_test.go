package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaltedSHA256_Stable(t *testing.T) {
	h := NewSaltedSHA256("salt")

	a := h.Hash("eip155:1:0xabc")
	b := h.Hash("eip155:1:0xabc")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "0xabc")
}

func TestSaltedSHA256_SaltChangesOutput(t *testing.T) {
	a := NewSaltedSHA256("salt-a").Hash("eip155:1:0xabc")
	b := NewSaltedSHA256("salt-b").Hash("eip155:1:0xabc")

	assert.NotEqual(t, a, b)
}

func TestSaltedSHA256_DistinctAccounts(t *testing.T) {
	h := NewSaltedSHA256("salt")

	assert.NotEqual(t, h.Hash("eip155:1:0xabc"), h.Hash("eip155:1:0xdef"))
}
