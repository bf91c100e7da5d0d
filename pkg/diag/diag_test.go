package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBagCapsAtCapacity(t *testing.T) {
	b := NewBag()
	for i := 0; i < Capacity+5; i++ {
		b.Errorf("k.json", i+1, 1, "add", "bad thing %d", i)
	}
	require.Equal(t, Capacity+1, b.Len(), "expected Capacity diagnostics plus one overflow notice")
	require.True(t, b.HasErrors())
}

func TestBagErrJoinsFormattedMessages(t *testing.T) {
	b := NewBag()
	b.Errorf("k.json", 3, 7, "mul", "type mismatch")
	err := b.Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), "k.json:3:7: error: type mismatch")
}

func TestBagErrNilWhenNoErrors(t *testing.T) {
	b := NewBag()
	b.Add(Diagnostic{Kind: Warning, Message: "just fyi"})
	require.NoError(t, b.Err())
}
