package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := Default()
	p.ArmDelay = 77
	p.UseBattMon = true
	p.ChannelScale[3] = 2048

	blob := Encode(p)
	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	blob := Encode(Default())
	blob[len(blob)-1] ^= 0xFF // corrupt the checksum trailer

	_, err := Decode(blob)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestApplyLeavesCurrentUntouchedOnBadChecksum(t *testing.T) {
	ctx := context.Background()
	store := &MemStore{}
	m := NewManager(ctx, store)
	before := m.Current()

	bad := Encode(Default())
	bad[0] ^= 0x01 // corrupt a data byte so checksum no longer matches

	err := m.Apply(ctx, bad)
	require.Error(t, err)
	assert.Equal(t, before, m.Current())
}

func TestApplyCommitsOnGoodChecksum(t *testing.T) {
	ctx := context.Background()
	store := &MemStore{}
	m := NewManager(ctx, store)

	next := Default()
	next.MaxThrottle = 15999

	require.NoError(t, m.Apply(ctx, Encode(next)))
	assert.Equal(t, next, m.Current())

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	reloaded, err := Decode(persisted)
	require.NoError(t, err)
	assert.Equal(t, next, reloaded)
}

func TestLoadDefaultsResetsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := &MemStore{}
	m := NewManager(ctx, store)

	modified := Default()
	modified.MaxThrottle = 1
	require.NoError(t, m.Apply(ctx, Encode(modified)))

	require.NoError(t, m.LoadDefaults(ctx))
	assert.Equal(t, Default(), m.Current())
}
