package memory

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorStore_DropsOrphanVectors(t *testing.T) {
	dir := t.TempDir()
	vs := newVectorStore(dir, 2, nopLogger())
	require.NoError(t, vs.load())

	require.NoError(t, vs.append([]float32{1, 2}, Entry{SessionID: "s1", Source: "f1"}))
	require.NoError(t, vs.append([]float32{3, 4}, Entry{SessionID: "s2", Source: "f2"}))

	// Simulate a crash between the vector write and the metadata write:
	// the vector file gains a row the sidecar never records.
	require.NoError(t, vs.writeVectors(append(vs.vectors, 5, 6)))

	reloaded := newVectorStore(dir, 2, nopLogger())
	require.NoError(t, reloaded.load())
	assert.Equal(t, 2, reloaded.size())
	assert.Equal(t, []float32{3, 4}, reloaded.vectorAt(1))
}

func TestVectorStore_ResetsWhenMetadataOutrunsVectors(t *testing.T) {
	dir := t.TempDir()
	vs := newVectorStore(dir, 2, nopLogger())
	require.NoError(t, vs.load())
	require.NoError(t, vs.append([]float32{1, 2}, Entry{SessionID: "s1", Source: "f1"}))

	// Metadata claiming a vector that was never written is the
	// impossible state under vectors-first ordering: wipe everything.
	require.NoError(t, vs.writeMetadata(append(vs.entries, Entry{SessionID: "ghost"})))

	reloaded := newVectorStore(dir, 2, nopLogger())
	require.NoError(t, reloaded.load())
	assert.Equal(t, 0, reloaded.size())

	_, err := os.Stat(reloaded.vectorPath())
	assert.True(t, os.IsNotExist(err))
}

func TestVectorStore_DimensionMismatchResets(t *testing.T) {
	dir := t.TempDir()
	vs := newVectorStore(dir, 2, nopLogger())
	require.NoError(t, vs.load())
	require.NoError(t, vs.append([]float32{1, 2}, Entry{SessionID: "s1", Source: "f1"}))

	reloaded := newVectorStore(dir, 3, nopLogger())
	require.NoError(t, reloaded.load())
	assert.Equal(t, 0, reloaded.size())
}
