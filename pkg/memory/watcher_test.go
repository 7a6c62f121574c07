package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_SeesChangesInExistingPartitions(t *testing.T) {
	root := t.TempDir()
	partition := filepath.Join(root, "2026", "08", "25")
	require.NoError(t, os.MkdirAll(partition, 0o755))

	dirty := make(chan struct{}, 1)
	fw, err := NewFileWatcher(nopLogger(), func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer fw.Stop()

	// The partition predates Watch; it must still be covered
	require.NoError(t, fw.Watch(root))
	require.NoError(t, os.WriteFile(
		filepath.Join(partition, "session-1-aaaaaa.json"), []byte("[]"), 0o644))

	select {
	case <-dirty:
	case <-time.After(3 * time.Second):
		t.Fatal("change inside a pre-existing partition was not observed")
	}
}
