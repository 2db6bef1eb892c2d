package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLocalFilesystem(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "stub.db")

	err := checkLocalFilesystemWith(dbPath, func(string) (string, error) { return "ext4", nil })
	require.NoError(t, err)

	err = checkLocalFilesystemWith(dbPath, func(string) (string, error) { return "nfs", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `network filesystem "nfs"`)
	assert.Contains(t, err.Error(), "stub.db_path")
}

func TestCheckLocalFilesystemInspectsNearestParent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	var inspected string
	err := checkLocalFilesystemWith(filepath.Join(root, "a", "b", "stub.db"), func(p string) (string, error) {
		inspected = p
		return "ext4", nil
	})
	require.NoError(t, err)
	assert.Equal(t, root, inspected)
}

func TestCheckLocalFilesystemDetectorErrors(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "stub.db")

	assert.NoError(t, checkLocalFilesystemWith(dbPath, func(string) (string, error) {
		return "", errDetectUnsupported
	}))
	assert.Error(t, checkLocalFilesystemWith(dbPath, func(string) (string, error) {
		return "", errors.New("statfs failed")
	}))
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"nfs":    true,
		"SMBFS":  true,
		" cifs ": true,
		"ext4":   false,
		"0x6969": false,
	}
	for fs, want := range cases {
		assert.Equal(t, want, isNetworkFilesystem(fs), fs)
	}
}
