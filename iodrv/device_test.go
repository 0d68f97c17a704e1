package iodrv_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyb70289/cmn-analyzer/iodrv"
)

func withDevDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := iodrv.DevDir
	iodrv.DevDir = dir
	t.Cleanup(func() { iodrv.DevDir = orig })
	return dir
}

func TestOpenMissingDevice(t *testing.T) {
	withDevDir(t)

	_, err := iodrv.Open(0, true)

	var devErr *iodrv.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, 0, devErr.MeshID)
	assert.Contains(t, devErr.Reason, "not found")
}

func TestOpenDuplicatedDevice(t *testing.T) {
	dir := withDevDir(t)
	for _, name := range []string{
		"armcmn:CMN0:140000000:1000",
		"armcmn:CMN0:180000000:1000",
	} {
		require.NoError(t,
			os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	_, err := iodrv.Open(0, true)

	var devErr *iodrv.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Contains(t, devErr.Reason, "duplicated")
}

func TestOpenBadSize(t *testing.T) {
	dir := withDevDir(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "armcmn:CMN0:140000000:zzz"), nil, 0644))

	_, err := iodrv.Open(0, true)

	var devErr *iodrv.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Contains(t, devErr.Reason, "bad size")
}

func TestOpenMapsRegularFile(t *testing.T) {
	dir := withDevDir(t)
	// a sparse regular file stands in for the device node
	path := filepath.Join(dir, "armcmn:CMN2:140000000:1000")
	require.NoError(t, os.WriteFile(path, make([]byte, 0x1000), 0644))

	dev, err := iodrv.Open(2, false)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, path, dev.Path())
	assert.Equal(t, uint64(0x1000), dev.Size())

	dev.Write(0x100, 0xCAFE)
	assert.Equal(t, uint64(0xCAFE), dev.Read(0x100))

	assert.Panics(t, func() { dev.Read(0x1000) })

	require.NoError(t, dev.Close())
}
