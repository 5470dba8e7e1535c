package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrunc(t *testing.T) {
	assert.Equal(t, "abc", Trunc("abc", 3))
	assert.Equal(t, "ab", Trunc("abc", 2))
	assert.Equal(t, "äö", Trunc("äöü", 2))
	assert.Equal(t, "a", Trunc(" a b", 2))
	assert.Equal(t, "", Trunc("abc", 0))
}

func TestIni(t *testing.T) {

	var filename = filepath.Join(t.TempDir(), "dmsdoc.ini")
	require.NoError(t, os.WriteFile(filename, []byte("listen = 0.0.0.0:9000\nredis = redis://localhost:6379/0\n"), 0600))

	values, err := Ini(filename)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", values["listen"])
	assert.Equal(t, "redis://localhost:6379/0", values["redis"])

	_, err = Ini(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}
