package util_test

import (
	"testing"

	"github.com/sshwatch/sshwatch/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, util.Clamp(5, 0, 10))
	assert.Equal(t, 0, util.Clamp(-5, 0, 10))
	assert.Equal(t, 10, util.Clamp(50, 0, 10))
}

func TestHumanInt(t *testing.T) {
	assert.Equal(t, "42", util.HumanInt(42))
	assert.Equal(t, "1.2k", util.HumanInt(1234))
	assert.Equal(t, "-1.2k", util.HumanInt(-1234))
	assert.Equal(t, "3.4M", util.HumanInt(3_400_000))
}

func TestValidateFile(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/tmp/foo.log", []byte("hi"), 0644))

	assert.NoError(t, util.ValidateFile(afs, "/tmp/foo.log"))
	assert.ErrorIs(t, util.ValidateFile(afs, "/tmp/missing.log"), util.ErrFileDoesNotExist)
	assert.Error(t, util.ValidateFile(afs, ""))

	require.NoError(t, afs.MkdirAll("/tmp/adir", 0755))
	assert.ErrorIs(t, util.ValidateFile(afs, "/tmp/adir"), util.ErrPathIsDir)
}
