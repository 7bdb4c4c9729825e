package contracts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	r := NewResolver(nil)

	assert.Equal(t, "CON.F.US.MES.M25", r.Resolve("MES1!"))
	assert.Equal(t, "CON.F.US.CLE.M25", r.Resolve("CL1!"))
	assert.Equal(t, "CON.F.US.ES.U25", r.Resolve("CON.F.US.ES.U25"))
	assert.Equal(t, "", r.Resolve(""))
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("MES1!: CON.F.US.MES.U25\nFOO: CON.F.US.FOO.Z25\n"), 0o644))

	r, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "CON.F.US.MES.U25", r.Resolve("MES1!"))
	assert.Equal(t, "CON.F.US.FOO.Z25", r.Resolve("FOO"))
	assert.Equal(t, "CON.F.US.MNQ.M25", r.Resolve("MNQ1!"))
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	r, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewResolver(nil).Len(), r.Len())
}

func TestLoadFileBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- just\n- a list\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}
