package recipients

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "vtreporter/pkg/logx"
)

func tempStore(t *testing.T, defaults List) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emails.json")
	s, err := Open(path, defaults, logx.Nop())
	require.NoError(t, err)
	return s
}

func TestOpenUsesDefaultsWhenFileMissing(t *testing.T) {
	s := tempStore(t, List{Recipients: []string{"a@example.com"}})
	got := s.Get()
	assert.Equal(t, []string{"a@example.com"}, got.Recipients)
	assert.Empty(t, got.BCC)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"recipients":["file@example.com"],"bcc":[]}`), 0o644))

	s, err := Open(path, List{Recipients: []string{"env@example.com"}}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"file@example.com"}, s.Get().Recipients)
}

func TestAddIsIdempotent(t *testing.T) {
	s := tempStore(t, List{Recipients: []string{"a@example.com"}})

	got, err := s.Add([]string{"b@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.Recipients)

	again, err := s.Add([]string{"b@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, got.Recipients, again.Recipients, "re-adding an existing address changes nothing")
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	s := tempStore(t, List{Recipients: []string{"a@example.com"}})

	got, err := s.Remove([]string{"missing@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, got.Recipients)
}

func TestMutationRequiresAField(t *testing.T) {
	s := tempStore(t, List{})

	_, err := s.Add(nil, nil)
	assert.ErrorIs(t, err, ErrNoFields)
	_, err = s.Remove(nil, nil)
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestMutationRewritesFileWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.json")
	s, err := Open(path, List{}, logx.Nop())
	require.NoError(t, err)

	_, err = s.Add([]string{"a@example.com"}, []string{"b@example.com"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk List
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, []string{"a@example.com"}, onDisk.Recipients)
	assert.Equal(t, []string{"b@example.com"}, onDisk.BCC)
}

func TestReloadNormalizesOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.json")
	s, err := Open(path, List{}, logx.Nop())
	require.NoError(t, err)

	// A hand-edited file may drop a key entirely.
	require.NoError(t, os.WriteFile(path, []byte(`{"recipients":["edited@example.com"]}`), 0o644))
	s.reload()

	got := s.Get()
	assert.Equal(t, []string{"edited@example.com"}, got.Recipients)
	require.NotNil(t, got.BCC, "omitted list must stay a JSON array, not null")
	assert.Empty(t, got.BCC)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bcc":[]`)
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.json")
	s, err := Open(path, List{Recipients: []string{"a@example.com"}}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"recipients":["edited@example.com"],"bcc":[]}`), 0o644))
	s.reload()

	assert.Equal(t, []string{"edited@example.com"}, s.Get().Recipients)
}
