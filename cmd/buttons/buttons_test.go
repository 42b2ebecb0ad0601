package buttons

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorses/colorcat/internal/pkg/filterexpr"
)

func buttonsPath(t *testing.T) string {
	t.Helper()
	t.Cleanup(filterexpr.FreeList)
	return filepath.Join(t.TempDir(), "dfilter_buttons.yaml")
}

func TestAddButton_SavesAndReloads(t *testing.T) {
	path := buttonsPath(t)
	require.NoError(t, loadButtons(path))

	f, err := addButton(path, "No ARP", "!arp", "hide address resolution", true)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Number)

	f, err = addButton(path, "Web", "tcp.port == 80", "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Number)

	require.NoError(t, loadButtons(path))
	require.Equal(t, 2, filterexpr.Default().Len())

	var out bytes.Buffer
	printButtons(&out)
	text := out.String()
	assert.Contains(t, text, "No ARP")
	assert.Contains(t, text, "# hide address resolution")
	assert.Regexp(t, `2 !\s+Web\s+tcp\.port == 80`, text)
}

func TestAddButton_RejectsBadExpression(t *testing.T) {
	path := buttonsPath(t)
	require.NoError(t, loadButtons(path))

	_, err := addButton(path, "Broken", "tcp.port ==", "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `filter button "Broken"`)
	assert.Equal(t, 0, filterexpr.Default().Len())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = addButton(path, "", "tcp", "", true)
	assert.Error(t, err)
}

func TestLoadButtons_SkipsInvalidEntries(t *testing.T) {
	path := buttonsPath(t)
	content := `buttons:
  - label: Good
    expression: udp
  - label: ""
    expression: tcp
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, loadButtons(path))
	assert.Equal(t, 1, filterexpr.Default().Len())
}

func TestLoadButtons_BadYAML(t *testing.T) {
	path := buttonsPath(t)
	require.NoError(t, os.WriteFile(path, []byte("buttons: [unclosed"), 0o600))

	assert.Error(t, loadButtons(path))
}

func TestPrintButtons_Empty(t *testing.T) {
	path := buttonsPath(t)
	require.NoError(t, loadButtons(path))

	var out bytes.Buffer
	printButtons(&out)
	assert.Contains(t, out.String(), "No filter buttons defined.")
}
