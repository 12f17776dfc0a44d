package runner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTestsShapes(t *testing.T) {
	t.Run("Single mapping", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "single.yaml", `
name: solo_case
expected_behavior:
  contains_text: hello
`)
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "solo_case", cases[0].Name)
		assert.Equal(t, "hello", cases[0].ExpectedBehavior["contains_text"])
	})

	t.Run("Top-level list", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "list.yaml", `
- name: first
  expected_behavior:
    max_tokens: 100
- name: second
  expected_behavior:
    no_pii: true
`)
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.Equal(t, "first", cases[0].Name)
		assert.Equal(t, "second", cases[1].Name)
	})

	t.Run("Mapping with tests key", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "suite.yaml", `
tests:
  - name: wrapped
    input_messages:
      - role: user
        content: "hi"
    expected_behavior:
      valid_json: true
`)
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "wrapped", cases[0].Name)
		require.Len(t, cases[0].InputMessages, 1)
		assert.Equal(t, "user", cases[0].InputMessages[0].Role)
	})
}

func TestLoadTestsEdgeCases(t *testing.T) {
	t.Run("Empty file yields zero cases", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "empty.yaml", "")
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		assert.Empty(t, cases)
	})

	t.Run("Non-YAML files are ignored", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "notes.txt", "name: not_a_test")
		writeTestFile(t, dir, "case.yml", "name: only_case")
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "only_case", cases[0].Name)
	})

	t.Run("Files load in sorted order and subdirectories recurse", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "a_nested")
		require.NoError(t, os.MkdirAll(sub, 0755))
		writeTestFile(t, dir, "z_last.yaml", "name: from_last")
		writeTestFile(t, sub, "inner.yaml", "name: from_nested")
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.Equal(t, "from_nested", cases[0].Name)
		assert.Equal(t, "from_last", cases[1].Name)
	})

	t.Run("Missing directory is a distinct error", func(t *testing.T) {
		_, err := LoadTests(filepath.Join(t.TempDir(), "no-such-dir"))
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("Malformed YAML names the file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTestFile(t, dir, "broken.yaml", "name: [unclosed")
		_, err := LoadTests(dir)
		require.Error(t, err)

		var malformed *MalformedSourceError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, path, malformed.File)
	})

	t.Run("Scalar top level is malformed", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "scalar.yaml", "just a string")
		_, err := LoadTests(dir)
		var malformed *MalformedSourceError
		require.True(t, errors.As(err, &malformed))
		assert.Contains(t, malformed.Error(), "unexpected top-level YAML structure")
	})

	t.Run("Unknown expectation key fails the load", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "bad_key.yaml", `
name: bad
expected_behavior:
  never_lies: true
`)
		_, err := LoadTests(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "never_lies")
	})

	t.Run("Case without a name fails the load", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "nameless.yaml", "description: no name here")
		_, err := LoadTests(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("Non-mapping list entries are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "mixed.yaml", `
- name: real_case
- "stray string"
- 42
`)
		cases, err := LoadTests(dir)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "real_case", cases[0].Name)
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("Direct file load", func(t *testing.T) {
		dir := t.TempDir()
		path := writeTestFile(t, dir, "one.yaml", "name: direct")
		cases, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "direct", cases[0].Name)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "ghost.yaml"))
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})
}
