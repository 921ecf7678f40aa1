// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidDescriptor(t *testing.T) {
	path := writeTemp(t, `{
		"nb_res": 4,
		"jobs": [
			{"id": 0, "subtime": 1, "walltime": 5, "res": 1, "profile": "p0"},
			{"id": 1, "subtime": 2, "walltime": 10, "res": 2, "profile": "p1"}
		]
	}`)

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, table.NbRes)

	res, wt, ok := table.Job(1)
	require.True(t, ok)
	assert.Equal(t, 2, res)
	assert.Equal(t, 10.0, wt)

	_, _, ok = table.Job(99)
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_NotJSON(t *testing.T) {
	path := writeTemp(t, "not json at all")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeTemp(t, `{"jobs": []}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_WrongFieldType(t *testing.T) {
	path := writeTemp(t, `{"nb_res": "four", "jobs": []}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_JobMissingRequiredField(t *testing.T) {
	path := writeTemp(t, `{"nb_res": 1, "jobs": [{"id": 0, "subtime": 1, "walltime": 5}]}`)
	_, err := Load(path)
	assert.Error(t, err)
}
