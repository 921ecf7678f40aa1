// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStart_SetsSchedulingAttributes(t *testing.T) {
	j := &Job{ID: 3, Walltime: 10}
	assert.False(t, j.Started())

	j.Start(5, []int{2, 3, 4})

	assert.True(t, j.Started())
	assert.Equal(t, []int{2, 3, 4}, j.Alloc)
	assert.Equal(t, 5.0, j.StartTime)
	assert.Equal(t, 15.0, j.FinishTime)
	assert.Equal(t, 2, j.FirstResource())
	assert.Equal(t, 4, j.LastResource())
}
