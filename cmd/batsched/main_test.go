// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandWired(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "batsched", rootCmd.Use)

	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "generate-docs" {
			found = true
		}
	}
	assert.True(t, found, "generate-docs subcommand not registered")
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	socketPath = "/tmp/custom_socket"
	schedulerArg = "easy_backfill"
	workloadPath = "/tmp/workload.json"
	strictValid = true
	debugAddr = ":9999"
	defer func() {
		socketPath, schedulerArg, workloadPath, debugAddr = "", "", "", ""
		strictValid = false
	}()

	cfg := loadConfig()
	assert.Equal(t, "/tmp/custom_socket", cfg.SocketPath)
	assert.Equal(t, "easy_backfill", cfg.Scheduler)
	assert.Equal(t, "/tmp/workload.json", cfg.WorkloadPath)
	assert.True(t, cfg.StrictValidate)
	assert.Equal(t, ":9999", cfg.DebugAddr)
}

func TestRunServe_RejectsMissingWorkload(t *testing.T) {
	socketPath = "/tmp/unused_socket_for_test"
	workloadPath = ""
	defer func() { socketPath, workloadPath = "", "" }()

	err := runServe(rootCmd, nil)
	assert.Error(t, err)
}
