// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jontk/batsched/internal/policy"
	"github.com/jontk/batsched/internal/protocol"
	"github.com/jontk/batsched/internal/stats"
	"github.com/jontk/batsched/internal/transport"
	"github.com/jontk/batsched/internal/validate"
	"github.com/jontk/batsched/internal/workload"
	"github.com/jontk/batsched/pkg/config"
	apperrors "github.com/jontk/batsched/pkg/errors"
	"github.com/jontk/batsched/pkg/logging"
	"github.com/jontk/batsched/pkg/observer"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = ""
	Commit    = ""

	// Global flags
	socketPath   string
	schedulerArg string
	workloadPath string
	verbose      bool
	strictValid  bool
	debugAddr    string

	rootCmd = &cobra.Command{
		Use:     "batsched",
		Short:   "EASY-backfill scheduling sidecar for a discrete-event HPC simulator",
		Long:    `batsched connects to a Unix domain socket, exchanges the simulator's pipe-and-colon wire protocol, and schedules submitted jobs under the EASY-backfill discipline.`,
		Version: Version,
		RunE:    runServe,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)

	rootCmd.Flags().StringVar(&socketPath, "socket", "", "Unix domain socket to connect to (env: BATSCHED_SOCKET)")
	rootCmd.Flags().StringVar(&schedulerArg, "scheduler", "", "scheduling policy to run (env: BATSCHED_SCHEDULER)")
	rootCmd.Flags().StringVar(&workloadPath, "workload", "", "path to the workload descriptor (env: BATSCHED_WORKLOAD)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.Flags().BoolVar(&strictValid, "validate", false, "wrap the policy in continuous invariant checking")
	rootCmd.Flags().StringVar(&debugAddr, "debug-addr", "", "serve /healthz, /state and /stream on this address")

	rootCmd.AddCommand(docsCmd)
}

func loadConfig() *config.Config {
	cfg := config.NewDefault()
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if schedulerArg != "" {
		cfg.Scheduler = schedulerArg
	}
	if workloadPath != "" {
		cfg.WorkloadPath = workloadPath
	}
	if strictValid {
		cfg.StrictValidate = true
	}
	if debugAddr != "" {
		cfg.DebugAddr = debugAddr
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg := loadConfig()
	if valErr := cfg.Validate(); valErr != nil {
		return apperrors.Wrap(apperrors.CodeInvalidConfig, "invalid configuration", valErr)
	}
	if cfg.WorkloadPath == "" {
		return apperrors.New(apperrors.CodeInvalidConfig, "a workload descriptor is required (--workload or BATSCHED_WORKLOAD)")
	}
	if cfg.Scheduler != "easy_backfill" {
		return apperrors.New(apperrors.CodeInvalidConfig, fmt.Sprintf("unknown scheduler %q", cfg.Scheduler))
	}

	logCfg := logging.DefaultConfig()
	logCfg.Version = Version
	logCfg.Level = cfg.Verbosity
	if verbose {
		logCfg.Level = slog.LevelDebug
	}
	log := logging.NewLogger(logCfg)

	// A panicking policy/protocol invariant violation is the only way a
	// fatal scheduling error surfaces (see pkg/errors); nothing downstream
	// recovers it locally, so this is the single point of conversion to a
	// logged, non-zero exit.
	defer func() {
		if r := recover(); r != nil {
			if appErr, ok := r.(*apperrors.Error); ok {
				log.Error("fatal error", "code", appErr.Code, "category", appErr.Category, "message", appErr.Message)
				err = appErr
				return
			}
			panic(r)
		}
	}()

	table, loadErr := workload.Load(cfg.WorkloadPath)
	if loadErr != nil {
		return loadErr
	}

	framer, dialErr := transport.Dial(cfg.SocketPath)
	if dialErr != nil {
		return apperrors.Wrap(apperrors.CodeTransportFailure, fmt.Sprintf("connecting to %q", cfg.SocketPath), dialErr)
	}

	sess := protocol.New(framer, log)

	var pol policy.Policy = policy.NewEasyBackfill(table.NbRes, table, sess.Emitter())
	insp := pol.(policy.Inspectable)
	if cfg.StrictValidate {
		pol = validate.New(pol, insp)
	}
	sess.SetPolicy(pol)

	if cfg.DebugAddr != "" {
		feed := stats.NewFeed()
		sess.OnSnapshot(func() { feed.Publish(sess.CurrentTime(), insp.Snapshot()) })
		srv := observer.NewServer(feed, log)
		go func() {
			if serveErr := srv.ListenAndServe(cfg.DebugAddr); serveErr != nil {
				log.Error("observer server stopped", "error", serveErr)
			}
		}()
	}

	log.Info("batsched starting", "socket", cfg.SocketPath, "scheduler", cfg.Scheduler, "run_id", sess.RunID())
	return sess.Run()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
