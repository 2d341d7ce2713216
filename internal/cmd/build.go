package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forrestthewoods/anubis/internal/cmdutil"
	"github.com/forrestthewoods/anubis/internal/job"
	"github.com/forrestthewoods/anubis/internal/output"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/rules"
	"github.com/forrestthewoods/anubis/internal/target"
)

var (
	buildModeFlag      string
	buildTargetsFlag   []string
	buildToolchainFlag string
	buildWorkersFlag   int
	buildLogLevelFlag  string
)

// NewBuildCmd creates the "build" subcommand.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one or more targets",
		RunE:  runBuild,
	}

	cmd.Flags().StringVarP(&buildModeFlag, "mode", "m", "", "Mode target, e.g. //mode:linux_dev (required)")
	cmd.Flags().StringArrayVarP(&buildTargetsFlag, "targets", "t", nil, "Target to build, e.g. //app:main (repeatable, required)")
	cmd.Flags().StringVar(&buildToolchainFlag, "toolchain", "//toolchains:default", "Toolchain target")
	cmd.Flags().IntVarP(&buildWorkersFlag, "workers", "w", 0, "Worker count (default: logical CPU count)")
	cmd.Flags().StringVarP(&buildLogLevelFlag, "log-level", "l", "info", "Log level: error|warn|info|debug|trace")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := output.Setup(output.Level(buildLogLevelFlag)); err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}
	cmdutil.ScrubEnvironment()

	if buildModeFlag == "" {
		return &ExitError{Code: ExitInvalidArgs, Err: fmt.Errorf("--mode is required")}
	}
	if len(buildTargetsFlag) == 0 {
		return &ExitError{Code: ExitInvalidArgs, Err: fmt.Errorf("at least one --targets is required")}
	}

	projectRoot, err := cmdutil.FindProjectRoot(".")
	if err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}

	modeTgt, err := target.Parse(buildModeFlag, projectRoot, projectRoot)
	if err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}
	toolchainTgt, err := target.Parse(buildToolchainFlag, projectRoot, projectRoot)
	if err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}

	rulesReg := rules.NewRegistry()
	reg := registry.New(projectRoot, rulesReg)
	sched := job.New(buildWorkersFlag)

	mode, err := reg.GetMode(modeTgt)
	if err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}

	rootIDs := make([]job.ID, 0, len(buildTargetsFlag))
	for _, raw := range buildTargetsFlag {
		tgt, err := target.Parse(raw, projectRoot, projectRoot)
		if err != nil {
			return &ExitError{Code: ExitInvalidArgs, Err: err}
		}
		id, err := rulesReg.CreateRootJob(reg, sched, mode, toolchainTgt, tgt)
		if err != nil {
			return &ExitError{Code: ExitInvalidArgs, Err: err}
		}
		rootIDs = append(rootIDs, id)
		output.Debug("queued target", "target", tgt.Rel(projectRoot))
	}

	if err := sched.Run(context.Background()); err != nil {
		output.Error("build failed", "error", err)
		return &ExitError{Code: ExitBuildFailure, Err: err}
	}

	for _, id := range rootIDs {
		printArtifact(sched, id)
	}
	output.Println("build succeeded")
	return nil
}

// printArtifact logs the primary output of one root job, downcasting by
// the artifact shapes internal/job defines (spec.md §3's "consumers
// downcast by expected shape").
func printArtifact(sched *job.Scheduler, id job.ID) {
	if exe, ok := sched.Artifacts().Executable(id); ok {
		output.Info("linked executable", "path", exe.Path)
		return
	}
	if ar, ok := sched.Artifacts().Archive(id); ok && ar.Path != "" {
		output.Info("archived library", "path", ar.Path)
		return
	}
	if _, ok := sched.Artifacts().LinkInputs(id); ok {
		output.Debug("produced object-only artifact", "job", id)
	}
}
