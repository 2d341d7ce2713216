package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forrestthewoods/anubis/internal/cmdutil"
	"github.com/forrestthewoods/anubis/internal/output"
	"github.com/forrestthewoods/anubis/internal/papyrus"
	"github.com/forrestthewoods/anubis/internal/registry"
	"github.com/forrestthewoods/anubis/internal/rules"
	"github.com/forrestthewoods/anubis/internal/target"
	"github.com/forrestthewoods/anubis/internal/toolchaindb"
)

var installKeepDownloadsFlag bool

// NewInstallToolchainsCmd creates the "install-toolchains" subcommand.
func NewInstallToolchainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install-toolchains",
		Short: "Fetch and unpack every toolchain declared with an install source",
		RunE:  runInstallToolchains,
	}
	cmd.Flags().BoolVar(&installKeepDownloadsFlag, "keep-downloads", false, "Retain intermediate archives")
	return cmd
}

func runInstallToolchains(cmd *cobra.Command, args []string) error {
	if err := output.Setup(output.LevelInfo); err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}
	cmdutil.ScrubEnvironment()

	projectRoot, err := cmdutil.FindProjectRoot(".")
	if err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}

	rulesReg := rules.NewRegistry()
	reg := registry.New(projectRoot, rulesReg)

	// Toolchain installation runs with no mode selected: install sources
	// are fetch metadata, not build configuration, so they don't need a
	// mode's variable bindings to resolve.
	installMode := &registry.Mode{Name: "install-toolchains", Vars: map[string]*papyrus.Value{}}

	raw, err := reg.GetRaw(projectRoot)
	if err != nil {
		return &ExitError{Code: ExitInvalidArgs, Err: err}
	}

	db, err := toolchaindb.Load(projectRoot)
	if err != nil {
		return &ExitError{Code: ExitBuildFailure, Err: err}
	}

	installed := 0
	for _, obj := range raw {
		if obj.TypeName != "toolchain" {
			continue
		}
		nameVal, ok := obj.Field("name")
		if !ok {
			continue
		}
		tgt := target.Target{Dir: projectRoot, Name: nameVal.Str}

		ri, err := reg.GetRule(installMode, tgt)
		if err != nil {
			return &ExitError{Code: ExitInvalidArgs, Err: err}
		}
		installField, ok := ri.Record.Field("install")
		if !ok {
			output.Debug("toolchain has no install source, assuming host-provided", "target", tgt.Rel(projectRoot))
			continue
		}

		spec := toolchaindb.Spec{
			Target: tgt.Rel(projectRoot),
		}
		if v, ok := installField.Record.Field("url"); ok {
			spec.URL = v.Str
		}
		if v, ok := installField.Record.Field("sha256"); ok {
			spec.SHA256 = v.Str
		}
		if v, ok := installField.Record.Field("version"); ok {
			spec.Version = v.Str
		}
		if v, ok := installField.Record.Field("strip_components"); ok {
			spec.StripComponents = int(v.Num)
		}

		output.Info("installing toolchain", "target", spec.Target, "version", spec.Version)
		rec, err := toolchaindb.Install(context.Background(), projectRoot, spec, db, installKeepDownloadsFlag)
		if err != nil {
			return &ExitError{Code: ExitBuildFailure, Err: fmt.Errorf("installing toolchain %s: %w", spec.Target, err)}
		}
		output.Info("installed toolchain", "target", spec.Target, "install_dir", rec.InstallDir)
		installed++
	}

	if err := db.Save(); err != nil {
		return &ExitError{Code: ExitBuildFailure, Err: err}
	}

	output.Println(fmt.Sprintf("installed %d toolchain(s)", installed))
	return nil
}
