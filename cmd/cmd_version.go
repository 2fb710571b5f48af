package cmd

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/core/constants"
	"github.com/mutual-network/escrow-indexer/modules/escrow"
	"github.com/spf13/cobra"
)

var versions = map[string]string{
	"":                           constants.Version,
	common.ModuleEscrow.String(): escrow.Version,
}

type versionCmdOptions struct {
	Modules string
}

func NewVersionCommand() *cobra.Command {
	opts := &versionCmdOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show mutual escrow indexer version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return versionHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Modules, "module", "", `Show version of a specific module. E.g. "escrow"`)

	return cmd
}

func versionHandler(opts *versionCmdOptions, cmd *cobra.Command, _ []string) error {
	version, ok := versions[opts.Modules]
	if !ok {
		return errors.Wrap(errs.Unsupported, "Invalid module name")
	}
	fmt.Fprintln(cmd.OutOrStdout(), version)
	return nil
}
