package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linkvm/pkg/compiled"
	lverrors "linkvm/pkg/errors"
	"linkvm/pkg/source"
)

var checkCmd = &cobra.Command{
	Use:   "check <manifest>...",
	Short: "Validate unit manifests and report errors with source context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			src := source.FromFile(path, data)
			if _, _, err := compiled.LoadManifest(data); err != nil {
				failed++
				var le lverrors.LinkvmError
				if !lverrors.As(err, &le) {
					le = &lverrors.FormatError{Position: lverrors.Position{File: src.DisplayPath()}, Msg: err.Error()}
				}
				lverrors.DisplayErrorsWithSource(cmd.ErrOrStderr(), src, []lverrors.LinkvmError{le})
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", src.DisplayPath())
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d manifest(s) invalid", failed, len(args))
		}
		return nil
	},
}
