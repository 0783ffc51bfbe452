package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exynostools/xeno"
)

var pushCmd = &cobra.Command{
	Use:   "push <ref> [tags...]",
	Short: "Push the shader cache to a registry",
	Long:  "Push the local shader cache to an OCI registry. Optionally push to additional tags.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPush,
}

func init() {
	cacheCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) (err error) {
	ref := args[0]
	tags := args[1:]

	s, err := openSync(ref)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fmt.Fprintf(os.Stderr, "Pushing %s...\n", ref)

	if err := s.Push(context.Background(), tags...); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done.\n")
	return nil
}

func openSync(ref string) (*xeno.Sync, error) {
	settings, _, _ := loadSettings()
	return xeno.OpenSync(ref, xeno.WithSettings(settings), xeno.WithProgress(os.Stderr))
}
