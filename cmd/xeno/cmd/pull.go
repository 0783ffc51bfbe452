package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull <ref>",
	Short: "Pull the shader cache from a registry",
	Long:  "Pull shader blobs from an OCI registry into the local cache.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func init() {
	cacheCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) (err error) {
	ref := args[0]

	s, err := openSync(ref)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fmt.Fprintf(os.Stderr, "Pulling %s...\n", ref)

	n, err := s.Pull(context.Background())
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. %d blobs received.\n", n)
	return nil
}
