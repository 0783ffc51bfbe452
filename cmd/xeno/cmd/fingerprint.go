package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/exynostools/xeno"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <file>",
	Short: "Print the cache fingerprint of a file",
	Long:  "Print the fingerprint a shader module would be cached under. Use - to read stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFingerprint,
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}
	fmt.Println(xeno.Fingerprint(data))
	return nil
}
