package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exynostools/xeno"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Detect hardware and bind the vendor driver",
	Long:  "Run the interposer's startup sequence and report the host probe, the bound driver, and which entry points resolved.",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	probeCmd.Flags().StringSlice("driver", nil, "driver libraries to try instead of the built-in list")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	s, _, _ := loadSettings()
	opts := []xeno.Option{xeno.WithSettings(s), xeno.WithLogger(logger())}
	if drivers, _ := cmd.Flags().GetStringSlice("driver"); len(drivers) > 0 {
		opts = append(opts, xeno.WithDriverCandidates(drivers...))
	}

	w := xeno.New(opts...)
	defer w.Close()
	st := w.Status()

	fmt.Printf("specialized hardware: %t\n", st.Specialized)
	if st.Degraded() {
		fmt.Printf("driver: (none) %v\n", st.BindError)
	} else {
		fmt.Printf("driver: %s\n", st.DriverPath)
	}
	fmt.Printf("performance mode: %s\n", st.Settings.PerformanceMode)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY POINT\tAVAILABLE")
	for _, ep := range st.EntryPoints {
		fmt.Fprintf(tw, "%s\t%t\n", ep.Symbol, ep.Available)
	}
	return tw.Flush()
}
