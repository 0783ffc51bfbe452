package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shader cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached blobs",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the cache directory",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <fingerprint>",
	Short: "Write a cached blob to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheGet,
}

var cacheRmCmd = &cobra.Command{
	Use:   "rm <fingerprint>...",
	Short: "Remove cached blobs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheRm,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove the oldest blobs until the cache fits",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached blob",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheGetCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	cachePruneCmd.Flags().String("max-size", "256MiB", "size to prune down to (bytes, or with KiB/MiB/GiB suffix)")

	cacheCmd.AddCommand(cacheListCmd, cacheStatsCmd, cacheGetCmd, cacheRmCmd, cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(cmd *cobra.Command, args []string) (err error) {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	count := 0
	for e, err := range s.Entries() {
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Fingerprint, e.Size, e.ModTime.Format(time.RFC3339))
		count++
	}
	if count == 0 {
		fmt.Println("(no entries)")
	}
	return tw.Flush()
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("dir: %s\n", s.Dir())
	fmt.Printf("entries: %d\n", st.Entries)
	fmt.Printf("size: %s\n", humanSize(st.TotalSize))
	if st.Entries > 0 {
		fmt.Printf("oldest: %s\n", st.Oldest.Format(time.RFC3339))
		fmt.Printf("newest: %s\n", st.Newest.Format(time.RFC3339))
	}
	return nil
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	blob, err := s.Load(args[0])
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		return os.WriteFile(out, blob, 0644)
	}
	_, err = os.Stdout.Write(blob)
	return err
}

func runCacheRm(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, fp := range args {
		if err := s.Remove(fp); err != nil {
			return err
		}
	}
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("max-size")
	maxBytes, err := parseSize(raw)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Prune(maxBytes)
	fmt.Fprintf(os.Stderr, "Removed %d blobs.\n", n)
	return err
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Clear()
	fmt.Fprintf(os.Stderr, "Removed %d blobs.\n", n)
	return err
}

var sizeUnits = []struct {
	suffix string
	scale  int64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

func parseSize(s string) (int64, error) {
	for _, u := range sizeUnits {
		if n, ok := strings.CutSuffix(s, u.suffix); ok && n != "" {
			v, err := cast.ToInt64E(n)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			return v * u.scale, nil
		}
	}
	v, err := cast.ToInt64E(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return v, nil
}

func humanSize(n int64) string {
	for _, u := range sizeUnits[:3] {
		if n >= u.scale {
			return fmt.Sprintf("%.1f%s", float64(n)/float64(u.scale), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", n)
}
