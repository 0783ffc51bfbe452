package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "xeno",
	Short: "Vulkan interposer toolbox",
	Long:  "Probe the host and vendor driver, inspect settings, and manage the shader cache.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: the interposer's search paths)")
	rootCmd.PersistentFlags().String("cache-dir", "", "shader cache directory (default: from config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log interposer activity to stderr")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
}

// loadSettings resolves settings the way the interposer does, then applies
// --cache-dir.
func loadSettings() (config.Settings, string, error) {
	paths := config.DefaultPaths
	if cfg := viper.GetString("config"); cfg != "" {
		paths = []string{cfg}
	}
	s, source, err := config.Load(paths)
	if dir := viper.GetString("cache_dir"); dir != "" {
		s.CacheDir = dir
	}
	return s, source, err
}

func openStore() (*store.LocalStore, error) {
	s, _, _ := loadSettings()
	return store.NewLocalStore(s.CacheDir, 0, 0, s.CacheCompression)
}

func logger() *slog.Logger {
	if !viper.GetBool("verbose") {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
