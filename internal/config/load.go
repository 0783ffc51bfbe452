package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Recognized keys.
const (
	KeyPerformanceMode     = "performance_mode"
	KeyShaderCacheEnabled  = "shader_cache_enabled"
	KeyEmulationEnabled    = "bc4_emulation_enabled"
	KeyCacheDir            = "shader_cache_dir"
	KeyCacheCompression    = "shader_cache_compression"
	KeySyntheticExtensions = "synthetic_extensions_enabled"
	KeyFeatureOverrides    = "feature_overrides_enabled"
)

// EnvPrefix prefixes environment overrides, e.g. XENO_PERFORMANCE_MODE=1.
const EnvPrefix = "XENO"

// DefaultPaths are the config sources in priority order: application-private,
// external storage, current directory.
var DefaultPaths = []string{
	"/data/data/com.winlator/files/xclipse_tools.conf",
	"/sdcard/xclipse_tools.conf",
	"./xclipse_tools.conf",
}

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Load reads settings from the first readable path. Later paths are not consulted.
// With no readable path the defaults apply and source is empty. Environment
// overrides apply either way.
//
// A readable but unparsable source is reported in err; the returned settings are
// still usable.
func Load(paths []string) (s Settings, source string, err error) {
	v := newViper()

	for _, p := range paths {
		if p == "" {
			continue
		}
		data, rerr := os.ReadFile(p)
		if rerr != nil {
			continue
		}
		source = p
		if perr := v.ReadConfig(bytes.NewReader(normalize(data))); perr != nil {
			err = fmt.Errorf("parse %s: %w", p, perr)
		}
		break
	}

	return decode(v), source, err
}

// Parse reads settings from config text, without environment overrides.
func Parse(data []byte) (Settings, error) {
	v := viper.New()
	v.SetConfigType("dotenv")
	setDefaults(v)
	if err := v.ReadConfig(bytes.NewReader(normalize(data))); err != nil {
		return Default(), err
	}
	return decode(v), nil
}

// Format renders s in the config file syntax.
func Format(s Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%d\n", KeyPerformanceMode, s.PerformanceMode)
	fmt.Fprintf(&b, "%s=%d\n", KeyShaderCacheEnabled, boolInt(s.ShaderCacheEnabled))
	fmt.Fprintf(&b, "%s=%d\n", KeyEmulationEnabled, boolInt(s.EmulationEnabled))
	fmt.Fprintf(&b, "%s=%s\n", KeyCacheDir, s.CacheDir)
	fmt.Fprintf(&b, "%s=%d\n", KeyCacheCompression, boolInt(s.CacheCompression))
	fmt.Fprintf(&b, "%s=%d\n", KeySyntheticExtensions, boolInt(s.SyntheticExtensions))
	fmt.Fprintf(&b, "%s=%d\n", KeyFeatureOverrides, boolInt(s.FeatureOverrides))
	return b.String()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("dotenv")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyPerformanceMode, int(d.PerformanceMode))
	v.SetDefault(KeyShaderCacheEnabled, boolInt(d.ShaderCacheEnabled))
	v.SetDefault(KeyEmulationEnabled, boolInt(d.EmulationEnabled))
	v.SetDefault(KeyCacheDir, d.CacheDir)
	v.SetDefault(KeyCacheCompression, boolInt(d.CacheCompression))
	v.SetDefault(KeySyntheticExtensions, boolInt(d.SyntheticExtensions))
	v.SetDefault(KeyFeatureOverrides, boolInt(d.FeatureOverrides))
}

func decode(v *viper.Viper) Settings {
	s := Default()

	if n, err := cast.ToIntE(v.Get(KeyPerformanceMode)); err == nil && PerformanceMode(n).Valid() {
		s.PerformanceMode = PerformanceMode(n)
	}
	flag(v, KeyShaderCacheEnabled, &s.ShaderCacheEnabled)
	flag(v, KeyEmulationEnabled, &s.EmulationEnabled)
	flag(v, KeyCacheCompression, &s.CacheCompression)
	flag(v, KeySyntheticExtensions, &s.SyntheticExtensions)
	flag(v, KeyFeatureOverrides, &s.FeatureOverrides)
	if dir := strings.TrimSpace(v.GetString(KeyCacheDir)); dir != "" {
		s.CacheDir = dir
	}
	return s
}

// flag decodes an integer switch: zero is off, anything else on.
func flag(v *viper.Viper, key string, dst *bool) {
	if n, err := cast.ToIntE(v.Get(key)); err == nil {
		*dst = n != 0
	}
}

// normalize reduces free-form config text to strict key='value' lines. Comments,
// blank lines and lines without a key=value shape are dropped; a value ends at the
// first whitespace.
func normalize(data []byte) []byte {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		fields := strings.Fields(rest)
		if !keyPattern.MatchString(key) || len(fields) == 0 || strings.Contains(fields[0], "'") {
			continue
		}
		fmt.Fprintf(&out, "%s='%s'\n", key, fields[0])
	}
	return out.Bytes()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
