// Package config loads the program settings: which hosts play which role,
// where experiment data lives, and which external tools the steps invoke.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "EVNPP"

// Settings holds the loaded configuration.
type Settings struct {
	// SupSci is the support scientist account, used in remote paths.
	SupSci string `mapstructure:"supsci"`

	// DataRoot is the local root under which experiment directories live.
	DataRoot string `mapstructure:"data_root"`

	Hosts struct {
		// Correlator is where the raw correlation output sits (ccs).
		Correlator string `mapstructure:"correlator"`
		// Processing runs the MS/FITS tooling; "local" means this machine.
		Processing string `mapstructure:"processing"`
		// Pipeline runs the EVN pipeline.
		Pipeline string `mapstructure:"pipeline"`
		// Archive is the EVN archive frontend.
		Archive string `mapstructure:"archive"`
		// Logs is the station log repository (vlbeer).
		Logs string `mapstructure:"logs"`
	} `mapstructure:"hosts"`

	Paths struct {
		// CcsExpDir is the per-experiment directory pattern on the
		// correlator host; {exp} and {EXP} expand to the experiment name.
		CcsExpDir string `mapstructure:"ccs_exp_dir"`
		// PipelineIn is the pipeline input directory pattern.
		PipelineIn string `mapstructure:"pipeline_in"`
		// PipelineOut is the pipeline output directory pattern.
		PipelineOut string `mapstructure:"pipeline_out"`
	} `mapstructure:"paths"`

	Debug bool `mapstructure:"debug"`
}

// Load reads settings from cfgFile, or from evnpp.yaml on the search path
// when cfgFile is empty. EVNPP_* environment variables override both.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("evnpp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/evnpp")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("supsci", "jops")
	v.SetDefault("data_root", "/data0/{supsci}")
	v.SetDefault("hosts.correlator", "ccs")
	v.SetDefault("hosts.processing", "local")
	v.SetDefault("hosts.pipeline", "pipe")
	v.SetDefault("hosts.archive", "archive.jive.eu")
	v.SetDefault("hosts.logs", "vlbeer.ira.inaf.it")
	v.SetDefault("paths.ccs_exp_dir", "/ccs/expr/{EXP}")
	v.SetDefault("paths.pipeline_in", "/jop83_0/pipe/in/{supsci}/{exp}")
	v.SetDefault("paths.pipeline_out", "/jop83_0/pipe/out/{exp}")
	v.SetDefault("debug", false)
}

// ExpDir returns the local working directory for an experiment.
func (s *Settings) ExpDir(expName string) string {
	return filepath.Join(s.Expand(s.DataRoot, expName), strings.ToUpper(expName))
}

// Expand substitutes the {exp}, {EXP} and {supsci} placeholders used by the
// path patterns.
func (s *Settings) Expand(pattern, expName string) string {
	r := strings.NewReplacer(
		"{exp}", strings.ToLower(expName),
		"{EXP}", strings.ToUpper(expName),
		"{supsci}", s.SupSci,
	)
	return r.Replace(pattern)
}
