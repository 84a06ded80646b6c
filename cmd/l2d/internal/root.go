package internal

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/appliedgeo/l2d/internal/pdal"
)

var (
	verbose     bool
	pipelineOut string
	extraEnv    []string
)

var rootCmd = &cobra.Command{
	Use:   "l2d",
	Short: "l2d creates digital elevation models from LiDAR data",
	Long: `l2d drives PDAL and the GDAL utilities to merge, classify and
rasterize LiDAR point clouds into digital elevation models, and installs
the bundled Python tooling.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&pipelineOut, "pipeline-out", "", "Also write executed pipeline documents to this path")
	rootCmd.PersistentFlags().StringArrayVar(&extraEnv, "env", nil, "Extra KEY=VALUE environment for spawned tools (repeatable)")
}

// envOverrides parses the repeated --env flag into a map, skipping entries
// without a '='.
func envOverrides() map[string]string {
	m := make(map[string]string, len(extraEnv))
	for _, kv := range extraEnv {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			log.Warn().Str("env", kv).Msg("ignoring malformed --env value, want KEY=VALUE")
			continue
		}
		m[key] = value
	}
	return m
}

// newRunner builds the shared pdal runner from the global flags.
func newRunner() *pdal.Runner {
	opts := []pdal.Option{pdal.WithVerbose(verbose)}
	if pipelineOut != "" {
		opts = append(opts, pdal.WithPipelineDump(pipelineOut))
	}
	for key, value := range envOverrides() {
		opts = append(opts, pdal.WithEnv(key, value))
	}
	return pdal.NewRunner(opts...)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
