package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appliedgeo/l2d/internal/setup"
)

var installSource string

var installCmd = &cobra.Command{
	Use:   "install [prefix]",
	Short: "Install the l2d Python package",
	Long: `Install runs the bundled setup.py with the GDAL include paths
exported. With a prefix argument the Debian install layout is selected and
the prefix's dist-packages directory is created first when missing; without
arguments a plain install runs and the SuperBuild pdal binary is linked
into /usr/bin when nothing is there yet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstallCmd,
}

func init() {
	installCmd.Flags().StringVarP(&installSource, "source", "C", "", "Directory containing setup.py (default: the executable's directory)")
	rootCmd.AddCommand(installCmd)
}

func runInstallCmd(cmd *cobra.Command, args []string) error {
	dir := installSource
	if dir == "" {
		d, err := setup.ScriptDir()
		if err != nil {
			return fmt.Errorf("failed to locate source dir: %w", err)
		}
		dir = d
	}

	opts := make([]setup.Option, 0, len(extraEnv))
	for key, value := range envOverrides() {
		opts = append(opts, setup.WithEnv(key, value))
	}
	inst := setup.New(dir, opts...)
	if len(args) == 1 {
		return inst.InstallPrefix(cmd.Context(), args[0])
	}
	return inst.InstallDefault(cmd.Context())
}
