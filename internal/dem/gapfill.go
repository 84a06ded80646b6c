package dem

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// GDAL utilities used for gap filling. Overridable for tests.
var (
	gdalBuildVRT   = "gdalbuildvrt"
	gdalFillNodata = "gdal_fillnodata.py"
)

// GapFill composites the per-radius rasters into one raster and
// interpolates the remaining nodata cells using the GDAL utilities. Inputs
// are ordered smallest radius first; smaller radii take priority where they
// have data.
func GapFill(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("gap-fill: no input rasters")
	}

	// gdalbuildvrt gives later files priority, so reverse to put the
	// smallest radius on top.
	ordered := make([]string, len(inputs))
	for i, f := range inputs {
		ordered[len(inputs)-1-i] = f
	}

	vrt := strings.TrimSuffix(output, ".tif") + ".vrt"
	if err := runTool(ctx, gdalBuildVRT, append([]string{vrt}, ordered...)...); err != nil {
		return err
	}
	defer os.Remove(vrt)

	log.Info().Str("file", output).Int("inputs", len(inputs)).Msg("gap-filling")
	if err := runTool(ctx, gdalFillNodata, "-of", "GTiff", vrt, output); err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("gap-fill: output %s missing: %w", output, err)
	}
	return nil
}

func runTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.Debug().Str("cmd", name+" "+strings.Join(args, " ")).Msg("running gdal tool")
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
