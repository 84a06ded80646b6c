package pdal

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// MinVersion is the oldest pdal release the generated pipelines are known
// to work with.
const MinVersion = "1.7.0"

// Bounds is the axis-aligned extent of a point cloud.
type Bounds struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Info summarizes a point cloud file.
type Info struct {
	Points     uint64
	Bounds     Bounds
	SpatialRef string
	Dimensions []string
}

// Info runs "pdal info --summary" on file and extracts the interesting
// fields from its JSON output.
func (r *Runner) Info(ctx context.Context, file string) (*Info, error) {
	out, err := r.output(ctx, "info", "--summary", file)
	if err != nil {
		return nil, err
	}
	summary := gjson.GetBytes(out, "summary")
	if !summary.Exists() {
		return nil, fmt.Errorf("pdal info: no summary for %s", file)
	}

	info := &Info{
		Points:     summary.Get("num_points").Uint(),
		SpatialRef: summary.Get("srs.compoundwkt").String(),
	}
	b := summary.Get("bounds")
	info.Bounds = Bounds{
		MinX: b.Get("minx").Float(),
		MinY: b.Get("miny").Float(),
		MinZ: b.Get("minz").Float(),
		MaxX: b.Get("maxx").Float(),
		MaxY: b.Get("maxy").Float(),
		MaxZ: b.Get("maxz").Float(),
	}
	// Older releases report dimensions as a comma-separated string, newer
	// ones as an array.
	if dims := summary.Get("dimensions"); dims.Exists() {
		if dims.IsArray() {
			for _, dim := range dims.Array() {
				info.Dimensions = append(info.Dimensions, dim.String())
			}
		} else {
			for _, dim := range strings.Split(dims.String(), ",") {
				if dim = strings.TrimSpace(dim); dim != "" {
					info.Dimensions = append(info.Dimensions, dim)
				}
			}
		}
	}
	return info, nil
}

var versionRe = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Version reports the installed pdal version, e.g. "2.4.3".
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "--version")
	if err != nil {
		return "", err
	}
	v := versionRe.FindString(string(out))
	if v == "" {
		return "", fmt.Errorf("pdal --version: no version in output %q", out)
	}
	return v, nil
}

// CheckVersion fails when the installed pdal is older than MinVersion.
func (r *Runner) CheckVersion(ctx context.Context) error {
	v, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if semver.Compare("v"+v, "v"+MinVersion) < 0 {
		return fmt.Errorf("pdal %s is older than the minimum supported %s", v, MinVersion)
	}
	return nil
}
