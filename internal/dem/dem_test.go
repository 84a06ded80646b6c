package dem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appliedgeo/l2d/internal/pdal"
)

// newFakeRunner returns a Runner backed by a shell script that creates the
// output files named by the pipeline document (or the ground -o argument)
// and records every invocation to argsFile.
func newFakeRunner(t *testing.T, argsFile string) *pdal.Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fixture scripts require a unix shell")
	}
	exe := filepath.Join(t.TempDir(), "pdal")
	script := `#!/bin/sh
echo "$@" >> ` + argsFile + `
case "$1" in
pipeline)
	for f in $(grep -o '"filename": "[^"]*"' "$3" | cut -d'"' -f4); do
		touch "$f"
	done
	;;
ground)
	touch "$5"
	;;
esac
`
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))
	return pdal.NewRunner(pdal.WithExecutable(exe), pdal.WithOutput(io.Discard, io.Discard))
}

func writeInputs(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	files := make([]string, len(names))
	for i, name := range names {
		files[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(files[i], []byte("las"), 0o644))
	}
	return files
}

func TestProducts(t *testing.T) {
	assert.Equal(t, []string{"max", "idw", "den"}, Products(DSM))
	assert.Equal(t, []string{"min", "idw", "den"}, Products(DTM))
	assert.Equal(t, []string{"den"}, Products(Density))
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("DSM")
	require.NoError(t, err)
	assert.Equal(t, DSM, typ)

	_, err = ParseType("hillshade")
	assert.Error(t, err)
}

func TestBasePath(t *testing.T) {
	opts := Options{Type: DSM, OutDir: "/out", SiteName: "site1", Suffix: "_test"}
	base, err := opts.basePath(0.56)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "site1_dsm_r0.56_test"), base)

	opts = Options{Type: DTM, OutDir: "/out"}
	base, err = opts.basePath(1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "dtm_r1"), base)
}

func TestMergeDefaultOutput(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las", "b.las")
	r := newFakeRunner(t, filepath.Join(t.TempDir(), "args"))

	out, err := Merge(context.Background(), r, files, MergeOptions{})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(out))
	assert.Equal(t, ".las", filepath.Ext(out))
	_, err = os.Stat(out)
	assert.NoError(t, err, "merged file was not created")
}

func TestMergeNoInputs(t *testing.T) {
	r := newFakeRunner(t, os.DevNull)
	_, err := Merge(context.Background(), r, nil, MergeOptions{})
	assert.Error(t, err)
}

func TestClassifyRemovesIntermediate(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las", "b.las")
	output := filepath.Join(t.TempDir(), "classified.las")
	r := newFakeRunner(t, filepath.Join(t.TempDir(), "args"))

	opts := ClassifyOptions{Slope: 1, CellSize: 3, MaxWindowSize: 10, MaxDistance: 1}
	require.NoError(t, Classify(context.Background(), r, files, output, opts))

	_, err := os.Stat(output)
	assert.NoError(t, err, "classified output missing")

	// Only the two inputs remain in the source directory; the merged
	// intermediate was deleted.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCreateDEM(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las")
	outDir := t.TempDir()
	r := newFakeRunner(t, filepath.Join(t.TempDir(), "args"))

	opts := Options{Type: DSM, Radius: 0.56, OutDir: outDir}
	fouts, err := CreateDEM(context.Background(), r, files, opts)
	require.NoError(t, err)

	require.Len(t, fouts, 3)
	for _, product := range []string{"max", "idw", "den"} {
		f := fouts[product]
		assert.Equal(t, filepath.Join(outDir, "dsm_r0.56."+product+".tif"), f)
		_, err := os.Stat(f)
		assert.NoError(t, err, "product %s missing", product)
	}
}

func TestCreateDEMSkipsWhenComplete(t *testing.T) {
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las")
	outDir := t.TempDir()
	for _, product := range []string{"min", "idw", "den"} {
		require.NoError(t, os.WriteFile(
			filepath.Join(outDir, "dtm_r0.56."+product+".tif"), nil, 0o644))
	}
	argsFile := filepath.Join(t.TempDir(), "args")
	r := newFakeRunner(t, argsFile)

	opts := Options{Type: DTM, Radius: 0.56, OutDir: outDir}
	_, err := CreateDEM(context.Background(), r, files, opts)
	require.NoError(t, err)

	_, err = os.Stat(argsFile)
	assert.True(t, os.IsNotExist(err), "pdal was invoked although all products exist")
}

func TestCreateDEMOverwrite(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las")
	outDir := t.TempDir()
	for _, product := range []string{"min", "idw", "den"} {
		require.NoError(t, os.WriteFile(
			filepath.Join(outDir, "dtm_r0.56."+product+".tif"), nil, 0o644))
	}
	argsFile := filepath.Join(t.TempDir(), "args")
	r := newFakeRunner(t, argsFile)

	opts := Options{Type: DTM, Radius: 0.56, OutDir: outDir, Overwrite: true}
	_, err := CreateDEM(context.Background(), r, files, opts)
	require.NoError(t, err)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(data)), "pdal was not invoked despite --overwrite")
}

func TestCreateDEMs(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las")
	outDir := t.TempDir()
	r := newFakeRunner(t, filepath.Join(t.TempDir(), "args"))

	opts := Options{Type: DSM, Radii: []float64{0.56, 1}, OutDir: outDir}
	final, err := CreateDEMs(context.Background(), r, files, opts)
	require.NoError(t, err)

	// Without gap-fill each product points at the first radius run.
	for _, product := range []string{"max", "idw", "den"} {
		assert.Equal(t, filepath.Join(outDir, "dsm_r0.56."+product+".tif"), final[product])
	}
	// Both radius runs produced rasters.
	for _, radius := range []string{"0.56", "1"} {
		_, err := os.Stat(filepath.Join(outDir, "dsm_r"+radius+".max.tif"))
		assert.NoError(t, err)
	}
}

func TestCreateDEMsGapFill(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	files := writeInputs(t, dir, "a.las")
	outDir := t.TempDir()
	r := newFakeRunner(t, filepath.Join(t.TempDir(), "args"))

	toolDir := t.TempDir()
	fakeVRT := filepath.Join(toolDir, "buildvrt")
	require.NoError(t, os.WriteFile(fakeVRT, []byte("#!/bin/sh\ntouch \"$1\"\n"), 0o755))
	fakeFill := filepath.Join(toolDir, "fillnodata")
	require.NoError(t, os.WriteFile(fakeFill, []byte("#!/bin/sh\ntouch \"$4\"\n"), 0o755))

	oldVRT, oldFill := gdalBuildVRT, gdalFillNodata
	gdalBuildVRT, gdalFillNodata = fakeVRT, fakeFill
	t.Cleanup(func() { gdalBuildVRT, gdalFillNodata = oldVRT, oldFill })

	opts := Options{Type: DTM, Radii: []float64{0.56, 1}, OutDir: outDir, GapFill: true}
	final, err := CreateDEMs(context.Background(), r, files, opts)
	require.NoError(t, err)

	for _, product := range []string{"min", "idw"} {
		assert.Equal(t, filepath.Join(outDir, "dtm."+product+".tif"), final[product])
		_, err := os.Stat(final[product])
		assert.NoError(t, err, "gap-filled %s missing", product)
	}
	// Density stays a raw first-radius output.
	assert.Equal(t, filepath.Join(outDir, "dtm_r0.56.den.tif"), final["den"])
}

func TestGapFillNoInputs(t *testing.T) {
	err := GapFill(context.Background(), nil, "out.tif")
	assert.Error(t, err)
}
