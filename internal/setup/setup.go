// Package setup drives the distutils install of the l2d Python package.
package setup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Fixed paths of the upstream deployment layout.
const (
	// GDALIncludeDir is exported through CPLUS_INCLUDE_PATH and
	// C_INCLUDE_PATH so the C extensions find the GDAL headers.
	GDALIncludeDir = "/usr/include/gdal"

	// DistPackages is the Debian-layout site directory created under the
	// install prefix when missing.
	DistPackages = "lib/python2.7/dist-packages"

	// PDALLink and PDALBuildBin are the symlink endpoints used by
	// container installs, where pdal comes from the SuperBuild tree.
	PDALLink     = "/usr/bin/pdal"
	PDALBuildBin = "/code/SuperBuild/build/pdal/bin/pdal"
)

const distPackagesMsg = "Python dist-packages dir does not exist. Creating it now..."

// Installer runs "./setup.py install" from the package source directory.
type Installer struct {
	dir     string
	env     map[string]string
	linkSrc string
	linkDst string
	stdout  io.Writer
	stderr  io.Writer
}

// Option configures an Installer.
type Option func(*Installer)

// WithOutput redirects the installer's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(i *Installer) {
		i.stdout = stdout
		i.stderr = stderr
	}
}

// WithEnv sets key=value for every spawned install command.
func WithEnv(key, value string) Option {
	return func(i *Installer) {
		i.env[key] = value
	}
}

// WithPDALLink overrides the symlink endpoints used by InstallDefault.
func WithPDALLink(src, dst string) Option {
	return func(i *Installer) {
		i.linkSrc = src
		i.linkDst = dst
	}
}

// New returns an Installer rooted at dir, the directory containing setup.py.
// The GDAL include paths are always exported to the subprocess.
func New(dir string, opts ...Option) *Installer {
	i := &Installer{
		dir: dir,
		env: map[string]string{
			"CPLUS_INCLUDE_PATH": GDALIncludeDir,
			"C_INCLUDE_PATH":     GDALIncludeDir,
		},
		linkSrc: PDALBuildBin,
		linkDst: PDALLink,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ScriptDir returns the directory containing the running executable, the
// default location of setup.py.
func ScriptDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// InstallPrefix installs under prefix using the Debian layout, creating the
// prefix's dist-packages directory first when missing. A failure to create
// the directory is reported but does not stop the install; the returned
// error is the install command's.
func (i *Installer) InstallPrefix(ctx context.Context, prefix string) error {
	if err := i.EnsureDistPackages(prefix); err != nil {
		log.Warn().Err(err).Msg("could not create dist-packages dir")
	}
	return i.Install(ctx, "--prefix="+prefix, "--install-layout", "deb")
}

// EnsureDistPackages creates <prefix>/lib/python2.7/dist-packages when it
// does not already exist as a directory, announcing the creation on stdout
// first.
func (i *Installer) EnsureDistPackages(prefix string) error {
	dir := filepath.Join(prefix, filepath.FromSlash(DistPackages))
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		return nil
	}
	fmt.Fprintln(i.stdout, distPackagesMsg)
	return os.MkdirAll(dir, 0o755)
}

// InstallDefault performs a plain install and then links the SuperBuild
// pdal binary into /usr/bin when nothing is there. The install's exit
// status is logged but the returned error reflects the link step, matching
// the historical install script.
func (i *Installer) InstallDefault(ctx context.Context) error {
	if err := i.Install(ctx); err != nil {
		log.Error().Err(err).Msg("setup.py install failed")
	}
	return LinkPDAL(i.linkSrc, i.linkDst)
}

// Install runs "./setup.py install" with extra arguments appended, from the
// package source directory, and propagates the command's exit status.
func (i *Installer) Install(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "./setup.py", append([]string{"install"}, args...)...)
	cmd.Dir = i.dir
	cmd.Stdout = i.stdout
	cmd.Stderr = i.stderr
	if len(i.env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), i.env)
	}
	log.Debug().Str("dir", i.dir).Strs("args", args).Msg("running setup.py install")
	return cmd.Run()
}

// mergeEnv returns base with every key in overrides replaced or appended.
func mergeEnv(base []string, overrides map[string]string) []string {
	idx := make(map[string]int, len(base))
	for i, kv := range base {
		if k, _, ok := strings.Cut(kv, "="); ok {
			idx[k] = i
		}
	}
	for k, v := range overrides {
		if i, ok := idx[k]; ok {
			base[i] = k + "=" + v
		} else {
			base = append(base, k+"="+v)
		}
	}
	return base
}
