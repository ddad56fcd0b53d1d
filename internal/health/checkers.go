package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/catalog"
	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// DataListChecker reads one data list and reports its size and span.
type DataListChecker struct {
	fileType string
	path     string
}

// NewDataListChecker checks the data list at path for fileType.
func NewDataListChecker(fileType, path string) *DataListChecker {
	return &DataListChecker{fileType: fileType, path: path}
}

// Name implements Checker.
func (c *DataListChecker) Name() string {
	return "data-list-" + strings.ToLower(c.fileType)
}

// Check implements Checker. A missing or unreadable list is unhealthy; an
// empty list or one with unparseable entries is degraded.
func (c *DataListChecker) Check(ctx context.Context) *Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("check cancelled").WithDetail("error", firstLine(err.Error()))
	}
	st, err := catalog.StatList(c.path)
	if err != nil {
		return Unhealthy(fmt.Sprintf("%s data list unreadable", c.fileType)).
			WithDetail("path", c.path).
			WithDetail("error", firstLine(err.Error()))
	}

	var res *Result
	switch {
	case st.Entries == 0:
		res = Degraded(fmt.Sprintf("%s data list is empty", c.fileType))
	case st.Unparseable > 0:
		res = Degraded(fmt.Sprintf("%s data list has %d unparseable entries", c.fileType, st.Unparseable))
	default:
		res = Healthy(fmt.Sprintf("%s data list has %d entries", c.fileType, st.Entries))
	}
	res.WithDetail("path", c.path).WithDetail("entries", st.Entries)
	if !st.Span.IsZero() {
		res.WithDetail("first", st.Span.Left.Format(time.RFC3339)).
			WithDetail("last", st.Span.Right.Format(time.RFC3339))
	}
	for sat, n := range st.Satellites {
		res.WithDetail("satellite."+sat, n)
	}
	return res
}

// ExecutableChecker locates the collocation executable for the configured
// versions.
type ExecutableChecker struct {
	locator      collo.Locator
	hirsVersion  string
	colloVersion string
}

// NewExecutableChecker checks that locator can resolve an executable for
// contexts stamped with hirsVersion and colloVersion.
func NewExecutableChecker(locator collo.Locator, hirsVersion, colloVersion string) *ExecutableChecker {
	return &ExecutableChecker{locator: locator, hirsVersion: hirsVersion, colloVersion: colloVersion}
}

// Name implements Checker.
func (c *ExecutableChecker) Name() string {
	return "executable"
}

// Check implements Checker.
func (c *ExecutableChecker) Check(ctx context.Context) *Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("check cancelled").WithDetail("error", firstLine(err.Error()))
	}
	exe, err := c.locator.Locate(collo.Context{HirsVersion: c.hirsVersion, ColloVersion: c.colloVersion})
	if err != nil {
		res := Unhealthy(fmt.Sprintf("no executable for hirs version %s, collocation version %s",
			c.hirsVersion, c.colloVersion)).
			WithDetail("error", firstLine(err.Error()))
		if pe, ok := errors.As(err); ok && len(pe.Suggestions) > 0 {
			res.WithDetail("suggestion", pe.Suggestions[0])
		}
		return res
	}
	res := Healthy("collocation executable found").
		WithDetail("path", exe.Path).
		WithDetail("hirs_version", c.hirsVersion).
		WithDetail("collo_version", c.colloVersion)
	for k, v := range exe.Env {
		res.WithDetail("env."+k, v)
	}
	return res
}

// DirectoryChecker verifies that the batch driver can write to a directory.
type DirectoryChecker struct {
	name string
	path string
}

// NewDirectoryChecker checks the directory at path under the given check
// name.
func NewDirectoryChecker(name, path string) *DirectoryChecker {
	return &DirectoryChecker{name: name, path: path}
}

// Name implements Checker.
func (c *DirectoryChecker) Name() string {
	return c.name
}

// Check implements Checker. A directory that does not exist yet is degraded
// since submit creates it.
func (c *DirectoryChecker) Check(ctx context.Context) *Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("check cancelled").WithDetail("error", firstLine(err.Error()))
	}
	fi, err := os.Stat(c.path)
	switch {
	case os.IsNotExist(err):
		return Degraded("directory does not exist yet").WithDetail("path", c.path)
	case err != nil:
		return Unhealthy("directory not accessible").
			WithDetail("path", c.path).
			WithDetail("error", firstLine(err.Error()))
	case !fi.IsDir():
		return Unhealthy("not a directory").WithDetail("path", c.path)
	}

	f, err := os.CreateTemp(c.path, ".doctor-*")
	if err != nil {
		return Unhealthy("directory not writable").
			WithDetail("path", c.path).
			WithDetail("error", firstLine(err.Error()))
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Healthy("directory writable").WithDetail("path", c.path)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
