package config

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Placeholders look like {{world_idx}} or {{pkg:jackal_gazebo}}. Environment variables are
// already expanded by the reader, so the ${...} form is not available here.
var placeholderRegexp = regexp.MustCompile(`\{\{\s*(?P<placeholder_key>[^\}\s]*)\s*\}\}`)

const packagePrefix = "pkg:"

// Launch variables filled in by the driver.
const (
	VarWorldIdx  = "world_idx"
	VarGUI       = "gui"
	VarSolver    = "solver"
	VarMaxSpeed  = "max_speed"
	VarBarnDist  = "barn_dist"
	VarBagDir    = "bag_dir"
	VarBagName   = "bag_name"
	VarTimestamp = "timestamp"
)

// PackageResolver finds the directory of a ROS package.
type PackageResolver func(ctx context.Context, pkg string) (string, error)

// Replacer substitutes placeholders with launch variables and ROS package paths. Package
// lookups are cached.
type Replacer struct {
	ctx     context.Context
	resolve PackageResolver

	mu       sync.Mutex
	vars     map[string]string
	packages map[string]string
}

// NewReplacer returns a Replacer over vars. ctx bounds package lookups.
func NewReplacer(ctx context.Context, vars map[string]string, resolve PackageResolver) *Replacer {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Replacer{
		ctx:      ctx,
		resolve:  resolve,
		vars:     copied,
		packages: map[string]string{},
	}
}

// Set adds or changes a variable.
func (r *Replacer) Set(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[key] = value
}

// PackagePath resolves a ROS package.
func (r *Replacer) PackagePath(pkg string) (string, error) {
	r.mu.Lock()
	cached, ok := r.packages[pkg]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}
	if r.resolve == nil {
		return "", errors.Errorf("cannot resolve ROS package %q", pkg)
	}
	resolved, err := r.resolve(r.ctx, pkg)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.packages[pkg] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// Replace returns s with every placeholder substituted. Unknown placeholders are errors.
func (r *Replacer) Replace(s string) (string, error) {
	var allErrs error
	replaced := placeholderRegexp.ReplaceAllStringFunc(s, func(placeholder string) string {
		matches := placeholderRegexp.FindStringSubmatch(placeholder)
		key := matches[placeholderRegexp.SubexpIndex("placeholder_key")]

		if strings.HasPrefix(key, packagePrefix) {
			pkgPath, err := r.PackagePath(strings.TrimPrefix(key, packagePrefix))
			if err != nil {
				allErrs = multierr.Append(allErrs, err)
				return placeholder
			}
			return pkgPath
		}

		r.mu.Lock()
		value, ok := r.vars[key]
		r.mu.Unlock()
		if !ok {
			allErrs = multierr.Append(allErrs, errors.Errorf("invalid placeholder %q", placeholder))
			return placeholder
		}
		return value
	})
	return replaced, allErrs
}
