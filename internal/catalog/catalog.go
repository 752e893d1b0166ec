// Package catalog locates CMIP6 model output: it parses CMIP6 file names,
// groups files by model and experiment, and builds object-store URLs for the
// public climate and weather archives.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// ErrNotCMIP6 is returned for file names that do not follow the CMIP6 pattern.
var ErrNotCMIP6 = errors.New("not a CMIP6 file name")

// FileInfo is the metadata encoded in a CMIP6 file name:
//
//	<variable>_<table>_<source>_<experiment>_<member>_<grid>[_<start>-<end>].nc
type FileInfo struct {
	Path       string
	Variable   string
	Table      string
	Source     domain.ModelID
	Experiment domain.ExperimentID
	Member     string
	Grid       string
	Start      string // first time stamp, e.g. "185001"; empty for fixed fields
	End        string
}

// ParseFilename extracts CMIP6 metadata from a file path.
func ParseFilename(path string) (FileInfo, error) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, ".nc")
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotCMIP6, base)
	}
	parts := strings.Split(name, "_")
	if len(parts) != 6 && len(parts) != 7 {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotCMIP6, base)
	}
	for _, p := range parts {
		if p == "" {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotCMIP6, base)
		}
	}

	info := FileInfo{
		Path:       path,
		Variable:   parts[0],
		Table:      parts[1],
		Source:     domain.ModelID(parts[2]),
		Experiment: domain.ExperimentID(parts[3]),
		Member:     parts[4],
		Grid:       parts[5],
	}
	if len(parts) == 7 {
		start, end, ok := strings.Cut(parts[6], "-")
		if !ok || start == "" || end == "" {
			return FileInfo{}, fmt.Errorf("%w: bad time range in %s", ErrNotCMIP6, base)
		}
		info.Start, info.End = start, end
	}
	return info, nil
}

// Scan walks dir for .nc files and parses their names. Files that do not
// follow the CMIP6 pattern are returned as skipped rather than failing the scan.
func Scan(dir string) (files []FileInfo, skipped []string, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || filepath.Ext(path) != ".nc" {
			return nil
		}
		info, perr := ParseFilename(path)
		if perr != nil {
			skipped = append(skipped, path)
			return nil
		}
		files = append(files, info)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, skipped, nil
}

// Groups maps model → experiment → variable → file paths in time order.
type Groups map[domain.ModelID]map[domain.ExperimentID]map[string][]string

// Group arranges files by model, experiment and variable. When a model
// experiment has several ensemble members, only the member whose ID sorts
// first is kept so one run is never stitched from different members.
func Group(files []FileInfo) Groups {
	type runKey struct {
		model      domain.ModelID
		experiment domain.ExperimentID
	}
	member := make(map[runKey]string)
	for _, f := range files {
		k := runKey{f.Source, f.Experiment}
		if cur, ok := member[k]; !ok || f.Member < cur {
			member[k] = f.Member
		}
	}

	byRun := make(map[runKey]map[string][]FileInfo)
	for _, f := range files {
		k := runKey{f.Source, f.Experiment}
		if f.Member != member[k] {
			continue
		}
		vars, ok := byRun[k]
		if !ok {
			vars = make(map[string][]FileInfo)
			byRun[k] = vars
		}
		vars[f.Variable] = append(vars[f.Variable], f)
	}

	g := make(Groups)
	for k, vars := range byRun {
		exps, ok := g[k.model]
		if !ok {
			exps = make(map[domain.ExperimentID]map[string][]string)
			g[k.model] = exps
		}
		out := make(map[string][]string, len(vars))
		for v, infos := range vars {
			slices.SortFunc(infos, func(a, b FileInfo) int {
				if c := strings.Compare(a.Start, b.Start); c != 0 {
					return c
				}
				return strings.Compare(a.Path, b.Path)
			})
			paths := make([]string, len(infos))
			for i, f := range infos {
				paths[i] = f.Path
			}
			out[v] = paths
		}
		exps[k.experiment] = out
	}
	return g
}

// Models returns the grouped model IDs in sorted order.
func (g Groups) Models() []domain.ModelID {
	ids := make([]domain.ModelID, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
