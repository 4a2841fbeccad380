package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecshift/internal/domain/index"
	dommig "github.com/kailas-cloud/vecshift/internal/domain/migration"
)

const defaultSampleSize = 1000

// loadPlanFile decodes a YAML plan file.
func loadPlanFile(path string) (dommig.PlanParams, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return dommig.PlanParams{}, fmt.Errorf("read plan %s: %w", path, err)
	}
	var p dommig.PlanParams
	if err := yaml.Unmarshal(data, &p); err != nil {
		return dommig.PlanParams{}, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return p, nil
}

// applyPlanFlags overlays explicitly set flags onto p. Without a plan file
// the count tolerance and the sample match threshold must be given as flags.
func applyPlanFlags(p dommig.PlanParams, flags *pflag.FlagSet, fromFile bool) (dommig.PlanParams, error) {
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("source", &p.Source)
	str("target", &p.Target)
	str("alias", &p.Alias)
	str("snapshot-repo", &p.SnapshotRepository)

	for _, name := range []string{"count-tolerance", "sample-match-threshold"} {
		if !flags.Changed(name) {
			if !fromFile {
				return p, fmt.Errorf("--%s is required (no default)", name)
			}
			continue
		}
		v, _ := flags.GetFloat64(name)
		if name == "count-tolerance" {
			p.CountTolerance = &v
		} else {
			p.SampleMatchThreshold = &v
		}
	}

	if flags.Changed("sample-size") || p.SampleSize == 0 {
		p.SampleSize, _ = flags.GetInt("sample-size")
	}
	if flags.Changed("sample-seed") {
		p.SampleSeed, _ = flags.GetInt64("sample-seed")
	}
	if flags.Changed("allow-replace") {
		p.AllowReplace, _ = flags.GetBool("allow-replace")
	}

	if flags.Changed("vector-field") {
		defs, _ := flags.GetStringArray("vector-field")
		p.VectorFields = p.VectorFields[:0]
		for _, def := range defs {
			vf, err := parseVectorField(def)
			if err != nil {
				return p, err
			}
			p.VectorFields = append(p.VectorFields, vf)
		}
	}
	return p, nil
}

// parseVectorField parses name:dimension[:space_type[:engine[:m[:ef_construction]]]].
func parseVectorField(def string) (index.VectorField, error) {
	parts := strings.Split(def, ":")
	if len(parts) < 2 || len(parts) > 6 {
		return index.VectorField{}, fmt.Errorf(
			"vector field %q: want name:dimension[:space_type[:engine[:m[:ef_construction]]]]", def)
	}
	dim, err := strconv.Atoi(parts[1])
	if err != nil {
		return index.VectorField{}, fmt.Errorf("vector field %q: dimension: %w", def, err)
	}
	vf := index.VectorField{Name: parts[0], Dimension: dim, SpaceType: index.SpaceCosine}
	if len(parts) > 2 && parts[2] != "" {
		vf.SpaceType = index.SpaceType(parts[2])
	}
	if len(parts) > 3 && parts[3] != "" {
		vf.Engine = index.Engine(parts[3])
		vf.Method = "hnsw"
	}
	if len(parts) > 4 {
		if vf.M, err = strconv.Atoi(parts[4]); err != nil {
			return index.VectorField{}, fmt.Errorf("vector field %q: m: %w", def, err)
		}
	}
	if len(parts) > 5 {
		if vf.EFConstruction, err = strconv.Atoi(parts[5]); err != nil {
			return index.VectorField{}, fmt.Errorf("vector field %q: ef_construction: %w", def, err)
		}
	}
	return vf, nil
}
