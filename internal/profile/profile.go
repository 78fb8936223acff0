// Package profile loads named mining profiles from HCL files. A
// profile bundles the target, tracing policy, and sample sources for
// one mining run so invocations stay reproducible across sessions.
package profile

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Policy names accepted in profiles and on the command line.
const (
	PolicyUnscoped   = "unscoped"
	PolicyScoped     = "scoped"
	PolicyProvenance = "provenance"
)

// File is the root of a grist.hcl document.
type File struct {
	Profiles []Profile `hcl:"profile,block"`
}

// Profile configures one mining run.
type Profile struct {
	Name string `hcl:"name,label"`

	// Target names a registered target, e.g. "url" or "go".
	Target string `hcl:"target"`

	// Policy selects the tracing policy. Defaults to provenance.
	Policy string `hcl:"policy,optional"`

	// MinLen overrides the policy's minimum value length when > 0.
	MinLen int `hcl:"min_len,optional"`

	// Samples lists sample sources: a file holds one sample per
	// line, a directory holds one sample per file.
	Samples []string `hcl:"samples,optional"`

	// Selectors maps variable names to JSONPath expressions for the
	// json target. Other targets reject a non-empty map.
	Selectors map[string]string `hcl:"selectors,optional"`

	// Output is where the mined grammar JSON lands. Empty means
	// stdout, unless the mine command overrides it.
	Output string `hcl:"output,optional"`
}

// Load reads and decodes an HCL profile file.
func Load(path string) (*File, error) {
	var f File
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Parse decodes HCL profile source held in memory. The filename only
// labels diagnostics and picks the syntax, so callers pass something
// ending in .hcl.
func Parse(filename string, src []byte) (*File, error) {
	var f File
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Find returns the named profile.
func (f *File) Find(name string) (Profile, bool) {
	for _, p := range f.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Names lists the profile names, sorted.
func (f *File) Names() []string {
	out := make([]string, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

func (f *File) validate() error {
	seen := make(map[string]bool, len(f.Profiles))
	for i := range f.Profiles {
		p := &f.Profiles[i]
		if seen[p.Name] {
			return fmt.Errorf("profile: duplicate profile %q", p.Name)
		}
		seen[p.Name] = true

		if p.Target == "" {
			return fmt.Errorf("profile %q: target is required", p.Name)
		}
		if p.Policy == "" {
			p.Policy = PolicyProvenance
		}
		switch p.Policy {
		case PolicyUnscoped, PolicyScoped, PolicyProvenance:
		default:
			return fmt.Errorf("profile %q: unknown policy %q", p.Name, p.Policy)
		}
		if p.MinLen < 0 {
			return fmt.Errorf("profile %q: min_len must not be negative", p.Name)
		}
		if len(p.Selectors) > 0 && p.Target != "json" {
			return fmt.Errorf("profile %q: selectors require the json target", p.Name)
		}
	}
	return nil
}
