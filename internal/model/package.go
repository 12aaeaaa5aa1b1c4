// Package model holds the canonical entities the core operates on
// (Package, Dependency, SyncState) and the relational schema they're
// persisted under.
package model

import "strconv"

// Package is the primary entity: a specific build of a named RPM in one
// repository. The triple (Name, Arch, Repo) is unique; Epoch/Version/Release
// together with that triple identify a specific build.
type Package struct {
	ID          int64
	Name        string
	Epoch       *int64 // nil means "absent", coerced to 0 for ordering
	Version     string
	Release     string
	Arch        string
	Summary     string
	Description string
	License     string
	VCS         string
	Repo        string
	Requires    []Dependency
	Provides    []Dependency
}

// EpochOrZero returns the epoch for ordering comparisons, treating an
// absent epoch as 0 per spec.
func (p *Package) EpochOrZero() int64 {
	if p.Epoch == nil {
		return 0
	}
	return *p.Epoch
}

// FullVersion renders epoch:version-release, omitting the epoch prefix
// when absent.
func (p *Package) FullVersion() string {
	v := ""
	if p.Epoch != nil {
		v += strconv.FormatInt(*p.Epoch, 10) + ":"
	}
	v += p.Version + "-" + p.Release
	return v
}

// DepKind distinguishes requires from provides rows.
type DepKind string

const (
	Requires DepKind = "requires"
	Provides DepKind = "provides"
)

// DepFlag is the dependency comparison flag, restricted to the fixed
// enumeration the normalizer passes dependency flag strings through.
type DepFlag string

const (
	FlagEQ          DepFlag = "EQ"
	FlagLT          DepFlag = "LT"
	FlagLE          DepFlag = "LE"
	FlagGT          DepFlag = "GT"
	FlagGE          DepFlag = "GE"
	FlagUnspecified DepFlag = ""
)

// Dependency is a directed fact attached to a Package: either a requires
// or a provides row naming a target and, optionally, a version bound.
type Dependency struct {
	ID      int64
	PkgID   int64
	Kind    DepKind
	Name    string
	Flag    DepFlag
	Version string // pre-composed epoch:version-release, empty if unversioned
}
