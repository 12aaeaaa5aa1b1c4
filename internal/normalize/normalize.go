// Package normalize turns the raw records internal/repomd streams out of
// primary.xml/filelists.xml into the canonical entities internal/model
// and the rest of the core operate on.
package normalize

import (
	"strings"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/repomd"
)

// MaxDescriptionChars bounds the description text folded into the
// embedding document; longer descriptions are truncated at a rune
// boundary.
const MaxDescriptionChars = 400

// MaxDepsCount bounds how many requires/provides entries are folded into
// the embedding document, so a package with hundreds of dependencies
// doesn't drown out its name/summary/description.
const MaxDepsCount = 20

// Package converts a raw primary.xml package record plus the repository
// it came from into a canonical model.Package. Requires/provides are
// carried over with their flag normalized to the fixed DepFlag
// enumeration; an unrecognized flag string is passed through as-is so it
// round-trips even if rpm introduces a new one.
func Package(raw repomd.RawPackage, repoName string) model.Package {
	pkg := model.Package{
		Name:        raw.Name,
		Epoch:       raw.Epoch,
		Version:     raw.Version,
		Release:     raw.Release,
		Arch:        raw.Arch,
		Summary:     raw.Summary,
		Description: raw.Description,
		License:     raw.License,
		VCS:         raw.VCS,
		Repo:        repoName,
	}
	pkg.Requires = make([]model.Dependency, 0, len(raw.Requires))
	for _, d := range raw.Requires {
		pkg.Requires = append(pkg.Requires, dependency(d, model.Requires))
	}
	pkg.Provides = make([]model.Dependency, 0, len(raw.Provides))
	for _, d := range raw.Provides {
		pkg.Provides = append(pkg.Provides, dependency(d, model.Provides))
	}
	return pkg
}

func dependency(raw repomd.RawDependency, kind model.DepKind) model.Dependency {
	return model.Dependency{
		Kind:    kind,
		Name:    raw.Name,
		Flag:    model.DepFlag(raw.Flags),
		Version: composeVersion(raw.Epoch, raw.Version, raw.Release),
	}
}

// composeVersion folds epoch/version/release into the single
// pre-composed string Dependency.Version carries. The epoch prefix is
// left out when the epoch is absent or "0", and the "-release" suffix
// when the release is absent. An unversioned dependency (no ver
// attribute) composes to the empty string.
func composeVersion(epoch, version, release string) string {
	if version == "" {
		return ""
	}
	var b strings.Builder
	if epoch != "" && epoch != "0" {
		b.WriteString(epoch)
		b.WriteByte(':')
	}
	b.WriteString(version)
	if release != "" {
		b.WriteByte('-')
		b.WriteString(release)
	}
	return b.String()
}

// Files converts a raw filelists.xml package's file entries into the
// canonical model.FileEntry rows ready for the files table. The caller
// is responsible for matching the filelists record to the primary.xml
// package it belongs to (ingest.ApplyFilelists matches on name and
// arch) and supplying the resulting pkg_id.
func Files(raw repomd.RawFilelistsPackage) []model.FileEntry {
	files := make([]model.FileEntry, len(raw.Files))
	for i, f := range raw.Files {
		files[i] = model.FileEntry{Path: f.Path, Type: model.FileType(f.FileType)}
	}
	return files
}

// BuildEmbeddingText renders the text an embedding model sees for a
// package. The name is repeated (once under "Package:", once under
// "Name:") because short, heavily-abbreviated RPM names otherwise get diluted by
// the longer summary/description in the resulting vector. Description is
// truncated to MaxDescriptionChars; requires/provides are capped at
// MaxDepsCount entries each so a dependency-heavy package doesn't drown
// out its own identity.
func BuildEmbeddingText(pkg model.Package) string {
	var b strings.Builder
	b.WriteString("Package: ")
	b.WriteString(pkg.Name)
	b.WriteString("\nName: ")
	b.WriteString(pkg.Name)
	b.WriteString("\nArchitecture: ")
	b.WriteString(pkg.Arch)
	if pkg.Summary != "" {
		b.WriteString("\nSummary: ")
		b.WriteString(pkg.Summary)
	}
	if pkg.Description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(truncateRunes(pkg.Description, MaxDescriptionChars))
	}
	if pkg.License != "" {
		b.WriteString("\nLicense: ")
		b.WriteString(pkg.License)
	}
	writeDeps(&b, "Provides", pkg.Provides)
	writeDeps(&b, "Requires", pkg.Requires)
	return b.String()
}

func writeDeps(b *strings.Builder, label string, deps []model.Dependency) {
	if len(deps) == 0 {
		return
	}
	n := len(deps)
	if n > MaxDepsCount {
		n = MaxDepsCount
	}
	b.WriteString("\n")
	b.WriteString(label)
	b.WriteString(": ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(deps[i].Name)
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
