package repomd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// depSection tracks which dependency block the parser is currently inside,
// mirroring the original implementation's small state enum.
type depSection int

const (
	depNone depSection = iota
	depRequires
	depProvides
)

// ParsePrimary streams primary.xml and invokes emit once per fully parsed
// package record. The full catalog is never materialized: at most one
// RawPackage plus fixed decoder state is held at a time.
func ParsePrimary(r io.Reader, emit func(RawPackage) error) error {
	dec := xml.NewDecoder(r)

	var (
		pkg        *RawPackage
		text       []byte
		inElement  string
		section    = depNone
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rpmerr.New(rpmerr.ParseError, "primary.xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			inElement = t.Name.Local
			switch t.Name.Local {
			case "package":
				pkg = &RawPackage{}
			case "name", "arch", "summary", "description", "license":
				text = text[:0]
			case "version":
				if pkg == nil {
					continue
				}
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "epoch":
						if v, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
							pkg.Epoch = &v
						}
					case "ver":
						pkg.Version = a.Value
					case "rel":
						pkg.Release = a.Value
					case "vcs":
						pkg.VCS = a.Value
					}
				}
			case "location":
				if pkg == nil {
					continue
				}
				for _, a := range t.Attr {
					if a.Name.Local == "href" {
						pkg.LocationHref = a.Value
					}
				}
			case "requires":
				section = depRequires
			case "provides":
				section = depProvides
			case "entry":
				if pkg == nil {
					continue
				}
				dep := RawDependency{}
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "name":
						dep.Name = a.Value
					case "flags":
						dep.Flags = a.Value
					case "epoch":
						dep.Epoch = a.Value
					case "ver":
						dep.Version = a.Value
					case "rel":
						dep.Release = a.Value
					}
				}
				if dep.Name != "" {
					if section == depProvides {
						pkg.Provides = append(pkg.Provides, dep)
					} else {
						pkg.Requires = append(pkg.Requires, dep)
					}
				}
			}

		case xml.CharData:
			text = append(text, t...)

		case xml.EndElement:
			switch t.Name.Local {
			case "package":
				if pkg != nil {
					if pkg.Name == "" || pkg.Arch == "" {
						return rpmerr.New(rpmerr.ParseError, pkg.Name, fmt.Errorf("package missing required name/arch attribute"))
					}
					if err := emit(*pkg); err != nil {
						return err
					}
					pkg = nil
				}
			case "name":
				if pkg != nil && inElement == "name" {
					pkg.Name = string(text)
				}
			case "arch":
				if pkg != nil {
					pkg.Arch = string(text)
				}
			case "summary":
				if pkg != nil {
					pkg.Summary = string(text)
				}
			case "description":
				if pkg != nil {
					pkg.Description = string(text)
				}
			case "license":
				if pkg != nil && len(text) > 0 {
					pkg.License = string(text)
				}
			case "requires", "provides":
				section = depNone
			}
			text = text[:0]
		}
	}

	return nil
}
