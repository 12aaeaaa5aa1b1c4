package repomd

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// ParseFilelists streams filelists.xml and invokes emit once per package
// block. It does no matching against primary.xml packages; the caller
// does that. This is a supplemental ingest path: primary.xml indexing
// works without ever calling this.
func ParseFilelists(r io.Reader, emit func(RawFilelistsPackage) error) error {
	dec := xml.NewDecoder(r)

	var (
		pkg          *RawFilelistsPackage
		text         []byte
		currentType  FileType
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rpmerr.New(rpmerr.ParseError, "filelists.xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "package":
				p := &RawFilelistsPackage{}
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "name":
						p.Name = a.Value
					case "arch":
						p.Arch = a.Value
					}
				}
				pkg = p
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
					}
				}
			case "file":
				text = text[:0]
				currentType = FileTypeFile
				for _, a := range t.Attr {
					if a.Name.Local == "type" {
						switch a.Value {
						case "dir":
							currentType = FileTypeDir
						case "ghost":
							currentType = FileTypeGhost
						}
					}
				}
			}

		case xml.CharData:
			text = append(text, t...)

		case xml.EndElement:
			switch t.Name.Local {
			case "package":
				if pkg != nil {
					if err := emit(*pkg); err != nil {
						return err
					}
					pkg = nil
				}
			case "file":
				if pkg != nil && len(text) > 0 {
					pkg.Files = append(pkg.Files, RawFileEntry{Path: string(text), FileType: currentType})
				}
				text = text[:0]
			}
		}
	}

	return nil
}
