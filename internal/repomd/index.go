package repomd

import (
	"encoding/xml"
	"io"

	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// ParseIndex streams repomd.xml and returns every <data> entry. Callers
// pick out the entry whose Type is "primary".
func ParseIndex(r io.Reader) ([]PrimaryEntry, error) {
	dec := xml.NewDecoder(r)

	var (
		entries []PrimaryEntry
		cur     *PrimaryEntry
		text    []byte
		inData  bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rpmerr.New(rpmerr.ParseError, "repomd.xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "data":
				e := &PrimaryEntry{}
				for _, a := range t.Attr {
					if a.Name.Local == "type" {
						e.Type = a.Value
					}
				}
				cur = e
				inData = true
			case "location":
				if cur == nil {
					continue
				}
				for _, a := range t.Attr {
					if a.Name.Local == "href" {
						cur.LocationHref = a.Value
					}
				}
			case "checksum":
				text = text[:0]
				if cur != nil {
					for _, a := range t.Attr {
						if a.Name.Local == "type" {
							cur.ChecksumType = a.Value
						}
					}
				}
			}

		case xml.CharData:
			if inData {
				text = append(text, t...)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "checksum":
				if cur != nil {
					cur.ChecksumValue = string(text)
				}
				text = text[:0]
			case "data":
				if cur != nil {
					entries = append(entries, *cur)
				}
				cur = nil
				inData = false
			}
		}
	}

	return entries, nil
}

// PrimaryEntryOf returns the "primary" data entry from a parsed repomd
// index, or ok=false if the index carries none.
func PrimaryEntryOf(entries []PrimaryEntry) (PrimaryEntry, bool) {
	return entryOfType(entries, "primary")
}

// FilelistsEntryOf returns the "filelists" data entry from a parsed
// repomd index, or ok=false if the repository doesn't publish one.
func FilelistsEntryOf(entries []PrimaryEntry) (PrimaryEntry, bool) {
	return entryOfType(entries, "filelists")
}

func entryOfType(entries []PrimaryEntry, typ string) (PrimaryEntry, bool) {
	for _, e := range entries {
		if e.Type == typ {
			return e, true
		}
	}
	return PrimaryEntry{}, false
}
