package repomd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexFindsPrimary(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<repomd xmlns="http://linux.duke.edu/metadata/repo">
	  <data type="filelists">
	    <checksum type="sha256">deadbeef</checksum>
	    <location href="repodata/filelists.xml.gz"/>
	  </data>
	  <data type="primary">
	    <checksum type="sha256">abc123</checksum>
	    <location href="repodata/primary.xml.gz"/>
	  </data>
	</repomd>`

	entries, err := ParseIndex(strings.NewReader(xml))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	primary, ok := PrimaryEntryOf(entries)
	require.True(t, ok)
	assert.Equal(t, "repodata/primary.xml.gz", primary.LocationHref)
	assert.Equal(t, "abc123", primary.ChecksumValue)
	assert.Equal(t, "sha256", primary.ChecksumType)
}

func TestParseIndexNoPrimary(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<repomd xmlns="http://linux.duke.edu/metadata/repo">
	  <data type="filelists">
	    <checksum type="sha256">deadbeef</checksum>
	    <location href="repodata/filelists.xml.gz"/>
	  </data>
	</repomd>`

	entries, err := ParseIndex(strings.NewReader(xml))
	require.NoError(t, err)
	_, ok := PrimaryEntryOf(entries)
	assert.False(t, ok)
}
