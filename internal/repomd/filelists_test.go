package repomd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilelistsBasic(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<filelists xmlns="http://linux.duke.edu/metadata/filelists" packages="1">
	  <package pkgid="abc123" name="bash" arch="x86_64">
	    <version epoch="0" ver="5.2" rel="1.el9"/>
	    <file>/usr/bin/bash</file>
	    <file type="dir">/etc/bash</file>
	    <file type="ghost">/var/log/bash.log</file>
	  </package>
	</filelists>`

	var packages []RawFilelistsPackage
	err := ParseFilelists(strings.NewReader(xml), func(p RawFilelistsPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, packages, 1)

	pkg := packages[0]
	assert.Equal(t, "bash", pkg.Name)
	assert.Equal(t, "x86_64", pkg.Arch)
	require.NotNil(t, pkg.Epoch)
	assert.EqualValues(t, 0, *pkg.Epoch)
	assert.Equal(t, "5.2", pkg.Version)
	assert.Equal(t, "1.el9", pkg.Release)
	require.Len(t, pkg.Files, 3)

	assert.Equal(t, "/usr/bin/bash", pkg.Files[0].Path)
	assert.Equal(t, FileTypeFile, pkg.Files[0].FileType)
	assert.Equal(t, "/etc/bash", pkg.Files[1].Path)
	assert.Equal(t, FileTypeDir, pkg.Files[1].FileType)
	assert.Equal(t, "/var/log/bash.log", pkg.Files[2].Path)
	assert.Equal(t, FileTypeGhost, pkg.Files[2].FileType)
}

func TestParseFilelistsMultiplePackages(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<filelists xmlns="http://linux.duke.edu/metadata/filelists" packages="2">
	  <package pkgid="aaa" name="pkg-a" arch="x86_64">
	    <version epoch="0" ver="1.0" rel="1"/>
	    <file>/usr/bin/a</file>
	  </package>
	  <package pkgid="bbb" name="pkg-b" arch="noarch">
	    <version epoch="1" ver="2.0" rel="3"/>
	    <file>/usr/lib/b.so</file>
	    <file>/usr/lib/b.so.1</file>
	  </package>
	</filelists>`

	var packages []RawFilelistsPackage
	err := ParseFilelists(strings.NewReader(xml), func(p RawFilelistsPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "pkg-a", packages[0].Name)
	assert.Len(t, packages[0].Files, 1)
	assert.Equal(t, "pkg-b", packages[1].Name)
	require.NotNil(t, packages[1].Epoch)
	assert.EqualValues(t, 1, *packages[1].Epoch)
	assert.Len(t, packages[1].Files, 2)
}

func TestParseFilelistsEmpty(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<filelists xmlns="http://linux.duke.edu/metadata/filelists" packages="0">
	</filelists>`

	var packages []RawFilelistsPackage
	err := ParseFilelists(strings.NewReader(xml), func(p RawFilelistsPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, packages)
}

func TestParseFilelistsNoTypeDefaultsToFile(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<filelists xmlns="http://linux.duke.edu/metadata/filelists" packages="1">
	  <package pkgid="abc" name="test" arch="x86_64">
	    <version epoch="0" ver="1.0" rel="1"/>
	    <file>/usr/bin/test</file>
	  </package>
	</filelists>`

	var packages []RawFilelistsPackage
	err := ParseFilelists(strings.NewReader(xml), func(p RawFilelistsPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, FileTypeFile, packages[0].Files[0].FileType)
}
