package repomd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrimarySimplePackage(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<metadata xmlns="http://linux.duke.edu/metadata/common">
	  <package>
	    <name>test-package</name>
	    <arch>x86_64</arch>
	    <version epoch="0" ver="1.0.0" rel="1"/>
	    <location href="x86_64/test-package-1.0.0-1.x86_64.rpm"/>
	    <summary>Test package</summary>
	    <description>A test package for unit testing</description>
	  </package>
	</metadata>`

	var packages []RawPackage
	err := ParsePrimary(strings.NewReader(xml), func(p RawPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "test-package", packages[0].Name)
	assert.Equal(t, "1.0.0", packages[0].Version)
	assert.Equal(t, "x86_64/test-package-1.0.0-1.x86_64.rpm", packages[0].LocationHref)
}

func TestParsePrimaryRequiresAndProvides(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<metadata xmlns="http://linux.duke.edu/metadata/common"
	          xmlns:rpm="http://linux.duke.edu/metadata/rpm">
	  <package>
	    <name>openssl</name>
	    <arch>x86_64</arch>
	    <version epoch="1" ver="3.0.0" rel="1.el9"/>
	    <summary>Cryptography toolkit</summary>
	    <description>OpenSSL library</description>
	    <rpm:provides>
	      <rpm:entry name="libssl.so.3()(64bit)"/>
	      <rpm:entry name="openssl" flags="EQ" ver="3.0.0" rel="1.el9" epoch="1"/>
	    </rpm:provides>
	    <rpm:requires>
	      <rpm:entry name="glibc" flags="GE" ver="2.34"/>
	      <rpm:entry name="libcrypto.so.3()(64bit)"/>
	    </rpm:requires>
	  </package>
	</metadata>`

	var packages []RawPackage
	err := ParsePrimary(strings.NewReader(xml), func(p RawPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, packages, 1)
	pkg := packages[0]
	assert.Equal(t, "openssl", pkg.Name)

	require.Len(t, pkg.Provides, 2)
	assert.Equal(t, "libssl.so.3()(64bit)", pkg.Provides[0].Name)
	assert.Equal(t, "openssl", pkg.Provides[1].Name)
	assert.Equal(t, "EQ", pkg.Provides[1].Flags)

	require.Len(t, pkg.Requires, 2)
	assert.Equal(t, "glibc", pkg.Requires[0].Name)
	assert.Equal(t, "GE", pkg.Requires[0].Flags)
	assert.Equal(t, "libcrypto.so.3()(64bit)", pkg.Requires[1].Name)
}

func TestParsePrimaryLicenseAndVCS(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<metadata xmlns="http://linux.duke.edu/metadata/common"
	          xmlns:rpm="http://linux.duke.edu/metadata/rpm">
	  <package>
	    <name>bash</name>
	    <arch>x86_64</arch>
	    <version epoch="0" ver="5.2.15" rel="3.el9" vcs="https://github.com/bminor/bash#devel"/>
	    <summary>The GNU Bourne Again shell</summary>
	    <description>The GNU Bourne Again shell</description>
	    <rpm:license>GPLv3+</rpm:license>
	  </package>
	</metadata>`

	var packages []RawPackage
	err := ParsePrimary(strings.NewReader(xml), func(p RawPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	pkg := packages[0]
	assert.Equal(t, "bash", pkg.Name)
	assert.Equal(t, "GPLv3+", pkg.License)
	assert.Equal(t, "https://github.com/bminor/bash#devel", pkg.VCS)
}

func TestParsePrimaryNoLicenseNoVCS(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<metadata xmlns="http://linux.duke.edu/metadata/common">
	  <package>
	    <name>minimal</name>
	    <arch>noarch</arch>
	    <version epoch="0" ver="1.0" rel="1"/>
	    <summary>Minimal package</summary>
	    <description>No license or vcs</description>
	  </package>
	</metadata>`

	var packages []RawPackage
	err := ParsePrimary(strings.NewReader(xml), func(p RawPackage) error {
		packages = append(packages, p)
		return nil
	})
	require.NoError(t, err)
	pkg := packages[0]
	assert.Empty(t, pkg.License)
	assert.Empty(t, pkg.VCS)
}

func TestParsePrimaryMissingNameIsParseError(t *testing.T) {
	xml := `<?xml version="1.0"?>
	<metadata xmlns="http://linux.duke.edu/metadata/common">
	  <package>
	    <arch>x86_64</arch>
	    <version epoch="0" ver="1.0" rel="1"/>
	  </package>
	</metadata>`

	err := ParsePrimary(strings.NewReader(xml), func(RawPackage) error { return nil })
	require.Error(t, err)
}

func TestParsePrimaryMalformedXML(t *testing.T) {
	err := ParsePrimary(strings.NewReader("<metadata><package><name>oops</package></metadata>"), func(RawPackage) error { return nil })
	require.Error(t, err)
}
