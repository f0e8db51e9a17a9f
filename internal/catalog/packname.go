package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	packPrefix = "Minecraft-Mod-Language-Modpack"

	// legacyPackName is the 1.12.2 pack, published without a version tag.
	legacyPackName   = packPrefix + ".zip"
	legacyVersion    = "1-12-2"
	legacyDigestName = "1.12.2.md5"
)

var (
	packNamePattern = regexp.MustCompile(`^Minecraft-Mod-Language-Modpack-(1-\d+(?:-\d+)?)(-Fabric)?\.zip$`)
	md5Pattern      = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

// PackInfo is the version/loader information encoded in a pack filename.
type PackInfo struct {
	Version string // dash-separated, e.g. "1-20-1"
	Fabric  bool
}

// IsPackName reports whether a filename looks like a distributable pack
// archive at all. Used to skip unrelated links in the upstream listing.
func IsPackName(name string) bool {
	return strings.HasSuffix(name, ".zip") && strings.HasPrefix(name, packPrefix)
}

// ParsePackName extracts the version and loader tags from a pack filename.
func ParsePackName(name string) (*PackInfo, error) {
	if name == legacyPackName {
		return &PackInfo{Version: legacyVersion}, nil
	}

	m := packNamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("unrecognized pack filename %q", name)
	}

	return &PackInfo{Version: m[1], Fabric: m[2] != ""}, nil
}

// DigestName returns the filename of the digest sidecar published next to
// the archive, e.g. "1.20.1-fabric.md5".
func (p *PackInfo) DigestName() string {
	if p.Version == legacyVersion {
		return legacyDigestName
	}

	name := strings.ReplaceAll(p.Version, "-", ".")
	if p.Fabric {
		name += "-fabric"
	}
	return name + ".md5"
}

// ValidDigest reports whether s is a well-formed lowercase hex MD5 digest.
func ValidDigest(s string) bool {
	return md5Pattern.MatchString(s)
}
