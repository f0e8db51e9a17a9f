package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePackName(t *testing.T) {
	tests := []struct {
		name    string
		version string
		fabric  bool
	}{
		{"Minecraft-Mod-Language-Modpack.zip", "1-12-2", false},
		{"Minecraft-Mod-Language-Modpack-1-16.zip", "1-16", false},
		{"Minecraft-Mod-Language-Modpack-1-20-1.zip", "1-20-1", false},
		{"Minecraft-Mod-Language-Modpack-1-20-1-Fabric.zip", "1-20-1", true},
	}

	for _, tt := range tests {
		info, err := ParsePackName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.version, info.Version, tt.name)
		assert.Equal(t, tt.fabric, info.Fabric, tt.name)
	}
}

func TestParsePackNameRejectsUnknownShapes(t *testing.T) {
	for _, name := range []string{
		"Minecraft-Mod-Language-Modpack-Fabric.zip",
		"Minecraft-Mod-Language-Modpack-2-0.zip",
		"SomeOtherArchive-1-20.zip",
		"Minecraft-Mod-Language-Modpack-1-20-1.tar.gz",
	} {
		_, err := ParsePackName(name)
		assert.Error(t, err, name)
	}
}

func TestDigestName(t *testing.T) {
	tests := []struct {
		pack   string
		digest string
	}{
		{"Minecraft-Mod-Language-Modpack.zip", "1.12.2.md5"},
		{"Minecraft-Mod-Language-Modpack-1-18-2.zip", "1.18.2.md5"},
		{"Minecraft-Mod-Language-Modpack-1-20-1-Fabric.zip", "1.20.1-fabric.md5"},
	}

	for _, tt := range tests {
		info, err := ParsePackName(tt.pack)
		require.NoError(t, err)
		assert.Equal(t, tt.digest, info.DigestName())
	}
}

func TestIsPackName(t *testing.T) {
	assert.True(t, IsPackName("Minecraft-Mod-Language-Modpack-1-19.zip"))
	assert.True(t, IsPackName("Minecraft-Mod-Language-Modpack.zip"))
	assert.False(t, IsPackName("Minecraft-Mod-Language-Modpack-1-19.md5"))
	assert.False(t, IsPackName("random.zip"))
}

func TestValidDigest(t *testing.T) {
	assert.True(t, ValidDigest("0123456789abcdef0123456789abcdef"))
	assert.False(t, ValidDigest("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, ValidDigest("abc"))
	assert.False(t, ValidDigest(""))
}
