package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpanel/panel/internal/models"
)

func TestImportRoundTrip(t *testing.T) {
	orig := models.DefaultServerConfig("daily")
	orig.MOTD = "Round trip"
	orig.Port = 25599
	orig.MaxPlayers = 12
	orig.ServerType = models.ServerTypePaper
	orig.Version = "1.21.1"
	orig.DockerImage = "java21"
	orig.AllowFlight = true
	orig.StopDelay = 90

	data, err := Render(&orig)
	require.NoError(t, err)

	imported, err := Import(data)
	require.NoError(t, err)

	assert.Equal(t, ImportedConfigID, imported.ID)
	assert.True(t, imported.Active)
	assert.Equal(t, "Round trip", imported.MOTD)
	assert.Equal(t, 25599, imported.Port)
	assert.Equal(t, 12, imported.MaxPlayers)
	assert.Equal(t, models.ServerTypePaper, imported.ServerType)
	assert.Equal(t, "1.21.1", imported.Version)
	assert.Equal(t, "java21", imported.DockerImage)
	assert.True(t, imported.AllowFlight)
	assert.Equal(t, 90, imported.StopDelay)
}

func TestImportRecoversCurseForgeMethod(t *testing.T) {
	orig := models.DefaultServerConfig("pack")
	orig.ServerType = models.ServerTypeCurseForge
	orig.CFMethod = models.CFMethodSlug
	orig.CFSlug = "atm9"
	orig.CFAPIKey = "key"

	data, err := Render(&orig)
	require.NoError(t, err)

	imported, err := Import(data)
	require.NoError(t, err)

	assert.Equal(t, models.ServerTypeCurseForge, imported.ServerType)
	assert.Equal(t, models.CFMethodSlug, imported.CFMethod)
	assert.Equal(t, "atm9", imported.CFSlug)
	assert.Equal(t, "key", imported.CFAPIKey)
}

func TestImportPreservesUnknownEnvKeys(t *testing.T) {
	manifest := []byte(`services:
  mc:
    image: itzg/minecraft-server:latest
    ports:
      - "25565:25565"
    environment:
      EULA: "TRUE"
      MOTD: Custom
      SOME_PLUGIN_FLAG: "yes"
      ANOTHER: value
`)

	imported, err := Import(manifest)
	require.NoError(t, err)

	assert.Equal(t, "Custom", imported.MOTD)
	// Unknown keys survive, sorted, as custom env lines
	assert.Equal(t, "ANOTHER=value\nSOME_PLUGIN_FLAG=yes", imported.ExtraEnvVars)
}

func TestImportRejectsManifestWithoutGameService(t *testing.T) {
	_, err := Import([]byte("services:\n  web:\n    image: nginx\n"))
	assert.Error(t, err)
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := Import([]byte("{{{not yaml"))
	assert.Error(t, err)
}

func TestImportFallsBackToDefaults(t *testing.T) {
	// A minimal manifest: every missing field keeps its default
	imported, err := Import([]byte("services:\n  mc:\n    image: itzg/minecraft-server:latest\n"))
	require.NoError(t, err)

	defaults := models.DefaultServerConfig(ImportedConfigID)
	assert.Equal(t, defaults.Port, imported.Port)
	assert.Equal(t, defaults.MOTD, imported.MOTD)
	assert.Equal(t, defaults.ServerType, imported.ServerType)
	assert.Equal(t, defaults.RestartPolicy, imported.RestartPolicy)
}
