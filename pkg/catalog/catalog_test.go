package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/firmasegura/certifications-backend/pkg/enums"
)

func TestDefaultCatalogContents(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	snap := c.Snapshot()
	require.Len(t, snap.Cities, 21)
	require.Len(t, snap.Provinces, 24)
	require.Len(t, snap.Periods, 3)

	require.True(t, c.HasCity("Quito"))
	require.True(t, c.HasCity("Durán"))
	require.False(t, c.HasCity("Lima"))
	require.True(t, c.HasProvince("Santo Domingo de los Tsáchilas"))
	require.False(t, c.HasProvince("Antioquia"))
	require.True(t, c.HasPeriod("2_YEARS"))
	require.False(t, c.HasPeriod("5_YEARS"))

	require.Equal(t, "2 Años", c.PeriodLabel("2_YEARS"))
	require.Equal(t, "En Revisión", c.StatusLabel(enums.CertificationStatusInReview))
	require.Equal(t, "Representante Legal", c.ApplicationTypeLabel(enums.ApplicationTypeLegalRepresentative))
}

func TestSnapshotIsACopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Cities[0] = "Atlantis"
	snap.Statuses["draft"] = "changed"

	require.True(t, c.HasCity("Quito"))
	require.Equal(t, "Borrador", c.StatusLabel(enums.CertificationStatusDraft))
}

func TestLoadOverrideFile(t *testing.T) {
	raw := []byte(`
cities: [Quito]
provinces: [Pichincha]
periods:
  - code: 1_YEAR
    label: One year
statuses: {draft: d, pending: p, in_review: r, approved: a, rejected: x, completed: c}
`)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.True(t, c.HasCity("Quito"))
	require.False(t, c.HasCity("Guayaquil"))
	require.Equal(t, "One year", c.PeriodLabel("1_YEAR"))
}

func TestParseRejectsIncompleteCatalog(t *testing.T) {
	_, err := Parse([]byte("cities: [Quito]\nprovinces: [Pichincha]\nperiods: [{code: 1_YEAR}]\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
