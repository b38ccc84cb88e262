package repository

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../db/migrations"

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}
	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if byVersion[match[1]] == nil {
			byVersion[match[1]] = map[string]bool{}
		}
		byVersion[match[1]][match[2]] = true
	}

	require.NotEmpty(t, byVersion)
	for version, dirs := range byVersion {
		assert.True(t, dirs["up"] && dirs["down"], "version %s needs up and down files", version)
	}
}

func TestUpMigrationsAreOrdered(t *testing.T) {
	files, err := upMigrations(migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	assert.Equal(t, "0001_init.up.sql", filepath.Base(files[0]))
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
}

func TestInitMigrationGuardsInvariants(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(migrationsDir, "0001_init.up.sql"))
	require.NoError(t, err)
	sql := string(contents)

	assert.Contains(t, sql, "CHECK (member_count >= 0 AND member_count <= max_members)")
	assert.Contains(t, sql, "CHECK (kind <> 'one-on-one' OR max_members = 2)")
	assert.Contains(t, sql, "join_requests_one_pending_idx")
	assert.Contains(t, sql, "WHERE status = 'pending'")
	assert.Contains(t, sql, "memberships_activity_user_key UNIQUE (activity_id, user_id)")
}
