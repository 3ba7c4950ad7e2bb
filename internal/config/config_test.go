package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zhitang/backend-go/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ZHITANG_DATABASE_URL", "postgres://u:p@localhost:5432/zhitang?sslmode=disable")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, "7426720361753903141", cfg.TencentTTS.VoiceType)
	assert.Equal(t, 300, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, 24, cfg.Scheduler.HoursBack)
	assert.Equal(t, 60, cfg.Scheduler.DebounceMinutes)
	assert.Equal(t, 30, cfg.Cache.SweepOlderThanDays)
	assert.Equal(t, "./knowledge_base", cfg.Knowledge.Dir)
	assert.True(t, cfg.Knowledge.LoadFromDB)
	assert.Equal(t, "log", cfg.Agent.Mode)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("ZHITANG_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://legacy")
	t.Setenv("ZHITANG_SCHEDULER_INTERVAL_SECONDS", "120")
	t.Setenv("ZHITANG_TENCENT_TTS_VOICE_TYPE", "101001")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://legacy", cfg.Database.URL)
	assert.Equal(t, 120, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, "101001", cfg.TencentTTS.VoiceType)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Agent.Brokers)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
database:
  url: postgres://from-file
knowledge:
  dir: /srv/kb
  load_from_db: false
agent:
  mode: kafka
  topic: tags
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", file)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://from-file", cfg.Database.URL)
	assert.Equal(t, "/srv/kb", cfg.Knowledge.Dir)
	assert.False(t, cfg.Knowledge.LoadFromDB)
	assert.Equal(t, "kafka", cfg.Agent.Mode)
	assert.Equal(t, "tags", cfg.Agent.Topic)
}

func TestLoad_InvalidEnum(t *testing.T) {
	t.Setenv("ZHITANG_DATABASE_URL", "postgres://x")
	t.Setenv("ZHITANG_STORAGE_PROVIDER", "ftp")

	_, err := NewLoader().Load()
	require.Error(t, err)
}
