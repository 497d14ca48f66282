package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ai-news/config"
	"ai-news/internal/cache"
	"ai-news/internal/model"
	"ai-news/internal/service"
)

func newScheduler(t *testing.T, cfg config.CronConfig) (*Scheduler, *cache.Store, *cache.Memory) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cron.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.CacheEntry{}))

	agg := service.NewAggregator(config.Default().Cache)
	t.Cleanup(agg.Stop)
	store := cache.NewStore(db, time.Second)
	mem := cache.NewMemory(time.Millisecond)
	return NewScheduler(agg, store, mem, cfg), store, mem
}

func TestStartSchedulesJobs(t *testing.T) {
	s, _, _ := newScheduler(t, config.Default().Cron)
	require.NoError(t, s.Start())
	defer s.Stop()

	now := time.Now()
	assert.True(t, s.GetNextFetchTime().After(now))
	assert.True(t, s.GetNextCleanupTime().After(now))
	assert.True(t, s.GetNextRotationTime().After(now))
	assert.WithinDuration(t, now, s.GetNextFetchTime(), 15*time.Minute+time.Second)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := config.Default().Cron
	cfg.CleanupInterval = "every now and then"
	s, _, _ := newScheduler(t, cfg)
	assert.ErrorContains(t, s.Start(), "cleanup schedule")
}

func TestCleanupRemovesExpiredEntries(t *testing.T) {
	s, store, mem := newScheduler(t, config.Default().Cron)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "news:v7|q=old", []byte(`{}`), nil, false, -time.Minute))
	require.NoError(t, store.Save(ctx, "news:v7|q=new", []byte(`{}`), nil, false, time.Hour))
	mem.Set("news:v7|q=old", []byte(`{}`))
	time.Sleep(5 * time.Millisecond)

	s.cleanup()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, 0, mem.Len())
}
