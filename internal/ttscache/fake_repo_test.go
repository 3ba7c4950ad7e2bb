package ttscache

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/repository"
)

var errDB = errors.New("connection refused")

// memArtifactRepo 内存版缓存仓库
type memArtifactRepo struct {
	mu      sync.Mutex
	rows    []*models.TTSArtifact
	nextID  int64
	failAll bool
}

func (r *memArtifactRepo) GetDB() *gorm.DB { return nil }

func (r *memArtifactRepo) FindActive(_ context.Context, key repository.ArtifactKey) (*models.TTSArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errDB
	}
	var best *models.TTSArtifact
	for _, row := range r.rows {
		if !row.IsActive || row.TextContent != key.Text || row.VoiceID != key.VoiceID ||
			row.Speed != key.Speed || row.SampleRate != key.SampleRate || row.Codec != key.Codec {
			continue
		}
		if best == nil || row.LastAccessed.After(best.LastAccessed) {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *memArtifactRepo) Create(_ context.Context, a *models.TTSArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errDB
	}
	r.nextID++
	a.CacheID = r.nextID
	cp := *a
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memArtifactRepo) byID(id int64) *models.TTSArtifact {
	for _, row := range r.rows {
		if row.CacheID == id {
			return row
		}
	}
	return nil
}

func (r *memArtifactRepo) MarkAccessed(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errDB
	}
	if row := r.byID(id); row != nil {
		row.LastAccessed = at
		row.AccessCount++
	}
	return nil
}

func (r *memArtifactRepo) UpdateBlob(_ context.Context, id int64, path string, size int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.byID(id); row != nil {
		row.CachePath = path
		row.FileSize = size
		row.LastAccessed = at
	}
	return nil
}

func (r *memArtifactRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.byID(id); row != nil {
		row.IsActive = false
	}
	return nil
}

func (r *memArtifactRepo) DeactivateIdle(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return 0, errDB
	}
	var n int64
	for _, row := range r.rows {
		if row.IsActive && row.LastAccessed.Before(cutoff) {
			row.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memArtifactRepo) Aggregate(_ context.Context) (repository.CacheAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return repository.CacheAggregate{}, errDB
	}
	var agg repository.CacheAggregate
	for _, row := range r.rows {
		if !row.IsActive {
			continue
		}
		agg.TotalFiles++
		agg.TotalSizeBytes += row.FileSize
		agg.TotalAccesses += row.AccessCount
		created, accessed := row.CreatedAt, row.LastAccessed
		if agg.Newest == nil || created.After(*agg.Newest) {
			agg.Newest = &created
		}
		if agg.Oldest == nil || created.Before(*agg.Oldest) {
			agg.Oldest = &created
		}
		if agg.LastAccess == nil || accessed.After(*agg.LastAccess) {
			agg.LastAccess = &accessed
		}
	}
	return agg, nil
}

func (r *memArtifactRepo) SearchText(_ context.Context, query string, limit int) ([]models.TTSArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TTSArtifact
	for _, row := range r.rows {
		if row.IsActive && strings.Contains(row.TextContent, query) {
			out = append(out, *row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastAccessed.After(out[j].LastAccessed) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memArtifactRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.IsActive {
			n++
		}
	}
	return n
}

// memStatsRepo 内存版每日统计仓库，命中率计算与SQL一致
type memStatsRepo struct {
	mu   sync.Mutex
	days map[time.Time]*models.TTSDailyStat
}

func newMemStatsRepo() *memStatsRepo {
	return &memStatsRepo{days: map[time.Time]*models.TTSDailyStat{}}
}

func (r *memStatsRepo) GetDB() *gorm.DB { return nil }

func (r *memStatsRepo) row(day time.Time) *models.TTSDailyStat {
	stat, ok := r.days[day]
	if !ok {
		stat = &models.TTSDailyStat{Date: day}
		r.days[day] = stat
	}
	return stat
}

func (r *memStatsRepo) IncrementRequest(_ context.Context, day time.Time, hit bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stat := r.row(day)
	stat.TotalRequests++
	if hit {
		stat.CacheHits++
	} else {
		stat.CacheMisses++
	}
	stat.HitRate = math.Round(float64(stat.CacheHits)*100/float64(stat.TotalRequests)*100) / 100
	return nil
}

func (r *memStatsRepo) UpsertFiles(_ context.Context, day time.Time, files int64, sizeMB float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stat := r.row(day)
	stat.TotalFiles = files
	stat.TotalSizeMB = sizeMB
	return nil
}

func (r *memStatsRepo) GetByDate(_ context.Context, day time.Time) (*models.TTSDailyStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stat, ok := r.days[day]
	if !ok {
		return nil, nil
	}
	cp := *stat
	return &cp, nil
}

func (r *memStatsRepo) ListSince(_ context.Context, since time.Time) ([]models.TTSDailyStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TTSDailyStat
	for day, stat := range r.days {
		if !day.Before(since) {
			out = append(out, *stat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
