package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"ConsorcioSync/internal/adapter"
	_ "ConsorcioSync/internal/adapter/all"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/lock"
	"ConsorcioSync/internal/metrics"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, repository.AutoMigrate(ctx, db))
	require.NoError(t, repository.NewReferenceRepository(db).EnsureAdministrator(ctx, "gmac", "GMAC"))
	return db
}

// memFiles 内存中的 received/processed 存储
type memFiles struct {
	mu      sync.Mutex
	files   map[string][]byte
	moved   []string
	moveErr error
}

func newMemFiles() *memFiles { return &memFiles{files: make(map[string][]byte)} }

func (m *memFiles) put(key, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = []byte(content)
}

func (m *memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[key]
	if !ok {
		return nil, etlerr.NotFound("源文件", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memFiles) MarkProcessed(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	delete(m.files, key)
	m.moved = append(m.moved, key)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []model.Envelope
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, env model.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, env)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) details(t *testing.T) []model.CompletionDetail {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.CompletionDetail, 0, len(p.sent))
	for _, env := range p.sent {
		var d model.CompletionDetail
		require.NoError(t, json.Unmarshal(env.Detail, &d))
		out = append(out, d)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	cfg       *config.Config
	files     *memFiles
	publisher *fakePublisher
	pipeline  *Pipeline
	adm       *adapter.Administrator
	logger    *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := newTestLogger()
	cfg := &config.Config{
		Jobs: config.JobsConfig{BatchSize: 10, LookbackMonths: 6, MinAssemblies: 3},
		Events: config.EventsConfig{
			Source:       "consorcio.etl",
			EventBusName: "consorcio-bus",
		},
		Administrators: map[string]config.AdministratorConfig{"gmac": {Source: "csv"}},
	}
	f := &fixture{
		db:        newTestDB(t),
		cfg:       cfg,
		files:     newMemFiles(),
		publisher: &fakePublisher{},
		logger:    log,
	}
	registry := adapter.NewRegistry(cfg, log)
	adm, err := registry.Get("gmac")
	require.NoError(t, err)
	f.adm = adm
	f.pipeline = NewPipeline(PipelineDeps{
		DB:        f.db,
		Config:    cfg,
		Registry:  registry,
		Files:     f.files,
		Publisher: f.publisher,
		Locker:    lock.NewLocalLocker(),
		Metrics:   metrics.New(),
		Logger:    log,
		Now:       func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) count(t *testing.T, m any, where ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(m)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) pending(t *testing.T) int64 {
	t.Helper()
	n, err := repository.NewStagingRepository(f.db).CountPending(context.Background(), f.adm.Layout.StagingTable)
	require.NoError(t, err)
	return n
}

var errBroker = errors.New("broker unavailable")
