package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

type configurationStoreMock struct {
	entries map[string]*models.ScholarshipConfiguration
	finds   int
}

func configKey(t models.ScholarshipType, subtype string) string {
	return string(t) + "/" + subtype
}

func newConfigurationStoreMock() *configurationStoreMock {
	return &configurationStoreMock{entries: make(map[string]*models.ScholarshipConfiguration)}
}

func (m *configurationStoreMock) Find(_ context.Context, scholarshipType models.ScholarshipType, subtype string) (*models.ScholarshipConfiguration, error) {
	m.finds++
	cfg, ok := m.entries[configKey(scholarshipType, subtype)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *cfg
	return &copied, nil
}

func (m *configurationStoreMock) List(_ context.Context) ([]models.ScholarshipConfiguration, error) {
	var out []models.ScholarshipConfiguration
	for _, cfg := range m.entries {
		out = append(out, *cfg)
	}
	return out, nil
}

func (m *configurationStoreMock) Upsert(_ context.Context, cfg *models.ScholarshipConfiguration) error {
	copied := *cfg
	m.entries[configKey(cfg.Type, cfg.Subtype)] = &copied
	return nil
}

// cacheMock stores marshalled values like the Redis-backed cache does.
type cacheMock struct {
	values  map[string][]byte
	deletes []string
}

func newCacheMock() *cacheMock {
	return &cacheMock{values: make(map[string][]byte)}
}

func (m *cacheMock) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *cacheMock) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *cacheMock) Delete(_ context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	delete(m.values, key)
	return nil
}

func newConfigurationFixture() (*ConfigurationService, *configurationStoreMock, *cacheMock) {
	repo := newConfigurationStoreMock()
	cache := newCacheMock()
	svc := NewConfigurationService(repo, cache, 15*time.Minute, zap.NewNop())
	return svc, repo, cache
}

func TestConfigurationGetFallsBackToDefaults(t *testing.T) {
	svc, _, _ := newConfigurationFixture()

	cfg, err := svc.Get(context.Background(), models.ScholarshipImpact, "")
	require.NoError(t, err)

	require.NotNil(t, cfg.RequiredHours)
	assert.Equal(t, models.DefaultRequiredHours(models.ScholarshipImpact), *cfg.RequiredHours)
	assert.Empty(t, cfg.RequiredDocuments)
}

func TestConfigurationExcellenceSubtypeDefaultsToAcademic(t *testing.T) {
	svc, repo, _ := newConfigurationFixture()

	stored := models.DefaultConfiguration(models.ScholarshipExcellence, string(models.SubtypeAcademic))
	stored.MinAverage = 92
	require.NoError(t, repo.Upsert(context.Background(), &stored))

	cfg, err := svc.Get(context.Background(), models.ScholarshipExcellence, "")
	require.NoError(t, err)
	assert.Equal(t, 92.0, cfg.MinAverage)
	assert.Equal(t, string(models.SubtypeAcademic), cfg.Subtype)
}

func TestConfigurationNonExcellenceIgnoresSubtype(t *testing.T) {
	svc, repo, _ := newConfigurationFixture()

	stored := models.DefaultConfiguration(models.ScholarshipImpact, "")
	stored.MinAverage = 80
	require.NoError(t, repo.Upsert(context.Background(), &stored))

	cfg, err := svc.Get(context.Background(), models.ScholarshipImpact, "ATHLETIC")
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.MinAverage)
	assert.Empty(t, cfg.Subtype)
}

func TestConfigurationGetRejectsUnknownType(t *testing.T) {
	svc, _, _ := newConfigurationFixture()

	_, err := svc.Get(context.Background(), "LOTTERY", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Get(context.Background(), models.ScholarshipExcellence, "COOKING")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestConfigurationGetUsesCache(t *testing.T) {
	svc, repo, _ := newConfigurationFixture()

	stored := models.DefaultConfiguration(models.ScholarshipAssistantship, "")
	stored.MinAverage = 75
	require.NoError(t, repo.Upsert(context.Background(), &stored))

	_, err := svc.Get(context.Background(), models.ScholarshipAssistantship, "")
	require.NoError(t, err)
	cfg, err := svc.Get(context.Background(), models.ScholarshipAssistantship, "")
	require.NoError(t, err)

	assert.Equal(t, 75.0, cfg.MinAverage)
	assert.Equal(t, 1, repo.finds)
}

func TestConfigurationUpsertInvalidatesCache(t *testing.T) {
	svc, repo, cache := newConfigurationFixture()

	stored := models.DefaultConfiguration(models.ScholarshipAssistantship, "")
	stored.MinAverage = 75
	require.NoError(t, repo.Upsert(context.Background(), &stored))

	// Warm the cache, supersede the entry, read again.
	_, err := svc.Get(context.Background(), models.ScholarshipAssistantship, "")
	require.NoError(t, err)

	_, err = svc.Upsert(context.Background(), &UpsertConfigurationRequest{
		Type:       models.ScholarshipAssistantship,
		MinAverage: 85,
	}, "admin-1")
	require.NoError(t, err)
	assert.NotEmpty(t, cache.deletes)

	cfg, err := svc.Get(context.Background(), models.ScholarshipAssistantship, "")
	require.NoError(t, err)
	assert.Equal(t, 85.0, cfg.MinAverage)
}

func TestConfigurationUpsertValidatesTermWindow(t *testing.T) {
	svc, _, _ := newConfigurationFixture()

	minTerm, maxTerm := 5, 2
	_, err := svc.Upsert(context.Background(), &UpsertConfigurationRequest{
		Type:    models.ScholarshipImpact,
		MinTerm: &minTerm,
		MaxTerm: &maxTerm,
	}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestConfigurationUpsertRecordsAuthor(t *testing.T) {
	svc, repo, _ := newConfigurationFixture()

	cfg, err := svc.Upsert(context.Background(), &UpsertConfigurationRequest{
		Type:       models.ScholarshipTeachingFormation,
		MinAverage: 70,
	}, "admin-7")
	require.NoError(t, err)

	require.NotNil(t, cfg.UpdatedBy)
	assert.Equal(t, "admin-7", *cfg.UpdatedBy)
	assert.Len(t, repo.entries, 1)
}
