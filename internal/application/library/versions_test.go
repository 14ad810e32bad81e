package library

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
)

type fakeFetcher struct {
	libraries []entity.LibraryInfo
	err       error
	calls     int
}

func (f *fakeFetcher) FetchLibraries(ctx context.Context) ([]entity.LibraryInfo, error) {
	f.calls++
	return f.libraries, f.err
}

// fakeStore 跳过缓存层，直接透传 loader
type fakeStore struct {
	cached []byte
}

func (s *fakeStore) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if s.cached != nil {
		return s.cached, nil
	}
	data, err := loader()
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

func TestReduceLibraries(t *testing.T) {
	libraries := []entity.LibraryInfo{
		{MachineName: "H5P.MultiChoice", MajorVersion: 1, MinorVersion: 14, Runnable: true},
		{MachineName: "H5P.MultiChoice", MajorVersion: 1, MinorVersion: 16, Runnable: true},
		{MachineName: "H5P.MultiChoice", MajorVersion: 1, MinorVersion: 9, Runnable: true},
		{MachineName: "H5P.Image", MajorVersion: 1, MinorVersion: 1, Runnable: false},
	}

	versions := ReduceLibraries(libraries)
	assert.Equal(t, entity.VersionMap{"H5P.MultiChoice": "1.16"}, versions)
}

func TestService_VersionsFromCatalog(t *testing.T) {
	fetcher := &fakeFetcher{libraries: []entity.LibraryInfo{
		{MachineName: "H5P.TrueFalse", MajorVersion: 1, MinorVersion: 8, Runnable: true},
	}}
	svc := NewService(fetcher, &fakeStore{}, time.Minute)

	versions, err := svc.Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.8", versions["H5P.TrueFalse"])
	assert.Equal(t, 1, fetcher.calls)
}

func TestService_FallbackWhenCatalogUnavailable(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	svc := NewService(fetcher, &fakeStore{}, time.Minute)

	versions, err := svc.Versions(context.Background())
	require.NoError(t, err)

	// 回退到内置默认版本表
	assert.Equal(t, schema.DefaultVersions["H5P.QuestionSet"], versions["H5P.QuestionSet"])
	assert.Equal(t, schema.DefaultVersions["H5P.BranchingScenario"], versions["H5P.BranchingScenario"])
}

func TestService_CacheHitSkipsFetch(t *testing.T) {
	cached, err := json.Marshal(entity.VersionMap{"H5P.Blanks": "1.14"})
	require.NoError(t, err)

	fetcher := &fakeFetcher{}
	svc := NewService(fetcher, &fakeStore{cached: cached}, time.Minute)

	versions, err := svc.Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.14", versions["H5P.Blanks"])
	assert.Zero(t, fetcher.calls)
}
