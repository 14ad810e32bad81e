// Package library 提供内容库版本目录查询
package library

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/metrics"
)

const versionsCacheKey = "h5p:library_versions"

// CatalogFetcher 拉取托管服务内容库目录的能力
type CatalogFetcher interface {
	FetchLibraries(ctx context.Context) ([]entity.LibraryInfo, error)
}

// VersionStore 带 singleflight 的 Read-Through 缓存
type VersionStore interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// Service 内容库版本目录服务
//
// 版本表短期缓存，过期后重新拉取；托管服务不可用时回退到
// 内置默认版本表，目录查询永不让生成流程失败
type Service struct {
	fetcher CatalogFetcher
	store   VersionStore
	ttl     time.Duration
}

// NewService 创建版本目录服务
func NewService(fetcher CatalogFetcher, store VersionStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
	}
}

// Versions 返回当前可用内容库版本表
func (s *Service) Versions(ctx context.Context) (entity.VersionMap, error) {
	loaded := false
	data, err := s.store.GetOrLoadSafe(ctx, versionsCacheKey, s.ttl, func() (interface{}, error) {
		loaded = true
		libraries, err := s.fetcher.FetchLibraries(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return ReduceLibraries(libraries), nil
	})
	if err != nil {
		logger.Warn(ctx, "内容库目录不可用，使用默认版本表", "error", err.Error())
		metrics.LibraryCatalogFetchTotal.WithLabelValues("fallback").Inc()
		return fallbackVersions(), nil
	}

	var versions entity.VersionMap
	if err := json.Unmarshal(data, &versions); err != nil {
		logger.Warn(ctx, "缓存的版本表不可解析，使用默认版本表", "error", err.Error())
		metrics.LibraryCatalogFetchTotal.WithLabelValues("fallback").Inc()
		return fallbackVersions(), nil
	}

	if loaded {
		metrics.LibraryCatalogFetchTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.LibraryCatalogFetchTotal.WithLabelValues("cache_hit").Inc()
	}
	return versions, nil
}

// ReduceLibraries 把目录归约为版本表：只保留可独立运行的库，
// 同名库取最高的 major.minor 版本
func ReduceLibraries(libraries []entity.LibraryInfo) entity.VersionMap {
	versions := make(entity.VersionMap, len(libraries))
	for _, lib := range libraries {
		if !lib.Runnable {
			continue
		}
		v := lib.Version()
		if cur, ok := versions[lib.MachineName]; !ok || entity.NewerVersion(v, cur) {
			versions[lib.MachineName] = v
		}
	}
	return versions
}

func fallbackVersions() entity.VersionMap {
	out := make(entity.VersionMap, len(schema.DefaultVersions))
	for k, v := range schema.DefaultVersions {
		out[k] = v
	}
	return out
}
