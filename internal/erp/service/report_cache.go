package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const reportCachePrefix = "report:project:"

// ReportCache 项目报表缓存；未配置 Redis 时所有操作为空操作
type ReportCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewReportCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{rdb: rdb, ttl: ttl, logger: logger}
}

func reportCacheKey(projectID string) string {
	return reportCachePrefix + projectID
}

// Get 读取缓存；未命中或出错时返回 false
func (c *ReportCache) Get(ctx context.Context, projectID string) (*ProjectReport, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, reportCacheKey(projectID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Report cache read failed", zap.String("project_id", projectID), zap.Error(err))
		}
		return nil, false
	}
	var report ProjectReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.Warn("Report cache decode failed", zap.String("project_id", projectID), zap.Error(err))
		return nil, false
	}
	return &report, true
}

// Set 写入缓存
func (c *ReportCache) Set(ctx context.Context, report *ProjectReport) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, reportCacheKey(report.Project.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Report cache write failed", zap.String("project_id", report.Project.ID), zap.Error(err))
	}
}

// Invalidate 删除项目报表缓存
func (c *ReportCache) Invalidate(ctx context.Context, projectID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, reportCacheKey(projectID)).Err(); err != nil {
		c.logger.Warn("Report cache invalidate failed", zap.String("project_id", projectID), zap.Error(err))
	}
}
