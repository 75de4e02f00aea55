package service

import (
	"context"
	"fmt"
	"time"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/metrics"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExtractResult 抽取结果；Moved=false 表示数据已提交但源文件仍在received
type ExtractResult struct {
	Key      string    `json:"key,omitempty"`
	Table    string    `json:"table"`
	Rows     int       `json:"rows"`
	Skipped  int       `json:"skipped"`
	DataInfo time.Time `json:"data_info"`
	Moved    bool      `json:"moved"`
}

// ExtractService 读取合作方数据源，规范化后写入staging表
type ExtractService struct {
	staging repository.StagingRepository
	files   interfaces.FileStore
	metrics *metrics.Collector
	logger  *logrus.Logger
}

func NewExtractService(db *gorm.DB, files interfaces.FileStore, collector *metrics.Collector, logger *logrus.Logger) *ExtractService {
	return &ExtractService{
		staging: repository.NewStagingRepository(db),
		files:   files,
		metrics: collector,
		logger:  logger,
	}
}

// Run 读取 → 全部行规范化（任一行失败则不写入）→ 单事务写入 → 提交后移动源文件。
// 移动失败只记录错误，不影响作业结果（数据已持久化，不应重复处理）。
func (s *ExtractService) Run(ctx context.Context, adm *adapter.Administrator, key string, runTime time.Time, batchSize int) (*ExtractResult, error) {
	log := s.logger.WithFields(logrus.Fields{"administrator": adm.Code, "key": key, "staging_table": adm.Layout.StagingTable})

	src, err := adm.NewSource(s.files, key, s.logger)
	if err != nil {
		return nil, err
	}
	table, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取%s失败: %w", src.Name(), err)
	}
	dataInfo, err := adm.Layout.DataInfo(key, runTime)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{Key: key, Table: adm.Layout.StagingTable, DataInfo: dataInfo}
	records := table.Records(adm.Code)
	rows := make([]*model.StagingRow, 0, len(records))
	for _, rec := range records {
		row, skip, err := adm.Layout.ToStaging(rec, dataInfo, key)
		if err != nil {
			return nil, err
		}
		if skip {
			result.Skipped++
			continue
		}
		rows = append(rows, row)
	}

	if err := s.staging.EnsureTable(ctx, adm.Layout.StagingTable); err != nil {
		return nil, err
	}
	if err := s.staging.Insert(ctx, adm.Layout.StagingTable, rows, batchSize); err != nil {
		return nil, err
	}
	result.Rows = len(rows)
	if s.metrics != nil {
		s.metrics.Rows(adm.Code, "extracted", result.Rows)
		s.metrics.Rows(adm.Code, "skipped", result.Skipped)
	}
	log.WithFields(logrus.Fields{"rows": result.Rows, "skipped": result.Skipped}).Info("staging写入完成")

	if key != "" && adm.Config.Source != "api" {
		if err := s.files.MarkProcessed(ctx, key); err != nil {
			log.WithError(err).Error("数据已提交，但源文件移动失败，需人工处理")
			if s.metrics != nil {
				s.metrics.FileMoveFailed(adm.Code)
			}
		} else {
			result.Moved = true
		}
	}
	return result, nil
}
