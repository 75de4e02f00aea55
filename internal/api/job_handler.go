package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/lock"
	"ConsorcioSync/internal/repository"
	"ConsorcioSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// JobRunner 执行一次作业（service.Pipeline）
type JobRunner interface {
	Run(ctx context.Context, req service.JobRequest) (*service.JobReport, error)
}

// JobHandler 作业触发与运行记录查询
type JobHandler struct {
	runner  JobRunner
	jobRuns repository.JobRunRepository
	logger  *logrus.Logger
}

func NewJobHandler(runner JobRunner, jobRuns repository.JobRunRepository, logger *logrus.Logger) *JobHandler {
	return &JobHandler{runner: runner, jobRuns: jobRuns, logger: logger}
}

// Register 注册路由
func (h *JobHandler) Register(r gin.IRouter) {
	r.POST("/jobs/:administrator/run", h.RunJob)
	r.GET("/jobs/runs", h.ListRuns)
	r.GET("/jobs/runs/:run_id", h.GetRun)
}

// runJobRequest 请求体可省略，job 默认为 run
type runJobRequest struct {
	Job            string `json:"job"`
	Key            string `json:"key"`
	EventBus       string `json:"event_bus"`
	BatchSize      int    `json:"batch_size"`
	LookbackMonths int    `json:"lookback_months"`
	MinAssemblies  int    `json:"min_assemblies"`
	MaxAssemblies  int    `json:"max_assemblies"`
}

// RunJob 同步执行作业
// POST /jobs/:administrator/run
func (h *JobHandler) RunJob(c *gin.Context) {
	adm := c.Param("administrator")
	var body runJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if body.Job == "" {
		body.Job = service.JobRun
	}

	report, err := h.runner.Run(c.Request.Context(), service.JobRequest{
		Job:            body.Job,
		Administrator:  adm,
		Key:            body.Key,
		EventBus:       body.EventBus,
		BatchSize:      body.BatchSize,
		LookbackMonths: body.LookbackMonths,
		MinAssemblies:  body.MinAssemblies,
		MaxAssemblies:  body.MaxAssemblies,
	})
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{"administrator": adm, "job": body.Job}).Error("作业执行失败")
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, lock.ErrLocked):
			status = http.StatusConflict
		case report == nil:
			// 作业未开始（未知administradora/作业类型）
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListRuns 最近的运行记录
// GET /jobs/runs?administrator=gmac&limit=20
func (h *JobHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.jobRuns.List(c.Request.Context(), c.Query("administrator"), limit)
	if err != nil {
		h.logger.WithError(err).Error("ListRuns failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun 单次运行详情
// GET /jobs/runs/:run_id
func (h *JobHandler) GetRun(c *gin.Context) {
	run, err := h.jobRuns.Get(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, etlerr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("GetRun failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}
