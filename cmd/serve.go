package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ConsorcioSync/internal/api"
	"ConsorcioSync/internal/repository"
	"ConsorcioSync/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP作业触发接口与定时任务",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, closeFn, err := a.newPipeline("")
			if err != nil {
				return err
			}
			defer closeFn()

			scheduler, err := a.schedule(ctx, pipeline)
			if err != nil {
				return err
			}
			scheduler.Start()
			defer func() { <-scheduler.Stop().Done() }()

			gin.SetMode(a.cfg.Server.Mode)
			r := gin.Default()
			// 注册pprof 方便调试和监测性能问题
			pprof.Register(r)
			a.logger.Infof("Gin运行模式: %s", a.cfg.Server.Mode)

			r.GET("/healthz", func(c *gin.Context) {
				sqlDB, err := a.db.DB()
				if err == nil {
					err = sqlDB.PingContext(c.Request.Context())
				}
				if err != nil {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})
			r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{})))
			api.NewJobHandler(pipeline, repository.NewJobRunRepository(a.db), a.logger).Register(r)

			srv := &http.Server{Addr: fmt.Sprintf(":%d", a.cfg.Server.Port), Handler: r}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Infof("服务启动成功，端口：%d", a.cfg.Server.Port)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("启动服务失败: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			a.logger.Info("收到退出信号，正在关闭服务")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// schedule 按 sync.schedules 为每个administradora注册定时 run 作业
func (a *app) schedule(ctx context.Context, pipeline *service.Pipeline) (*cron.Cron, error) {
	c := cron.New()
	for code, expr := range a.cfg.Sync.Schedules {
		if _, err := a.registry.Get(code); err != nil {
			return nil, err
		}
		if _, err := c.AddFunc(expr, func() {
			report, err := pipeline.Run(ctx, service.JobRequest{Job: service.JobRun, Administrator: code})
			if err != nil {
				a.logger.WithError(err).WithField("administrator", code).Error("定时作业失败")
				return
			}
			a.logger.WithFields(logrus.Fields{
				"administrator": code,
				"run_id":        report.RunID,
				"records":       report.Records,
			}).Info("定时作业完成")
		}); err != nil {
			return nil, fmt.Errorf("administradora %s的cron表达式无效（%s）: %w", code, expr, err)
		}
		a.logger.WithFields(logrus.Fields{"administrator": code, "schedule": expr}).Info("已注册定时作业")
	}
	return c, nil
}
