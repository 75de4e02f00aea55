package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/events"
	"ConsorcioSync/internal/lock"
	"ConsorcioSync/internal/logger"
	"ConsorcioSync/internal/metrics"
	"ConsorcioSync/internal/repository"
	"ConsorcioSync/internal/service"
	"ConsorcioSync/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app 命令共享的运行时依赖，在 PersistentPreRunE 中初始化
type app struct {
	configDir string
	cfg       *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	registry  *adapter.Registry
	metrics   *metrics.Collector
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "consorcio-sync",
		Short:         "合作方consórcio数据ETL：extract → reconcile → chosen bid → 完成事件",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config", "./config", "config.yaml 所在目录")

	root.AddCommand(
		a.migrateCmd(),
		a.jobCmd(service.JobExtract, "读取源文件并写入staging表"),
		a.jobCmd(service.JobReconcile, "将未处理的staging行写入canonical表"),
		a.jobCmd(service.JobBidCalc, "计算各grupo的chosen bid"),
		a.jobCmd(service.JobRun, "依次执行 extract、reconcile、bidcalc"),
		a.serveCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadConfigFrom(a.configDir)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	log.Info("配置文件加载成功")

	db, err := openDatabase(cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("数据库初始化失败")
		return err
	}
	a.cfg, a.logger, a.db = cfg, log, db
	a.registry = adapter.NewRegistry(cfg, log)
	a.metrics = metrics.New()
	return nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "迁移表结构，写入administradora与出价类型，创建staging表",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := repository.AutoMigrate(ctx, a.db); err != nil {
				return err
			}
			refs := repository.NewReferenceRepository(a.db)
			staging := repository.NewStagingRepository(a.db)
			for _, adm := range a.registry.All() {
				if err := refs.EnsureAdministrator(ctx, adm.Code, adm.Description); err != nil {
					return fmt.Errorf("写入administradora %s失败: %w", adm.Code, err)
				}
				if err := staging.EnsureTable(ctx, adm.Layout.StagingTable); err != nil {
					return err
				}
			}
			a.logger.WithField("administrators", a.registry.List()).Info("数据库表结构检查完成（不存在则已创建）")
			return nil
		},
	}
}

// jobFlags 作业命令参数，数值为0时使用配置值
type jobFlags struct {
	administrator  string
	file           string
	bucket         string
	eventBus       string
	batchSize      int
	lookbackMonths int
	minAssemblies  int
	maxAssemblies  int
}

func (a *app) jobCmd(job, short string) *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   job,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, closeFn, err := a.newPipeline(f.bucket)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := pipeline.Run(ctx, service.JobRequest{
				Job:            job,
				Administrator:  f.administrator,
				Key:            f.file,
				EventBus:       f.eventBus,
				BatchSize:      f.batchSize,
				LookbackMonths: f.lookbackMonths,
				MinAssemblies:  f.minAssemblies,
				MaxAssemblies:  f.maxAssemblies,
			})
			if err != nil {
				a.logger.WithError(err).WithField("administrator", f.administrator).Error("作业失败")
				return err
			}
			a.logger.WithFields(logrus.Fields{
				"run_id":  report.RunID,
				"records": report.Records,
			}).Info("作业成功")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.administrator, "administrator", "", "administradora代码（gmac/santander/itau/porto/volkswagen）")
	flags.StringVar(&f.file, "file", "", "源文件对象key（相对received目录）")
	flags.StringVar(&f.bucket, "bucket", "", "received根目录，覆盖 storage.received_dir")
	flags.StringVar(&f.eventBus, "event-bus", "", "完成事件总线名称，覆盖 events.event_bus_name")
	flags.IntVar(&f.batchSize, "batch-size", 0, "每批领取的staging行数")
	flags.IntVar(&f.lookbackMonths, "lookback-months", 0, "chosen bid回看月数")
	flags.IntVar(&f.minAssemblies, "min-assemblies", 0, "计算chosen bid所需的最少assembleia数")
	flags.IntVar(&f.maxAssemblies, "max-assemblies", 0, "参与取最大值的assembleia上限")
	_ = cmd.MarkFlagRequired("administrator")
	return cmd
}

// newPipeline 组装pipeline；返回的函数关闭事件发布器
func (a *app) newPipeline(bucket string) (*service.Pipeline, func(), error) {
	publisher, err := events.New(a.cfg.Events, a.logger)
	if err != nil {
		return nil, nil, err
	}
	files := storage.NewLocalStore(a.cfg.Storage.ReceivedDir, a.cfg.Storage.ProcessedDir, a.logger).WithReceivedDir(bucket)
	pipeline := service.NewPipeline(service.PipelineDeps{
		DB:        a.db,
		Config:    a.cfg,
		Registry:  a.registry,
		Files:     files,
		Publisher: publisher,
		Locker:    lock.New(a.cfg.Lock, a.logger),
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	return pipeline, func() {
		if err := publisher.Close(); err != nil {
			a.logger.WithError(err).Warn("关闭事件发布器失败")
		}
	}, nil
}
