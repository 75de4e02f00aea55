// Package lock 作业互斥锁：配置了Redis时跨进程互斥，否则退化为进程内互斥。
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/interfaces"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrLocked 同一把锁正被其他运行持有
var ErrLocked = errors.New("job lock is held by another run")

const keyPrefix = "consorcio:lock:"

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 只为自己持有的锁续期
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// New 按配置创建锁；redis_addr 为空时使用进程内锁
func New(cfg config.LockConfig, logger *logrus.Logger) interfaces.JobLocker {
	if cfg.RedisAddr == "" {
		logger.Info("未配置Redis，作业锁仅在进程内生效")
		return NewLocalLocker()
	}
	return NewRedisLocker(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), logger)
}

// RedisLocker SET NX PX 实现的分布式锁；持有期间每 ttl/3 续期一次，直到释放
type RedisLocker struct {
	client redis.Cmdable
	logger *logrus.Logger
}

func NewRedisLocker(client redis.Cmdable, logger *logrus.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("获取作业锁失败: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrLocked)
	}
	l.logger.WithFields(logrus.Fields{"lock": key, "ttl": ttl.String()}).Debug("已获取作业锁")

	renewCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(renewCtx, ttl/3, func(ctx context.Context) (bool, error) {
			n, err := renewScript.Run(ctx, l.client, []string{keyPrefix + key}, token, ttl.Milliseconds()).Int64()
			return n == 1, err
		}, func(err error) {
			entry := l.logger.WithField("lock", key)
			if err != nil {
				entry.WithError(err).Warn("作业锁续期失败，稍后重试")
				return
			}
			entry.Warn("作业锁已丢失，可能已被其他运行获取")
		})
	}()

	return func(ctx context.Context) error {
		stop()
		<-done
		if err := releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Err(); err != nil {
			return fmt.Errorf("释放作业锁失败: %w", err)
		}
		return nil
	}, nil
}

// keepAlive 每隔 interval 调用一次 renew，直到 ctx 取消或 renew 报告锁已不属于自己。
// renew 出错时调用 lost(err) 并继续重试；锁丢失时调用 lost(nil) 后返回。
func keepAlive(ctx context.Context, interval time.Duration, renew func(context.Context) (bool, error), lost func(error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := renew(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				lost(err)
				continue
			}
			if !held {
				lost(nil)
				return
			}
		}
	}
}

// LocalLocker 进程内互斥（serve 模式下手动触发与定时任务之间）
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("%s: %w", key, ErrLocked)
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, nil
}
