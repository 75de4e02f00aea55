package interfaces

import (
	"context"
	"time"

	"ConsorcioSync/internal/model"
)

// Publisher 作业完成事件发布
type Publisher interface {
	Publish(ctx context.Context, env model.Envelope) error
	Close() error
}

// JobLocker 同一administradora同一时间只允许一个作业运行
type JobLocker interface {
	// Acquire 获取锁，返回释放函数；锁被占用时返回 lock.ErrLocked
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
