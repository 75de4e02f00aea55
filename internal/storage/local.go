// Package storage 源文件存储：received 目录读取，入库提交成功后移动到 processed 目录。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ConsorcioSync/internal/etlerr"

	"github.com/sirupsen/logrus"
)

// LocalStore 本地（或挂载的对象存储）目录实现
type LocalStore struct {
	receivedDir  string
	processedDir string
	logger       *logrus.Logger
}

func NewLocalStore(receivedDir, processedDir string, logger *logrus.Logger) *LocalStore {
	return &LocalStore{receivedDir: receivedDir, processedDir: processedDir, logger: logger}
}

// WithReceivedDir 返回使用另一个received根目录的副本（命令行 --bucket）
func (s *LocalStore) WithReceivedDir(dir string) *LocalStore {
	if dir == "" {
		return s
	}
	cp := *s
	cp.receivedDir = dir
	return &cp
}

func (s *LocalStore) path(root, key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(key, "/"))
	if clean == "/" {
		return "", fmt.Errorf("无效的文件key: %q", key)
	}
	return filepath.Join(root, clean), nil
}

// Open 打开 received/<key>；不存在时返回 NotFound
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(s.receivedDir, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, etlerr.NotFound("源文件", key)
		}
		return nil, fmt.Errorf("打开源文件%s失败: %w", key, err)
	}
	return f, nil
}

// MarkProcessed 将 received/<key> 移动到 processed/<key>
func (s *LocalStore) MarkProcessed(_ context.Context, key string) error {
	src, err := s.path(s.receivedDir, key)
	if err != nil {
		return err
	}
	dst, err := s.path(s.processedDir, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("创建processed目录失败: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		s.logger.WithFields(logrus.Fields{"from": src, "to": dst}).Info("源文件已移动到processed")
		return nil
	}
	// 跨设备时 rename 失败，改为复制后删除
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("移动源文件%s失败: %w", key, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("删除已复制的源文件%s失败: %w", key, err)
	}
	s.logger.WithFields(logrus.Fields{"from": src, "to": dst}).Info("源文件已复制到processed")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
