package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"switch-pricer/monitor/logschema"
)

// Follower 跟随订单脚本：先录入已有内容，之后每次文件写入时录入新追加的完整行。
// 单行出错只记录 feed_error，不中断跟随。
type Follower struct {
	path    string
	sub     Submitter
	log     *zap.Logger
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	offset    int64
	lineNo    int
	partial   []byte
	processed int

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewFollower 创建跟随器
func NewFollower(path string, sub Submitter, log *zap.Logger) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Follower{
		path:     filepath.Clean(path),
		sub:      sub,
		log:      log,
		watcher:  watcher,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 录入现有内容并开始监听。
// 监听所在目录而不是文件本身，编辑器以 rename 方式整体替换文件后仍能继续跟随。
func (f *Follower) Start(ctx context.Context) error {
	if err := f.watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = f.watcher.Close()
		return fmt.Errorf("failed to watch order file: %w", err)
	}
	if err := f.poll(); err != nil {
		_ = f.watcher.Close()
		return err
	}
	go f.watch(ctx)
	return nil
}

// Stop 停止监听
func (f *Follower) Stop() error {
	f.stopOnce.Do(func() { close(f.stopChan) })
	select {
	case <-f.doneChan:
	case <-time.After(1 * time.Second):
		// watch goroutine 可能没有启动
	}
	return f.watcher.Close()
}

// Health watch goroutine 退出后返回错误
func (f *Follower) Health() error {
	select {
	case <-f.doneChan:
		return errors.New("follower stopped")
	default:
		return nil
	}
}

// Processed 已成功录入的订单数
func (f *Follower) Processed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed
}

func (f *Follower) watch(ctx context.Context) {
	defer close(f.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopChan:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := f.poll(); err != nil {
					f.log.Warn("order file read failed", zap.String("path", f.path), zap.Error(err))
				}
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("order file watcher error", zap.Error(err))
		}
	}
}

// poll 从上次的偏移读到文件末尾；文件被截断时从头开始。
func (f *Follower) poll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.offset, f.lineNo, f.partial = 0, 0, nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	cut := bytes.LastIndexByte(buf, '\n')
	if cut < 0 {
		f.partial = buf
		return nil
	}
	f.partial = append([]byte(nil), buf[cut+1:]...)
	for _, line := range bytes.Split(buf[:cut], []byte{'\n'}) {
		f.lineNo++
		ok, err := apply(f.sub, f.log, f.lineNo, string(line))
		if err != nil {
			logschema.Emit(f.log, "feed_error", map[string]interface{}{
				"line":  f.lineNo,
				"error": err.Error(),
			})
			continue
		}
		if ok {
			f.processed++
		}
	}
	return nil
}
