package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultReloadDebounce = 500 * time.Millisecond

// Reloader 可重建索引的组件
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher 监听知识库目录，Markdown 文件变化后防抖触发重载
type Watcher struct {
	dir      string
	target   Reloader
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher 创建目录监听
func NewWatcher(dir string, target Reloader, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	return &Watcher{dir: dir, target: target, debounce: debounce, logger: log}
}

// Start 开始监听
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(w.dir)
	if err != nil {
		fw.Close()
		return err
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return err
	}

	w.watcher = fw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop()

	w.logger.Info("监听知识库目录变化", zap.String("dir", abs))
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.logger.Info("知识库文件变化，重新加载", zap.String("file", event.Name))
				if err := w.target.Reload(context.Background()); err != nil {
					w.logger.Error("知识库重新加载失败", zap.Error(err))
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("知识库目录监听错误", zap.Error(err))
		}
	}
}

// Stop 停止监听，可重复调用
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.once.Do(func() {
		close(w.stop)
		w.watcher.Close()
		<-w.done
	})
}
