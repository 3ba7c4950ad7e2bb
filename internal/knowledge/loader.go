package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/repository"
)

// Loader 从数据库和 Markdown 目录加载知识库
type Loader struct {
	dir        string
	faqs       repository.FAQRepository
	loadFromDB bool
	logger     *zap.Logger
}

// NewLoader 创建加载器，faqs 为 nil 时只加载文件
func NewLoader(dir string, faqs repository.FAQRepository, loadFromDB bool, log *zap.Logger) *Loader {
	return &Loader{dir: dir, faqs: faqs, loadFromDB: loadFromDB, logger: log}
}

// Dir 知识库目录
func (l *Loader) Dir() string {
	return l.dir
}

// Load 先加载数据库，再加载文件；两个来源互不影响
func (l *Loader) Load(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	var errs []error

	if l.loadFromDB && l.faqs != nil {
		dbEntries, err := l.loadDatabase(ctx)
		if err != nil {
			l.logger.Error("从数据库加载FAQ失败", zap.Error(err))
			errs = append(errs, err)
		} else {
			l.logger.Info("从数据库加载FAQ", zap.Int("count", len(dbEntries)))
		}
		entries = append(entries, dbEntries...)
	}

	fileEntries, err := l.loadFiles()
	if err != nil {
		l.logger.Error("从文件加载知识库失败", zap.String("dir", l.dir), zap.Error(err))
		errs = append(errs, err)
	} else {
		l.logger.Info("从文件加载知识库", zap.String("dir", l.dir), zap.Int("count", len(fileEntries)))
	}
	entries = append(entries, fileEntries...)

	return entries, errors.Join(errs...)
}

func (l *Loader) loadDatabase(ctx context.Context) ([]Entry, error) {
	faqs, err := l.faqs.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(faqs))
	for _, faq := range faqs {
		entries = append(entries, entryFromFAQ(faq))
	}
	return entries, nil
}

// entryFromFAQ 关键词已按权重降序
func entryFromFAQ(faq models.FAQ) Entry {
	var manual, auto []string
	for _, key := range faq.Keys {
		kw := strings.TrimSpace(key.Keyword)
		if kw == "" {
			continue
		}
		switch key.KeywordType {
		case models.KeywordTypeManual:
			manual = append(manual, kw)
		case models.KeywordTypeAuto:
			auto = append(auto, kw)
		}
	}

	entry := newEntry(faq.Question, faq.Answer, fmt.Sprintf("db_faq_%d", faq.ID), manual, auto)
	entry.Category = faq.Category
	entry.DBID = faq.ID
	entry.ViewCount = faq.ViewCount
	entry.LikeCount = faq.LikeCount
	entry.IsManual = faq.IsManual
	entry.origin = OriginDatabase
	return entry
}

// loadFiles 按文件名顺序解析目录下的 *.md
func (l *Loader) loadFiles() ([]Entry, error) {
	if l.dir == "" {
		return nil, nil
	}
	info, err := os.Stat(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("知识库目录不存在", zap.String("dir", l.dir))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge path is not a directory: %s", l.dir)
	}

	paths, err := filepath.Glob(filepath.Join(l.dir, "*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var entries []Entry
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Error("读取知识库文件失败", zap.String("file", path), zap.Error(err))
			continue
		}
		name := filepath.Base(path)
		parsed := ParseMarkdown(string(data), name, l.logger)
		l.logger.Debug("解析知识库文件", zap.String("file", name), zap.Int("count", len(parsed)))
		entries = append(entries, parsed...)
	}
	return entries, nil
}
