package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AnalysisRecord 表示一次分析任务的落库结构。
type AnalysisRecord struct {
	ID        int64
	Query     string
	Dataset   string
	Code      string
	Output    string
	Observes  string
	CreatedAt int64
	UpdatedAt int64
}

// AnalysisRepository 抽象分析记录的持久化接口。
type AnalysisRepository interface {
	Create(ctx context.Context, record *AnalysisRecord) error
	ListLatest(ctx context.Context, limit int) ([]AnalysisRecord, error)
}

// ErrUnsupportedDriver 在配置了未知的存储驱动时返回。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// MemoryAnalysisRepository 使用本地 JSON 文件模拟 MySQL 的效果，方便迭代开发。
type MemoryAnalysisRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []AnalysisRecord
}

// NewMemoryAnalysisRepository 创建一个内存分析记录仓库。
func NewMemoryAnalysisRepository(dataDir string) (*MemoryAnalysisRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "analyses.log")
	repo := &MemoryAnalysisRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Create 以追加写的方式记录分析结果。
func (m *MemoryAnalysisRepository) Create(_ context.Context, record *AnalysisRecord) error {
	if record == nil {
		return errors.New("分析记录不能为空")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开分析日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化分析记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入分析日志失败: %w", err)
	}

	m.records = append([]AnalysisRecord{*record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的分析记录，按时间倒序排列。
func (m *MemoryAnalysisRepository) ListLatest(_ context.Context, limit int) ([]AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	results := make([]AnalysisRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryAnalysisRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取分析日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var restored []AnalysisRecord
	for scanner.Scan() {
		var record AnalysisRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]AnalysisRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析分析日志失败: %w", err)
	}

	if len(restored) > 512 {
		restored = restored[:512]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLAnalysisRepository 使用真实的 MySQL 数据库存储分析记录。
type SQLAnalysisRepository struct {
	db *sql.DB
}

// NewSQLAnalysisRepository 创建连接池并执行数据库迁移。
func NewSQLAnalysisRepository(ctx context.Context, cfg Config) (*SQLAnalysisRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLAnalysisRepository{db: db}, nil
}

// Create 将分析记录写入 MySQL。
func (s *SQLAnalysisRepository) Create(ctx context.Context, record *AnalysisRecord) error {
	if record == nil {
		return errors.New("分析记录不能为空")
	}

	const stmt = `INSERT INTO analyses
        (query, dataset, code, output, observes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, stmt,
		record.Query,
		record.Dataset,
		record.Code,
		record.Output,
		record.Observes,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// ListLatest 查询最近的若干条分析记录。
func (s *SQLAnalysisRepository) ListLatest(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, query, dataset, code, output, observes, created_at, updated_at
        FROM analyses ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var record AnalysisRecord
		if err := rows.Scan(&record.ID, &record.Query, &record.Dataset, &record.Code, &record.Output, &record.Observes, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("解析分析记录失败: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历分析记录失败: %w", err)
	}

	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLAnalysisRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
