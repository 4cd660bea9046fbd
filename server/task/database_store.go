// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	a2a "github.com/go-a2a/a2a-server"
)

// DefaultSQLiteDSN keeps the database in memory, shared by every connection of the pool.
const DefaultSQLiteDSN = "file::memory:?cache=shared"

// TaskModel is the row layout of a stored task.
// The full snapshot is kept as JSON, with the queried columns split out.
type TaskModel struct {
	ID        string `gorm:"primaryKey;size:128"`
	ContextID string `gorm:"index;size:128"`
	State     string `gorm:"index;size:32"`
	Data      []byte `gorm:"not null"`
	Seq       int64  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the default table name of [TaskModel].
func (TaskModel) TableName() string { return "tasks" }

func newTaskModel(task *a2a.Task) (*TaskModel, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	return &TaskModel{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Data:      data,
		Seq:       time.Now().UnixNano(),
	}, nil
}

// ToTask decodes the stored snapshot.
func (m *TaskModel) ToTask() (*a2a.Task, error) {
	var task a2a.Task
	if err := json.Unmarshal(m.Data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// DatabaseTaskStore is a [TaskStore] backed by GORM.
type DatabaseTaskStore struct {
	db          *gorm.DB
	tableName   string
	createTable bool
}

var _ TaskStore = (*DatabaseTaskStore)(nil)

// DatabaseTaskStoreConfig holds configuration for DatabaseTaskStore.
type DatabaseTaskStoreConfig struct {
	DB          *gorm.DB
	TableName   string // Optional, defaults to "tasks"
	CreateTable bool   // Whether to create the table in Initialize
}

// NewDatabaseTaskStore creates a new DatabaseTaskStore.
func NewDatabaseTaskStore(config DatabaseTaskStoreConfig) (*DatabaseTaskStore, error) {
	if config.DB == nil {
		return nil, errors.New("database connection cannot be nil")
	}

	tableName := config.TableName
	if tableName == "" {
		tableName = TaskModel{}.TableName()
	}

	return &DatabaseTaskStore{
		db:          config.DB,
		tableName:   tableName,
		createTable: config.CreateTable,
	}, nil
}

// OpenSQLite opens a SQLite database for a [DatabaseTaskStore].
// An empty dsn uses [DefaultSQLiteDSN].
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// one connection serializes writers and keeps an in-memory database alive
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func (s *DatabaseTaskStore) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.tableName)
}

// Save upserts a task.
func (s *DatabaseTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if err := validate(task); err != nil {
		return newStoreError("save", taskIDOf(task), err)
	}
	return s.save(s.table(ctx), task)
}

func (s *DatabaseTaskStore) save(db *gorm.DB, task *a2a.Task) error {
	model, err := newTaskModel(task)
	if err != nil {
		return newStoreError("save", task.ID, err)
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"context_id", "state", "data", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return newStoreError("save", task.ID, err)
	}
	return nil
}

// Get retrieves a task by its ID from the database.
func (s *DatabaseTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	return s.get(s.table(ctx), taskID)
}

func (s *DatabaseTaskStore) get(db *gorm.DB, taskID string) (*a2a.Task, error) {
	var model TaskModel
	if err := db.Where("id = ?", taskID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &a2a.TaskNotFoundError{TaskID: taskID}
		}
		return nil, newStoreError("get", taskID, err)
	}

	task, err := model.ToTask()
	if err != nil {
		return nil, newStoreError("get", taskID, err)
	}
	return task, nil
}

// Update atomically replaces the task inside a transaction.
func (s *DatabaseTaskStore) Update(ctx context.Context, taskID string, fn UpdateFunc) (*a2a.Task, error) {
	var next *a2a.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Table(s.tableName)
		current, err := s.get(tx, taskID)
		if err != nil {
			return err
		}
		if next, err = fn(current); err != nil {
			return err
		}
		if err := validate(next); err != nil {
			return newStoreError("update", taskID, err)
		}
		return s.save(tx, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes a task from the database.
func (s *DatabaseTaskStore) Delete(ctx context.Context, taskID string) error {
	result := s.table(ctx).Where("id = ?", taskID).Delete(&TaskModel{})
	if result.Error != nil {
		return newStoreError("delete", taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return &a2a.TaskNotFoundError{TaskID: taskID}
	}
	return nil
}

// List retrieves tasks in creation order with optional filtering.
func (s *DatabaseTaskStore) List(ctx context.Context, contextID string, limit, offset int) ([]*a2a.Task, error) {
	db := s.table(ctx)
	if contextID != "" {
		db = db.Where("context_id = ?", contextID)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var models []TaskModel
	if err := db.Order("seq").Order("id").Find(&models).Error; err != nil {
		return nil, newStoreError("list", "", err)
	}

	tasks := make([]*a2a.Task, len(models))
	for i := range models {
		task, err := models[i].ToTask()
		if err != nil {
			return nil, newStoreError("list", models[i].ID, err)
		}
		tasks[i] = task
	}
	return tasks, nil
}

// Count returns the number of stored tasks.
func (s *DatabaseTaskStore) Count(ctx context.Context, contextID string) (int64, error) {
	query := s.table(ctx).Model(&TaskModel{})
	if contextID != "" {
		query = query.Where("context_id = ?", contextID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, newStoreError("count", "", err)
	}
	return count, nil
}

// Initialize creates the table when configured to.
func (s *DatabaseTaskStore) Initialize(ctx context.Context) error {
	if !s.createTable {
		return nil
	}
	if err := s.table(ctx).AutoMigrate(&TaskModel{}); err != nil {
		return newStoreError("initialize", "", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *DatabaseTaskStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return newStoreError("close", "", err)
	}
	return sqlDB.Close()
}
