// Package repository 提供了数据访问层的实现。
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studynet-go/internal/errs"
	"studynet-go/internal/model"
)

// ParentChunkRepository 定义了文档与父块的存储操作。
// 父块拥有子块的生命周期；二者只在摄取时创建、整库清空时删除。
type ParentChunkRepository interface {
	CreateDocument(doc *model.Document) error
	BatchCreateParents(chunks []*model.ParentChunk) error
	FindParentByID(id string) (*model.ParentChunk, error)
	DeleteByDocumentID(documentID string) error
	TruncateAll() error
	CountParents() (int64, error)
	CountDocuments() (int64, error)
	FindDocumentBySource(sourceName string) (*model.Document, error)
}

type parentChunkRepository struct {
	db *gorm.DB
}

// NewParentChunkRepository 创建一个新的 ParentChunkRepository 实例，
// 并自动迁移相关表结构。
func NewParentChunkRepository(db *gorm.DB) (ParentChunkRepository, error) {
	if err := db.AutoMigrate(&model.Document{}, &model.ParentChunk{}); err != nil {
		return nil, fmt.Errorf("迁移文档表结构失败: %w", err)
	}
	return &parentChunkRepository{db: db}, nil
}

func (r *parentChunkRepository) CreateDocument(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("写入文档记录失败: %w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// BatchCreateParents 批量创建父块记录。
func (r *parentChunkRepository) BatchCreateParents(chunks []*model.ParentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(chunks, 100).Error; err != nil {
		return fmt.Errorf("批量写入父块失败: %w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// FindParentByID 按主键查找父块，缺失时返回 ErrNotFound，调用方跳过该结果。
func (r *parentChunkRepository) FindParentByID(id string) (*model.ParentChunk, error) {
	var chunk model.ParentChunk
	err := r.db.First(&chunk, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("父块 %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("查询父块失败: %w: %v", errs.ErrStoreUnavailable, err)
	}
	return &chunk, nil
}

// DeleteByDocumentID 删除某文档的全部父块（重新摄取前的幂等清理）。
func (r *parentChunkRepository) DeleteByDocumentID(documentID string) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.ParentChunk{}).Error; err != nil {
		return fmt.Errorf("清理文档 %s 的父块失败: %w", documentID, err)
	}
	return r.db.Where("id = ?", documentID).Delete(&model.Document{}).Error
}

// TruncateAll 清空全部文档与父块。
func (r *parentChunkRepository) TruncateAll() error {
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.ParentChunk{}).Error; err != nil {
		return fmt.Errorf("清空父块失败: %w", err)
	}
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("清空文档失败: %w", err)
	}
	return nil
}

func (r *parentChunkRepository) CountParents() (int64, error) {
	var count int64
	err := r.db.Model(&model.ParentChunk{}).Count(&count).Error
	return count, err
}

func (r *parentChunkRepository) CountDocuments() (int64, error) {
	var count int64
	err := r.db.Model(&model.Document{}).Count(&count).Error
	return count, err
}

// FindDocumentBySource 按来源名查找文档，用于种子目录的幂等导入。
func (r *parentChunkRepository) FindDocumentBySource(sourceName string) (*model.Document, error) {
	var doc model.Document
	err := r.db.First(&doc, "source_name = ?", sourceName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("文档 %s: %w", sourceName, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
