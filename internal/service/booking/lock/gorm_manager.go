// internal/service/booking/lock/gorm_manager.go
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"voyago/internal/pkg/logger"
	"voyago/internal/zookeeper"
)

// DistributedLockModel 是锁表的 GORM 模型
type DistributedLockModel struct {
	LockID       string    `gorm:"column:lock_id;primaryKey;size:36"`
	ResourceKey  string    `gorm:"column:resource_key;size:191;index:idx_resource,priority:1"`
	ResourceType string    `gorm:"column:resource_type;size:16;index:idx_resource,priority:2"`
	Owner        string    `gorm:"column:owner;size:36;index"`
	Quantity     int       `gorm:"column:quantity"`
	AcquiredAt   time.Time `gorm:"column:acquired_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index"`
}

func (DistributedLockModel) TableName() string { return "distributed_locks" }

// ResourceCapacityModel 记录每个资源的已知容量，缺行时使用默认容量
type ResourceCapacityModel struct {
	ResourceKey  string `gorm:"column:resource_key;primaryKey;size:191"`
	ResourceType string `gorm:"column:resource_type;primaryKey;size:16"`
	Capacity     int    `gorm:"column:capacity"`
}

func (ResourceCapacityModel) TableName() string { return "resource_capacities" }

// GormManager 是 Manager 的 MySQL 实现。
// 容量检查和插入之间用 ZooKeeper 按 resourceKey 串行化，
// 避免多个实例同时通过容量检查导致超卖。
type GormManager struct {
	db              *gorm.DB
	zk              *zookeeper.Conn
	defaultCapacity int
}

// NewGormManager 创建 MySQL 锁管理器。
func NewGormManager(db *gorm.DB, zkConn *zookeeper.Conn, defaultCapacity int) *GormManager {
	return &GormManager{db: db, zk: zkConn, defaultCapacity: defaultCapacity}
}

// Acquire 见 Manager 接口约定。
func (m *GormManager) Acquire(ctx context.Context, resourceKey string, resourceType ResourceType, owner string, timeout time.Duration, quantity int) (*Lock, error) {
	if quantity <= 0 {
		quantity = 1
	}

	// 同一个 resourceKey 的 "容量检查 + 插入" 必须互斥
	mutex, err := zookeeper.NewMutex(m.zk, resourceKey+":"+string(resourceType))
	if err != nil {
		return nil, err
	}
	if err := mutex.Acquire(ctx); err != nil {
		return nil, err
	}
	defer mutex.Release()

	now := time.Now()
	capacity, err := m.capacityFor(ctx, resourceKey, resourceType)
	if err != nil {
		return nil, err
	}

	var held int64
	err = m.db.WithContext(ctx).
		Model(&DistributedLockModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("resource_key = ? AND resource_type = ? AND expires_at > ?", resourceKey, string(resourceType), now).
		Scan(&held).Error
	if err != nil {
		return nil, err
	}

	if held+int64(quantity) > int64(capacity) {
		logger.Ctx(ctx).Warn().
			Str("resource_key", resourceKey).
			Str("resource_type", string(resourceType)).
			Int64("held", held).
			Int("requested", quantity).
			Int("capacity", capacity).
			Msg("lock acquisition rejected: capacity exhausted")
		return nil, nil
	}

	model := DistributedLockModel{
		LockID:       uuid.NewString(),
		ResourceKey:  resourceKey,
		ResourceType: string(resourceType),
		Owner:        owner,
		Quantity:     quantity,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(timeout),
	}
	if err := m.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return toDomainLock(&model), nil
}

// Extend 见 Manager 接口约定。
func (m *GormManager) Extend(ctx context.Context, lockID string, owner string, additionalTime time.Duration) (bool, error) {
	now := time.Now()
	result := m.db.WithContext(ctx).
		Model(&DistributedLockModel{}).
		Where("lock_id = ? AND owner = ? AND expires_at > ?", lockID, owner, now).
		Update("expires_at", gorm.Expr("DATE_ADD(expires_at, INTERVAL ? SECOND)", int64(additionalTime.Seconds())))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseAllByOwner 见 Manager 接口约定。
func (m *GormManager) ReleaseAllByOwner(ctx context.Context, owner string) (int, error) {
	result := m.db.WithContext(ctx).
		Where("owner = ?", owner).
		Delete(&DistributedLockModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// GetLocksByOwner 见 Manager 接口约定。
func (m *GormManager) GetLocksByOwner(ctx context.Context, owner string) ([]*Lock, error) {
	var models []DistributedLockModel
	err := m.db.WithContext(ctx).
		Where("owner = ? AND expires_at > ?", owner, time.Now()).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	locks := make([]*Lock, 0, len(models))
	for i := range models {
		locks = append(locks, toDomainLock(&models[i]))
	}
	return locks, nil
}

// CleanupExpired 删除过期锁并统计，清扫器周期调用。
func (m *GormManager) CleanupExpired(ctx context.Context) (Statistics, error) {
	now := time.Now()
	var stats Statistics

	var expired []DistributedLockModel
	if err := m.db.WithContext(ctx).Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
		return stats, err
	}
	if len(expired) > 0 {
		if err := m.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&DistributedLockModel{}).Error; err != nil {
			return stats, err
		}
		var total time.Duration
		for i := range expired {
			total += expired[i].ExpiresAt.Sub(expired[i].AcquiredAt)
		}
		stats.ExpiredCount = len(expired)
		stats.AvgHeldDuration = total / time.Duration(len(expired))
	}

	var active int64
	if err := m.db.WithContext(ctx).Model(&DistributedLockModel{}).Where("expires_at > ?", now).Count(&active).Error; err != nil {
		return stats, err
	}
	stats.ActiveCount = int(active)
	return stats, nil
}

func (m *GormManager) capacityFor(ctx context.Context, resourceKey string, resourceType ResourceType) (int, error) {
	var row ResourceCapacityModel
	err := m.db.WithContext(ctx).
		Where("resource_key = ? AND resource_type = ?", resourceKey, string(resourceType)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return m.defaultCapacity, nil
		}
		return 0, err
	}
	return row.Capacity, nil
}

func toDomainLock(model *DistributedLockModel) *Lock {
	return &Lock{
		LockID:       model.LockID,
		ResourceKey:  model.ResourceKey,
		ResourceType: ResourceType(model.ResourceType),
		Owner:        model.Owner,
		Quantity:     model.Quantity,
		AcquiredAt:   model.AcquiredAt,
		ExpiresAt:    model.ExpiresAt,
	}
}
