package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
)

// Repository manages persistence for account balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket) (*models.AccountBalance, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType) ([]models.AccountBalance, error)
	AddCents(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket, amount int64) error
	SubtractCentsIf(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket, amount int64) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket) (*models.AccountBalance, error) {
	var row models.AccountBalance
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND owner_type = ? AND bucket = ?", ownerID, ownerType, bucket).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType) ([]models.AccountBalance, error) {
	var rows []models.AccountBalance
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND owner_type = ?", ownerID, ownerType).
		Order("bucket ASC").
		Find(&rows).Error
	return rows, err
}

// AddCents upserts the bucket row and increments it atomically.
func (r *repository) AddCents(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket, amount int64) error {
	row := models.AccountBalance{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		OwnerType:   ownerType,
		Bucket:      bucket,
		AmountCents: amount,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "owner_type"}, {Name: "bucket"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount_cents": gorm.Expr("account_balances.amount_cents + ?", amount),
			"updated_at":   time.Now(),
		}),
	}).Create(&row).Error
}

// SubtractCentsIf decrements the bucket only when the balance covers the
// amount. The returned row count is zero when funds were insufficient or the
// bucket does not exist; callers decide how to react.
func (r *repository) SubtractCentsIf(ctx context.Context, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket, amount int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.AccountBalance{}).
		Where("owner_id = ? AND owner_type = ? AND bucket = ? AND amount_cents >= ?", ownerID, ownerType, bucket, amount).
		Updates(map[string]any{
			"amount_cents": gorm.Expr("amount_cents - ?", amount),
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}
