package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ruiquan-inspection/internal/domain"
)

// PostgresLedgerMirrorRepository 帳本鏡像 Repository 實作
//
// recorded_at 存帳本的原始時間戳「字串」而非 timestamptz：狀態跟進
// 必須逐字比對，任何解析/重排都可能和帳本端的字串鍵對不上。
type PostgresLedgerMirrorRepository struct {
	db *sql.DB
}

func NewPostgresLedgerMirrorRepository(db *sql.DB) *PostgresLedgerMirrorRepository {
	return &PostgresLedgerMirrorRepository{db: db}
}

// 确保实现了接口
var _ LedgerMirrorRepository = (*PostgresLedgerMirrorRepository)(nil)

// SaveRow 寫入一列鏡像（同鍵覆寫）
func (r *PostgresLedgerMirrorRepository) SaveRow(ctx context.Context, row domain.InspectionRecord) error {
	if row.Timestamp == "" || row.PartNo == "" {
		return fmt.Errorf("timestamp and part_no are required")
	}

	query := `
		INSERT INTO ledger_mirror (
			recorded_at,
			model,
			part_no,
			part_name,
			inspection_type,
			weight,
			length,
			material_ok,
			change_point,
			action_taken,
			status,
			manager_comment,
			result,
			image_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (recorded_at, part_no) DO UPDATE SET
			status = EXCLUDED.status,
			manager_comment = EXCLUDED.manager_comment,
			change_point = EXCLUDED.change_point,
			image_url = EXCLUDED.image_url
	`

	_, err := r.db.ExecContext(ctx, query,
		row.Timestamp, row.Model, row.PartNo, row.PartName, row.InspectionType,
		row.Weight, row.Length, row.MaterialOK, row.ChangePoint, row.ActionTaken,
		row.Status, row.ManagerComment, row.Result, row.Image,
	)
	if err != nil {
		return fmt.Errorf("failed to save mirror row: %w", err)
	}
	return nil
}

// MarkStatus 跟進狀態更新；applyFamily 時波及同時間戳的整個品番家族
func (r *PostgresLedgerMirrorRepository) MarkStatus(ctx context.Context, timestamp, partNo, status, managerComment string, applyFamily bool) (int64, error) {
	if timestamp == "" || partNo == "" {
		return 0, fmt.Errorf("timestamp and part_no are required")
	}

	where := "recorded_at = $1 AND part_no = $2"
	args := []any{timestamp, partNo, status, managerComment}
	if applyFamily {
		base := domain.BasePartNo(partNo)
		family := []string{base, base + "-R", base + "-L", base + "-1", base + "-2"}
		placeholders := make([]string, len(family))
		args = []any{timestamp}
		for i, p := range family {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, p)
		}
		where = "recorded_at = $1 AND part_no IN (" + strings.Join(placeholders, ", ") + ")"
		args = append(args, status, managerComment)
	}

	n := len(args)
	query := fmt.Sprintf(`
		UPDATE ledger_mirror
		SET status = $%d, manager_comment = $%d
		WHERE %s
	`, n-1, n, where)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark mirror status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// ListRows 分頁查詢，新到舊（mirror_id 遞增近似時間序）
func (r *PostgresLedgerMirrorRepository) ListRows(ctx context.Context, filters MirrorFilters, page, size int) ([]*domain.InspectionRecord, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argN := 1

	if filters.Model != "" {
		where = append(where, fmt.Sprintf("model = $%d", argN))
		args = append(args, filters.Model)
		argN++
	}
	if filters.PartNo != "" {
		where = append(where, fmt.Sprintf("part_no = $%d", argN))
		args = append(args, filters.PartNo)
		argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("mirrored_at >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("mirrored_at <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}

	queryCount := `SELECT COUNT(*) FROM ledger_mirror WHERE ` + strings.Join(where, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count mirror rows: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	argsList := append(args, size, offset)
	query := `
		SELECT
			recorded_at,
			model,
			part_no,
			part_name,
			inspection_type,
			weight,
			length,
			material_ok,
			change_point,
			action_taken,
			status,
			manager_comment,
			result,
			image_url
		FROM ledger_mirror
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY mirror_id DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, query, argsList...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list mirror rows: %w", err)
	}
	defer rows.Close()

	var records []*domain.InspectionRecord
	for rows.Next() {
		var rec domain.InspectionRecord
		if err := rows.Scan(
			&rec.Timestamp, &rec.Model, &rec.PartNo, &rec.PartName, &rec.InspectionType,
			&rec.Weight, &rec.Length, &rec.MaterialOK, &rec.ChangePoint, &rec.ActionTaken,
			&rec.Status, &rec.ManagerComment, &rec.Result, &rec.Image,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan mirror row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate mirror rows: %w", err)
	}

	return records, total, nil
}
