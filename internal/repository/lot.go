package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/jpark/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// LotRepository 场库拓扑与车位状态仓库
// 整个部署只管理一个停车场，聚合读取即全量加载
type LotRepository struct {
	db *DB
}

// NewLotRepository 创建场库仓库
func NewLotRepository(db *DB) *LotRepository {
	return &LotRepository{db: db}
}

// GetLot 加载完整聚合：场库 -> 楼层 -> 车位/入口
func (r *LotRepository) GetLot(ctx context.Context) (*models.ParkingLot, error) {
	q := r.db.q(ctx)

	lot := &models.ParkingLot{}
	var cornersJSON, dimensionJSON []byte
	err := q.QueryRow(ctx, `
		SELECT id, name, latitude, longitude, rotation, corners,
		       COALESCE(dimension, 'null'), COALESCE(picture_url, '')
		FROM parking_lots LIMIT 1
	`).Scan(&lot.ID, &lot.Name, &lot.Location.Lat, &lot.Location.Lng,
		&lot.Rotation, &cornersJSON, &dimensionJSON, &lot.PictureURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select parking lot: %w", err)
	}

	if err := json.Unmarshal(cornersJSON, &lot.Corners); err != nil {
		return nil, fmt.Errorf("decode corners: %w", err)
	}
	if string(dimensionJSON) != "null" {
		if err := json.Unmarshal(dimensionJSON, &lot.Dimension); err != nil {
			return nil, fmt.Errorf("decode dimension: %w", err)
		}
	}

	floors, err := r.loadFloors(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	lot.Floors = floors
	return lot, nil
}

// loadFloors 加载楼层及其嵌套车位/入口
func (r *LotRepository) loadFloors(ctx context.Context, lotID int64) ([]models.Floor, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, name, level, level_height, map_id, map_url, map_scale
		FROM floors WHERE lot_id = $1 ORDER BY level
	`, lotID)
	if err != nil {
		return nil, fmt.Errorf("select floors: %w", err)
	}
	defer rows.Close()

	var floors []models.Floor
	for rows.Next() {
		var f models.Floor
		if err := rows.Scan(&f.ID, &f.Name, &f.Level, &f.LevelHeight,
			&f.Map.ID, &f.Map.URL, &f.Map.Scale); err != nil {
			return nil, fmt.Errorf("scan floor: %w", err)
		}
		floors = append(floors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate floors: %w", err)
	}

	for i := range floors {
		spaces, err := r.spacesByFloor(ctx, floors[i].ID)
		if err != nil {
			return nil, err
		}
		floors[i].ParkingSpaces = spaces

		entrances, err := r.entrancesByFloor(ctx, floors[i].ID)
		if err != nil {
			return nil, err
		}
		floors[i].Entrances = entrances
	}
	return floors, nil
}

const spaceColumns = `id, floor_id, name, category, pos_x, pos_y,
	COALESCE(latitude, 0), COALESCE(longitude, 0), cost, state, is_accessible,
	reservation, updated_at`

func scanSpace(row pgx.Row) (*models.ParkingSpace, error) {
	var s models.ParkingSpace
	var reservationJSON []byte
	err := row.Scan(&s.ID, &s.FloorID, &s.Name, &s.Category, &s.Pos.X, &s.Pos.Y,
		&s.Coord.Lat, &s.Coord.Lng, &s.Cost, &s.State, &s.IsAccessible,
		&reservationJSON, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(reservationJSON) > 0 {
		s.Reservation = &models.ReservationSummary{}
		if err := json.Unmarshal(reservationJSON, s.Reservation); err != nil {
			return nil, fmt.Errorf("decode reservation summary: %w", err)
		}
	}
	return &s, nil
}

func (r *LotRepository) spacesByFloor(ctx context.Context, floorID int64) ([]models.ParkingSpace, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, `
		SELECT `+spaceColumns+`
		FROM parking_spaces WHERE floor_id = $1 AND state <> 'deleted' ORDER BY id
	`, floorID)
	if err != nil {
		return nil, fmt.Errorf("select parking spaces: %w", err)
	}
	defer rows.Close()

	var spaces []models.ParkingSpace
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parking space: %w", err)
		}
		spaces = append(spaces, *s)
	}
	return spaces, rows.Err()
}

func (r *LotRepository) entrancesByFloor(ctx context.Context, floorID int64) ([]models.Entrance, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, floor_id, name, category, pos_x, pos_y,
		       COALESCE(latitude, 0), COALESCE(longitude, 0)
		FROM entrances WHERE floor_id = $1 ORDER BY id
	`, floorID)
	if err != nil {
		return nil, fmt.Errorf("select entrances: %w", err)
	}
	defer rows.Close()

	var entrances []models.Entrance
	for rows.Next() {
		var e models.Entrance
		if err := rows.Scan(&e.ID, &e.FloorID, &e.Name, &e.Category,
			&e.Pos.X, &e.Pos.Y, &e.Coord.Lat, &e.Coord.Lng); err != nil {
			return nil, fmt.Errorf("scan entrance: %w", err)
		}
		entrances = append(entrances, e)
	}
	return entrances, rows.Err()
}

// FindSpace 按 ID 查找车位，附带所在楼层
func (r *LotRepository) FindSpace(ctx context.Context, id int64) (*models.ParkingSpace, *models.Floor, error) {
	q := r.db.q(ctx)

	space, err := scanSpace(q.QueryRow(ctx, `
		SELECT `+spaceColumns+`
		FROM parking_spaces WHERE id = $1 AND state <> 'deleted'
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("select parking space: %w", err)
	}

	var floor models.Floor
	err = q.QueryRow(ctx, `
		SELECT id, name, level, level_height, map_id, map_url, map_scale
		FROM floors WHERE id = $1
	`, space.FloorID).Scan(&floor.ID, &floor.Name, &floor.Level, &floor.LevelHeight,
		&floor.Map.ID, &floor.Map.URL, &floor.Map.Scale)
	if err != nil {
		return nil, nil, fmt.Errorf("select floor: %w", err)
	}

	return space, &floor, nil
}

// ListSpaces 列出全部未删除车位（统计扫描与查询投影共用）
func (r *LotRepository) ListSpaces(ctx context.Context) ([]models.ParkingSpace, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, `
		SELECT `+spaceColumns+`
		FROM parking_spaces WHERE state <> 'deleted' ORDER BY floor_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("select parking spaces: %w", err)
	}
	defer rows.Close()

	var spaces []models.ParkingSpace
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan parking space: %w", err)
		}
		spaces = append(spaces, *s)
	}
	return spaces, rows.Err()
}

// CompareAndSetState 条件置位：仅当前状态等于 from 时更新，返回是否命中
// 这是车位转换在存储层的乐观并发控制，输掉竞争的一方拿到 false
func (r *LotRepository) CompareAndSetState(ctx context.Context, id int64, from, to string, summary *models.ReservationSummary) (bool, error) {
	q := r.db.q(ctx)

	var summaryJSON []byte
	if summary != nil {
		var err error
		summaryJSON, err = json.Marshal(summary)
		if err != nil {
			return false, fmt.Errorf("encode reservation summary: %w", err)
		}
	}

	tag, err := q.Exec(ctx, `
		UPDATE parking_spaces SET state = $3, reservation = $4, updated_at = NOW()
		WHERE id = $1 AND state = $2
	`, id, from, to, summaryJSON)
	if err != nil {
		return false, fmt.Errorf("update parking space state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ForceState 无条件置位并清空预约摘要（过期回收的兼容行为）
func (r *LotRepository) ForceState(ctx context.Context, id int64, to string) error {
	q := r.db.q(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE parking_spaces SET state = $2, reservation = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, to)
	if err != nil {
		return fmt.Errorf("force parking space state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceLot 整体替换场库拓扑（室内地图导入的落地），车位状态重置为 empty
func (r *LotRepository) ReplaceLot(ctx context.Context, lot *models.ParkingLot) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		q := r.db.q(ctx)

		if _, err := q.Exec(ctx, `DELETE FROM parking_lots`); err != nil {
			return fmt.Errorf("delete parking lots: %w", err)
		}

		cornersJSON, err := json.Marshal(lot.Corners)
		if err != nil {
			return fmt.Errorf("encode corners: %w", err)
		}
		dimensionJSON, err := json.Marshal(lot.Dimension)
		if err != nil {
			return fmt.Errorf("encode dimension: %w", err)
		}

		_, err = q.Exec(ctx, `
			INSERT INTO parking_lots (id, name, latitude, longitude, rotation, corners, dimension, picture_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, lot.ID, lot.Name, lot.Location.Lat, lot.Location.Lng, lot.Rotation,
			cornersJSON, dimensionJSON, lot.PictureURL)
		if err != nil {
			return fmt.Errorf("insert parking lot: %w", err)
		}

		for _, f := range lot.Floors {
			_, err = q.Exec(ctx, `
				INSERT INTO floors (id, lot_id, name, level, level_height, map_id, map_url, map_scale)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, f.ID, lot.ID, f.Name, f.Level, f.LevelHeight, f.Map.ID, f.Map.URL, f.Map.Scale)
			if err != nil {
				return fmt.Errorf("insert floor: %w", err)
			}

			for _, s := range f.ParkingSpaces {
				state := s.State
				if state == "" {
					state = models.StateEmpty
				}
				_, err = q.Exec(ctx, `
					INSERT INTO parking_spaces (id, floor_id, name, category, pos_x, pos_y,
						latitude, longitude, cost, state, is_accessible, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				`, s.ID, f.ID, s.Name, s.Category, s.Pos.X, s.Pos.Y,
					s.Coord.Lat, s.Coord.Lng, s.Cost, state, s.IsAccessible, time.Now())
				if err != nil {
					return fmt.Errorf("insert parking space: %w", err)
				}
			}

			for _, e := range f.Entrances {
				_, err = q.Exec(ctx, `
					INSERT INTO entrances (id, floor_id, name, category, pos_x, pos_y, latitude, longitude)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				`, e.ID, f.ID, e.Name, e.Category, e.Pos.X, e.Pos.Y, e.Coord.Lat, e.Coord.Lng)
				if err != nil {
					return fmt.Errorf("insert entrance: %w", err)
				}
			}
		}
		return nil
	})
}
