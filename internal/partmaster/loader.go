// Package partmaster 品番主檔載入：xlsx 表格 → PartMaster 列。
// 欄位一律以自由文字進來，數值正規化交給 specparse——不假設
// 主檔有任何預先清洗好的數值欄。
package partmaster

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"ruiquan-inspection/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 表頭別名：主檔歷經多版，帶單位與不帶單位的表頭都要認得
// （對應 data 維護者改過 CSV 表頭的歷史）
var headerAliases = map[string]string{
	"車型":       "model",
	"品番":       "part_no",
	"品名":       "part_name",
	"標準重量(g)":  "std_weight",
	"重量":       "std_weight",
	"重量上限(g)":  "weight_max",
	"重量上限":     "weight_max",
	"重量下限(g)":  "weight_min",
	"重量下限":     "weight_min",
	"標準長度(mm)": "std_length",
	"標準長度":     "std_length",
	"長度上限(mm)": "length_max",
	"長度上限":     "length_max",
	"長度下限(mm)": "length_min",
	"長度下限":     "length_min",
	"原料編號":     "material_id",
	"原料名稱":     "material_name",
	"重點管理項目1":  "key_point_1",
	"重點管理項目2":  "key_point_2",
	"重點管理項目3":  "key_point_3",
	"成品寫真":     "product_image",
	"異常履歷寫真":   "defect_image_1",
	"異常履歷寫真1":  "defect_image_1",
	"異常履歷寫真2":  "defect_image_2",
	"異常履歷寫真3":  "defect_image_3",
	"模穴標記":     "cavity_override",
}

// Loader 讀 xlsx 主檔並做短效快取（TTL 到期或顯式 Refresh 後重讀）
// 一個 session 內主檔視為不可變
type Loader struct {
	path   string
	sheet  string
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.RWMutex
	parts    []domain.PartMaster
	loadedAt time.Time
}

func NewLoader(path, sheet string, ttl time.Duration, logger *zap.Logger) *Loader {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Loader{path: path, sheet: sheet, ttl: ttl, logger: logger}
}

// Parts 取主檔全列（快取內直接回；過期重讀）
func (l *Loader) Parts() ([]domain.PartMaster, error) {
	l.mu.RLock()
	if l.parts != nil && time.Since(l.loadedAt) < l.ttl {
		parts := l.parts
		l.mu.RUnlock()
		return parts, nil
	}
	l.mu.RUnlock()
	return l.Refresh()
}

// Refresh 顯式重讀主檔（快取失效入口）
func (l *Loader) Refresh() ([]domain.PartMaster, error) {
	parts, err := l.load()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.parts = parts
	l.loadedAt = time.Now()
	l.mu.Unlock()

	l.logger.Info("part master loaded",
		zap.String("path", l.path),
		zap.Int("parts", len(parts)),
	)
	return parts, nil
}

// Models 主檔上的車型清單（去重、保序）
func (l *Loader) Models() ([]string, error) {
	parts, err := l.Parts()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	models := make([]string, 0, 8)
	for _, p := range parts {
		if p.Model != "" && !seen[p.Model] {
			seen[p.Model] = true
			models = append(models, p.Model)
		}
	}
	return models, nil
}

// PartsForModel 指定車型下的品番列
func (l *Loader) PartsForModel(model string) ([]domain.PartMaster, error) {
	parts, err := l.Parts()
	if err != nil {
		return nil, err
	}
	out := make([]domain.PartMaster, 0, len(parts))
	for _, p := range parts {
		if model == "" || p.Model == model {
			out = append(out, p)
		}
	}
	return out, nil
}

// Find 依品番找主檔列
func (l *Loader) Find(partNo string) (domain.PartMaster, bool, error) {
	parts, err := l.Parts()
	if err != nil {
		return domain.PartMaster{}, false, err
	}
	for _, p := range parts {
		if p.PartNo == partNo {
			return p, true, nil
		}
	}
	return domain.PartMaster{}, false, nil
}

func (l *Loader) load() ([]domain.PartMaster, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open part master %s: %w", l.path, err)
	}
	defer f.Close()

	sheet := l.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("part master sheet %s has no data rows", sheet)
	}

	// 表頭 → 欄位索引
	cols := map[string]int{}
	for i, h := range rows[0] {
		if key, ok := headerAliases[strings.TrimSpace(h)]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	if _, ok := cols["part_no"]; !ok {
		return nil, fmt.Errorf("part master sheet %s missing 品番 column", sheet)
	}

	cell := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	parts := make([]domain.PartMaster, 0, len(rows)-1)
	for _, row := range rows[1:] {
		partNo := cell(row, "part_no")
		if partNo == "" {
			continue // 空列
		}

		p := domain.PartMaster{
			Model:          cell(row, "model"),
			PartNo:         partNo,
			PartName:       cell(row, "part_name"),
			RawStdWeight:   cell(row, "std_weight"),
			RawWeightMax:   cell(row, "weight_max"),
			RawWeightMin:   cell(row, "weight_min"),
			RawStdLength:   cell(row, "std_length"),
			RawLengthMax:   cell(row, "length_max"),
			RawLengthMin:   cell(row, "length_min"),
			MaterialID:     cell(row, "material_id"),
			MaterialName:   cell(row, "material_name"),
			ProductImage:   cell(row, "product_image"),
			CavityOverride: cell(row, "cavity_override"),
		}
		for _, key := range []string{"key_point_1", "key_point_2", "key_point_3"} {
			if v := cell(row, key); v != "" {
				p.KeyControlPoints = append(p.KeyControlPoints, v)
			}
		}
		for _, key := range []string{"defect_image_1", "defect_image_2", "defect_image_3"} {
			if v := cell(row, key); v != "" {
				p.DefectImages = append(p.DefectImages, v)
			}
		}

		parts = append(parts, p)
	}

	return parts, nil
}
