// Package specparse 把品番主檔的公差文字欄位正規化成數值規格：
// 單一數值、雙模 "A/B" 寫法、以及各種手打雜訊（單位、± 符號、多餘斜線）。
package specparse

import (
	"regexp"
	"strconv"
	"strings"
)

// numberPattern 取欄位中第一個帶號十進位數字（"2430g±50g" → 2430）
var numberPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// Parsed 公差欄位的解析結果：空值、單一數值、或保留位置的兩槽數對
// （槽位 0 = 第一模穴，槽位 1 = 第二模穴；個別槽位可能缺值）
type Parsed struct {
	parts []*float64
}

// Empty 無任何可解析數值
func (p Parsed) Empty() bool { return len(p.parts) == 0 }

// Dual 是否為保留位置的數對（兩段以上）
func (p Parsed) Dual() bool { return len(p.parts) >= 2 }

// Scalar 單一數值（非數對）時回傳該值
func (p Parsed) Scalar() (float64, bool) {
	if len(p.parts) == 1 && p.parts[0] != nil {
		return *p.parts[0], true
	}
	return 0, false
}

// At 第 i 模穴適用的值：數對依位置取槽（缺槽 → nil），單值兩穴共用
func (p Parsed) At(i int) *float64 {
	switch {
	case p.Empty():
		return nil
	case p.Dual():
		if i < 0 || i >= len(p.parts) {
			return nil
		}
		return p.parts[i]
	default:
		return p.parts[0]
	}
}

func scalar(v float64) Parsed {
	return Parsed{parts: []*float64{&v}}
}

// Parse 解析公差原始文字
//
// 無 '/'：取第一個數字，找不到即空值。
// 有 '/'：逐段取數。只有一段可解析時收斂為單值——把 "93/" 或 "/95"
// 當成手誤而不是雙模（單模解釋優先是刻意的資料品質決策）；
// 兩段以上可解析則保留位置回傳數對。
// 格式錯誤一律靜默視為缺值，不是錯誤路徑。
func Parse(raw string) Parsed {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Parsed{}
	}

	if !strings.Contains(s, "/") {
		if v, ok := extractNumber(s); ok {
			return scalar(v)
		}
		return Parsed{}
	}

	segments := strings.Split(s, "/")
	results := make([]*float64, 0, len(segments))
	valid := 0
	var lastValid float64
	for _, seg := range segments {
		if v, ok := extractNumber(seg); ok {
			v := v
			results = append(results, &v)
			valid++
			lastValid = v
		} else {
			results = append(results, nil)
		}
	}

	switch {
	case valid == 0:
		return Parsed{}
	case valid == 1:
		// 斜線手誤：收斂成單值
		return scalar(lastValid)
	default:
		return Parsed{parts: results}
	}
}

func extractNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
