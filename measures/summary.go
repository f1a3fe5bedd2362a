package measures

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/turnon/wattwise/store/common"
)

// Buckets 汇总时把时间窗口分成的份数
const Buckets = 25

// Summary 一个时间段内的平均值
type Summary struct {
	Timestamp time.Time `json:"timestamp"`
	Voltage   float64   `json:"voltage"`
	Current   float64   `json:"current"`
	Power     float64   `json:"power"`
}

type bucket struct {
	count   int
	voltage float64
	current float64
}

// Summarize 把[from, to]等分成 Buckets 段求平均，空段跳过
func Summarize(ms []common.Measure, from, to time.Time) []Summary {
	res := []Summary{}
	width := to.Sub(from) / Buckets
	if width <= 0 {
		return res
	}

	buckets := make([]bucket, Buckets)
	for _, m := range ms {
		if m.Timestamp.Before(from) || m.Timestamp.After(to) {
			continue
		}
		idx := int(m.Timestamp.Sub(from) / width)
		if idx >= Buckets {
			idx = Buckets - 1
		}
		buckets[idx].count++
		buckets[idx].voltage += m.Voltage
		buckets[idx].current += m.Current
	}

	for i, b := range buckets {
		if b.count == 0 {
			continue
		}
		n := decimal.NewFromInt(int64(b.count))
		voltage := decimal.NewFromFloat(b.voltage).Div(n).Round(2)
		current := decimal.NewFromFloat(b.current).Div(n).Round(2)
		res = append(res, Summary{
			Timestamp: from.Add(width * time.Duration(i+1)).UTC(),
			Voltage:   voltage.InexactFloat64(),
			Current:   current.InexactFloat64(),
			Power:     voltage.Mul(current).Round(2).InexactFloat64(),
		})
	}
	return res
}
