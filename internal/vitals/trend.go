package vitals

// TrendDirection 趋势方向标签
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// slopeNoiseThreshold 斜率噪声阈值：|slope| 不超过该值时视为平稳，
// 避免把测量噪声标记为趋势
const slopeNoiseThreshold = 0.1

// TrendResult 同一体征历史序列的趋势估计结果
type TrendResult struct {
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope"`
	Change    *float64       `json:"change,omitempty"` // 末值 − 首值（数据不足时缺省）
}

// ComputeTrend 对按时间排序的数值序列做线性回归趋势估计
//
// 算法：以 0 起始的序号为自变量做最小二乘拟合 value ≈ slope*index + intercept，
// 斜率采用闭式解 slope = (n·Σxy − Σx·Σy) / (n·Σx² − (Σx)²)。
// 序列中的 nil（缺测）先被过滤，序号按过滤后的序列重新编号。
//
// 有效值不足 2 个时返回退化结果：direction="stable"、slope=0、无 change。
func ComputeTrend(values []*float64) TrendResult {
	filtered := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			filtered = append(filtered, *v)
		}
	}

	n := len(filtered)
	if n < 2 {
		return TrendResult{
			Direction: TrendStable,
			Slope:     0,
		}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range filtered {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumXX - sumX*sumX)

	direction := TrendStable
	switch {
	case slope > slopeNoiseThreshold:
		direction = TrendIncreasing
	case slope < -slopeNoiseThreshold:
		direction = TrendDecreasing
	}

	change := filtered[n-1] - filtered[0]

	return TrendResult{
		Direction: direction,
		Slope:     slope,
		Change:    &change,
	}
}
