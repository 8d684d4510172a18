package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 {
	return &v
}

func TestComputeTrend_Increasing(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(10), fptr(20), fptr(30)})

	assert.Equal(t, TrendIncreasing, result.Direction)
	assert.InDelta(t, 10.0, result.Slope, 1e-9)
	require.NotNil(t, result.Change)
	assert.InDelta(t, 20.0, *result.Change, 1e-9)
}

func TestComputeTrend_Decreasing(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(30), fptr(20), fptr(10)})

	assert.Equal(t, TrendDecreasing, result.Direction)
	assert.InDelta(t, -10.0, result.Slope, 1e-9)
	require.NotNil(t, result.Change)
	assert.InDelta(t, -20.0, *result.Change, 1e-9)
}

func TestComputeTrend_Stable(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(50), fptr(50), fptr(50), fptr(50)})

	assert.Equal(t, TrendStable, result.Direction)
	assert.InDelta(t, 0.0, result.Slope, 1e-9)
	require.NotNil(t, result.Change)
	assert.InDelta(t, 0.0, *result.Change, 1e-9)
}

// 有效值不足 2 个时返回退化结果：stable、slope=0、无 change
func TestComputeTrend_InsufficientData(t *testing.T) {
	result := ComputeTrend([]*float64{})
	assert.Equal(t, TrendStable, result.Direction)
	assert.Equal(t, 0.0, result.Slope)
	assert.Nil(t, result.Change)

	result = ComputeTrend([]*float64{fptr(5)})
	assert.Equal(t, TrendStable, result.Direction)
	assert.Equal(t, 0.0, result.Slope)
	assert.Nil(t, result.Change)

	// 全是缺测
	result = ComputeTrend([]*float64{nil, nil, nil})
	assert.Equal(t, TrendStable, result.Direction)
	assert.Equal(t, 0.0, result.Slope)
	assert.Nil(t, result.Change)
}

// nil 先被过滤，序号按过滤后的序列重新编号
func TestComputeTrend_FiltersNilValues(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(10), nil, fptr(20), nil, fptr(30)})

	assert.Equal(t, TrendIncreasing, result.Direction)
	assert.InDelta(t, 10.0, result.Slope, 1e-9)
	require.NotNil(t, result.Change)
	assert.InDelta(t, 20.0, *result.Change, 1e-9)
}

// |slope| 在噪声阈值 0.1 以内时方向为 stable
func TestComputeTrend_NoiseThreshold(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(70), fptr(70.05), fptr(70.1)})
	assert.Equal(t, TrendStable, result.Direction)
	assert.InDelta(t, 0.05, result.Slope, 1e-9)

	result = ComputeTrend([]*float64{fptr(70), fptr(70.2), fptr(70.4)})
	assert.Equal(t, TrendIncreasing, result.Direction)
	assert.InDelta(t, 0.2, result.Slope, 1e-9)
}

// change 取原始端点差值，而不是回归预测值
func TestComputeTrend_ChangeUsesRawEndpoints(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(10), fptr(100), fptr(12)})

	require.NotNil(t, result.Change)
	assert.InDelta(t, 2.0, *result.Change, 1e-9)
}

func TestComputeTrend_TwoValues(t *testing.T) {
	result := ComputeTrend([]*float64{fptr(60), fptr(90)})

	assert.Equal(t, TrendIncreasing, result.Direction)
	assert.InDelta(t, 30.0, result.Slope, 1e-9)
	require.NotNil(t, result.Change)
	assert.InDelta(t, 30.0, *result.Change, 1e-9)
}
