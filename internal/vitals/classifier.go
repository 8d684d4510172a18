// Package vitals 提供生命体征分级与趋势估计
//
// 主要功能：
// - 单次读数的临床分级（band）：按固定阈值表判断，如血压 normal/elevated/high/crisis
// - 独立的风险等级（risk）：使用另一套阈值表，粒度与分级不同
//   （例如 135/70：band="high" 而 risk="elevated"，两套表允许不一致）
// - 历史序列的线性回归趋势估计（见 trend.go）
//
// 所有函数都是纯函数：无 I/O、无共享状态、任意并发调用安全。
// 不做输入校验——任何数值（包括超出生理范围的值）都按首个命中的规则
// 确定性地落入某个分级，校验由调用方负责。
package vitals

import "fmt"

// VitalType 生命体征类型
type VitalType string

const (
	VitalBloodPressure    VitalType = "bloodPressure"
	VitalHeartRate        VitalType = "heartRate"
	VitalTemperature      VitalType = "temperature"
	VitalOxygenSaturation VitalType = "oxygenSaturation"
)

// Band 临床分级标签（各体征取值不同）
type Band string

const (
	BandNormal      Band = "normal"
	BandElevated    Band = "elevated"
	BandHigh        Band = "high"
	BandCrisis      Band = "crisis"
	BandBradycardia Band = "bradycardia"
	BandTachycardia Band = "tachycardia"
	BandFever       Band = "fever"
	BandHighFever   Band = "highFever"
	BandLow         Band = "low"
	BandCritical    Band = "critical"
)

// RiskLevel 风险等级（与 Band 独立判定）
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskElevated RiskLevel = "elevated"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank 风险等级的严重程度序（用于取最高风险）
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskElevated: 1,
	RiskModerate: 2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// RiskOrdinal 返回风险等级的序数（low=0 ... critical=4）
func RiskOrdinal(r RiskLevel) int {
	return riskRank[r]
}

// MaxRisk 返回两个风险等级中更严重的一个
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}

// Reading 一次生命体征读数（字段均可选，缺失的体征不参与分级）
type Reading struct {
	Systolic         *int     `json:"systolic,omitempty"`          // 收缩压 mmHg
	Diastolic        *int     `json:"diastolic,omitempty"`         // 舒张压 mmHg
	HeartRate        *int     `json:"heart_rate,omitempty"`        // 心率 bpm
	Temperature      *float64 `json:"temperature,omitempty"`       // 体温 °F
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"` // 血氧 %
}

// ClassificationResult 单个体征的分级结果
type ClassificationResult struct {
	Vital     VitalType `json:"vital"`
	Value     *float64  `json:"value,omitempty"`     // 单值体征的原始读数
	Systolic  *int      `json:"systolic,omitempty"`  // 血压读数
	Diastolic *int      `json:"diastolic,omitempty"` //
	Band      Band      `json:"band"`
	Risk      RiskLevel `json:"risk"`
}

// ============================================
// 阈值表（按严重程度从高到低排列，首个命中生效）
// ============================================

// bloodPressureRiskLevels 血压风险阈值：收缩压或舒张压达到下限即命中
var bloodPressureRiskLevels = []struct {
	MinSystolic  int
	MinDiastolic int
	Risk         RiskLevel
}{
	{180, 120, RiskCritical},
	{160, 100, RiskHigh},
	{140, 90, RiskModerate},
	{120, 80, RiskElevated},
}

// heartRateRiskLevels 心率风险阈值：低于 Below 或高于 Above 即命中
var heartRateRiskLevels = []struct {
	Below int
	Above int
	Risk  RiskLevel
}{
	{40, 140, RiskCritical},
	{50, 120, RiskHigh},
	{60, 100, RiskModerate},
}

// temperatureBands 体温分级阈值（°F）：达到 Min 即命中
var temperatureBands = []struct {
	Min  float64
	Band Band
}{
	{103.1, BandHighFever},
	{99.1, BandFever},
}

// temperatureRiskLevels 体温风险阈值（°F）
var temperatureRiskLevels = []struct {
	Min  float64
	Risk RiskLevel
}{
	{105, RiskCritical},
	{103, RiskHigh},
	{100.4, RiskModerate},
}

// oxygenBands 血氧分级阈值：低于 Below 即命中
var oxygenBands = []struct {
	Below int
	Band  Band
}{
	{90, BandCritical},
	{95, BandLow},
}

// oxygenRiskLevels 血氧风险阈值
var oxygenRiskLevels = []struct {
	Below int
	Risk  RiskLevel
}{
	{85, RiskCritical},
	{90, RiskHigh},
	{95, RiskModerate},
}

// ============================================
// 分级函数
// ============================================

// ClassifyBloodPressure 对一次血压读数分级
func ClassifyBloodPressure(systolic, diastolic int) ClassificationResult {
	var band Band
	switch {
	case systolic >= 180 || diastolic >= 120:
		band = BandCrisis
	case systolic >= 130 || diastolic >= 80:
		band = BandHigh
	case systolic >= 120:
		// high 未命中即 systolic < 130 且 diastolic < 80
		band = BandElevated
	default:
		band = BandNormal
	}

	risk := RiskLow
	for _, t := range bloodPressureRiskLevels {
		if systolic >= t.MinSystolic || diastolic >= t.MinDiastolic {
			risk = t.Risk
			break
		}
	}

	return ClassificationResult{
		Vital:     VitalBloodPressure,
		Systolic:  &systolic,
		Diastolic: &diastolic,
		Band:      band,
		Risk:      risk,
	}
}

// ClassifyHeartRate 对一次心率读数分级
func ClassifyHeartRate(bpm int) ClassificationResult {
	var band Band
	switch {
	case bpm < 60:
		band = BandBradycardia
	case bpm > 100:
		band = BandTachycardia
	default:
		band = BandNormal
	}

	risk := RiskLow
	for _, t := range heartRateRiskLevels {
		if bpm < t.Below || bpm > t.Above {
			risk = t.Risk
			break
		}
	}

	value := float64(bpm)
	return ClassificationResult{
		Vital: VitalHeartRate,
		Value: &value,
		Band:  band,
		Risk:  risk,
	}
}

// ClassifyTemperature 对一次体温读数（华氏度）分级
func ClassifyTemperature(tempF float64) ClassificationResult {
	band := BandNormal
	for _, t := range temperatureBands {
		if tempF >= t.Min {
			band = t.Band
			break
		}
	}

	risk := RiskLow
	for _, t := range temperatureRiskLevels {
		if tempF >= t.Min {
			risk = t.Risk
			break
		}
	}

	return ClassificationResult{
		Vital: VitalTemperature,
		Value: &tempF,
		Band:  band,
		Risk:  risk,
	}
}

// ClassifyOxygenSaturation 对一次血氧饱和度读数分级
func ClassifyOxygenSaturation(percent int) ClassificationResult {
	band := BandNormal
	for _, t := range oxygenBands {
		if percent < t.Below {
			band = t.Band
			break
		}
	}

	risk := RiskLow
	for _, t := range oxygenRiskLevels {
		if percent < t.Below {
			risk = t.Risk
			break
		}
	}

	value := float64(percent)
	return ClassificationResult{
		Vital: VitalOxygenSaturation,
		Value: &value,
		Band:  band,
		Risk:  risk,
	}
}

// Classify 按体征类型分发到对应的分级函数
// 读数中缺少该体征所需的字段、或体征类型未知时返回错误
func Classify(vital VitalType, reading Reading) (ClassificationResult, error) {
	switch vital {
	case VitalBloodPressure:
		if reading.Systolic == nil || reading.Diastolic == nil {
			return ClassificationResult{}, fmt.Errorf("blood pressure reading requires systolic and diastolic")
		}
		return ClassifyBloodPressure(*reading.Systolic, *reading.Diastolic), nil
	case VitalHeartRate:
		if reading.HeartRate == nil {
			return ClassificationResult{}, fmt.Errorf("heart rate reading is missing")
		}
		return ClassifyHeartRate(*reading.HeartRate), nil
	case VitalTemperature:
		if reading.Temperature == nil {
			return ClassificationResult{}, fmt.Errorf("temperature reading is missing")
		}
		return ClassifyTemperature(*reading.Temperature), nil
	case VitalOxygenSaturation:
		if reading.OxygenSaturation == nil {
			return ClassificationResult{}, fmt.Errorf("oxygen saturation reading is missing")
		}
		return ClassifyOxygenSaturation(*reading.OxygenSaturation), nil
	default:
		return ClassificationResult{}, fmt.Errorf("unknown vital type: %s", vital)
	}
}
