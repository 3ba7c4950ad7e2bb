package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const defaultConfidence = 0.5

// TagSpec 模型提取出的标签
type TagSpec struct {
	Key        string  `json:"tag_key"`
	Value      string  `json:"tag_value"`
	Confidence float64 `json:"confidence"`
}

var codeFence = regexp.MustCompile("```\\w*\\n?")

// 中文标签名到标签键
var tagKeyMapping = map[string]string{
	"姓名":       "nickname",
	"性别":       "gender",
	"年龄":       "age",
	"糖尿病类型":    "diabetes_type",
	"诊断日期":     "diagnosis_date",
	"病程":       "disease_duration_years",
	"胰岛素给药途径":  "insulin_route",
	"胰岛素泵使用情况": "cgm_usage",
	"CGM使用情况":  "cgm_usage",
	"动态血糖监测仪":  "cgm_usage",
	"血糖控制情况":   "blood_glucose_control",
	"并发症":      "complications",
	"家族史":      "family_history",
	"BMI指数":    "bmi",
	"血压":       "blood_pressure",
	"运动频率":     "exercise_frequency",
	"饮食习惯":     "diet_habits",
}

// ParseTagResponse 解析模型返回的标签数组
// 兼容代码块包裹和中文字段名，缺少键或值的元素丢弃
func ParseTagResponse(content string) ([]TagSpec, error) {
	content = strings.TrimSpace(codeFence.ReplaceAllString(content, ""))
	if content == "" {
		return nil, fmt.Errorf("empty tag response")
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("tag response is not a JSON array: %w", err)
	}

	tags := make([]TagSpec, 0, len(raw))
	for _, item := range raw {
		key := strings.TrimSpace(stringify(pick(item, "tag_key", "标签键")))
		value := strings.TrimSpace(stringify(pick(item, "tag_value", "标签值")))
		if key == "" || value == "" {
			continue
		}
		if mapped, ok := tagKeyMapping[key]; ok {
			key = mapped
		}
		tags = append(tags, TagSpec{
			Key:        key,
			Value:      NormalizeTagValue(key, value),
			Confidence: confidence(pick(item, "confidence", "置信度")),
		})
	}
	return tags, nil
}

// NormalizeTagValue 统一部分标签的取值
func NormalizeTagValue(key, value string) string {
	switch key {
	case "cgm_usage":
		lower := strings.ToLower(value)
		switch {
		case strings.Contains(lower, "没有"), strings.Contains(lower, "未使用"), strings.Contains(lower, "不用"),
			lower == "false":
			return "false"
		case strings.Contains(lower, "使用"), strings.Contains(lower, "有"), lower == "true":
			return "true"
		default:
			return "false"
		}
	case "gender":
		if strings.Contains(value, "男") {
			return "男"
		}
		if strings.Contains(value, "女") {
			return "女"
		}
	case "insulin_route":
		if strings.Contains(value, "泵") {
			return "胰岛素泵"
		}
		if strings.Contains(value, "笔") {
			return "胰岛素笔注射"
		}
	}
	return value
}

// pick 优先英文字段，值为空时再取中文字段
func pick(item map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func confidence(v any) float64 {
	var c float64
	switch val := v.(type) {
	case float64:
		c = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return defaultConfidence
		}
		c = parsed
	default:
		return defaultConfidence
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
