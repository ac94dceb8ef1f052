package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/service"
)

const extractionTemperature = 0.01

// Первый JSON-массив объектов в тексте ответа (модель любит оборачивать его в пояснения)
var jsonArrayPattern = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)

const extractionPrompt = `任务：从下面的用户输入文本中提取物品信息，并生成JSON数组。
背景：用户输入的是关于物品的自然语言描述，可能包含多个物品及其数量和属性。
要求：
1. **识别物品**: 找出文本中描述的所有独立物品。
2. **提取属性**: 对于每个物品，提取或推断以下属性：
   - ` + "`name`" + ` (string, 必需): 物品的核心名称。
   - ` + "`quantity`" + ` (integer, 必需): 物品的数量。如果用户未提及，默认为 0。
   - ` + "`unit`" + ` (string, 必需): 物品的计量单位。如果用户未提及，请根据物品名称推断。
   - ` + "`specification`" + ` (string, 必需): 物品的规格、品牌或型号。如果未提及，请设为 '普通'。
   - ` + "`threshold`" + ` (integer, 必需): 库存阈值。如果用户未明确提及，则默认为 10。
   - ` + "`startNumber`" + ` (integer, 可选): 如果用户指定了编号要求（例如'编号从88开始'），提取起始编号。只在第一个物品对象中包含此字段（如果指定）。
3. **忽略无关信息**: 忽略如 '我今天买了', '还有' 等非物品描述信息。
4. **输出格式**: 必须以严格的JSON数组格式返回结果，数组中包含每个物品信息的JSON对象。不要包含任何其他文字、解释或代码块标记。

示例:
输入: '我今天买了2个logi鼠标，阈值为5，还有一个普通的键盘。'
输出: [{"name":"鼠标","quantity":2,"unit":"个","specification":"logi","threshold":5}, {"name":"键盘","quantity":0,"unit":"个","specification":"普通","threshold":10}]

输入: '请添加10个梨、5个苹果、12个香蕉，它们的编号从88开始'
输出: [{"name":"梨","quantity":10,"unit":"个","specification":"普通","threshold":10,"startNumber":88}, {"name":"苹果","quantity":5,"unit":"个","specification":"普通","threshold":10}, {"name":"香蕉","quantity":12,"unit":"个","specification":"普通","threshold":10}]

输入: '50 台联想 ThinkStation P360 图形工作站；20 套希沃教室系统；10 台 H3C E552C-PWR 48 口交换机；还有一些NVIDIA 4090显卡，交换机的库存阈值为5'
输出: [{"name":"图形工作站","quantity":50,"unit":"台","specification":"联想 ThinkStation P360","threshold":10}, {"name":"教室系统","quantity":20,"unit":"套","specification":"希沃","threshold":10}, {"name":"交换机","quantity":10,"unit":"台","specification":"H3C E552C-PWR 48 口","threshold":5}, {"name":"显卡","quantity":0,"unit":"块","specification":"NVIDIA 4090","threshold":10}]

-----
用户输入文本:
"%s"
-----
JSON输出:`

// BuildExtractionPrompt подставляет пользовательский текст в инструкцию извлечения
func BuildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionPrompt, text)
}

// Extractor реализует service.Extractor поверх Client
type Extractor struct {
	client *Client
	logger *zap.Logger
}

// NewExtractor создаёт Extractor
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client, logger: client.logger}
}

// Extract возвращает кандидатов из ответа модели.
// Всё, кроме сетевой ошибки, деградирует в пустой список.
func (e *Extractor) Extract(ctx context.Context, text string) ([]service.Candidate, error) {
	resp, err := e.client.chat(ctx, BuildExtractionPrompt(text), extractionTemperature)
	if err != nil {
		if errors.Is(err, service.ErrUpstreamUnavailable) {
			return nil, err
		}
		e.logger.Error("model request failed", zap.Error(err))
		return []service.Candidate{}, nil
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		e.logger.Error("invalid model response: choices or content missing")
		return []service.Candidate{}, nil
	}
	content := *resp.Choices[0].Message.Content

	return e.parseCandidates(content), nil
}

func (e *Extractor) parseCandidates(content string) []service.Candidate {
	match := jsonArrayPattern.FindString(content)
	if match == "" {
		e.logger.Warn("no JSON array in model response", zap.String("content", truncate(content, 200)))
		return []service.Candidate{}
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		e.logger.Error("failed to parse JSON array from model response", zap.String("json", truncate(match, 200)), zap.Error(err))
		return []service.Candidate{}
	}

	out := make([]service.Candidate, 0, len(raw))
	for _, obj := range raw {
		out = append(out, service.Candidate{
			Name:          decodeString(obj["name"]),
			Unit:          decodeString(obj["unit"]),
			Specification: decodeString(obj["specification"]),
			Threshold:     e.decodeInt("threshold", obj["threshold"]),
			Quantity:      e.decodeInt("quantity", obj["quantity"]),
			StartNumber:   e.decodeInt("startNumber", obj["startNumber"]),
		})
	}
	return out
}

// decodeString: строка как есть, число или bool в текстовом виде, null и отсутствие дают nil
func decodeString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return nil
	}
	s = string(raw)
	return &s
}

// decodeInt принимает число или числовую строку; дробное число усекается.
// Нераспознанное значение даёт nil, то есть значение по умолчанию.
func (e *Extractor) decodeInt(field string, raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			e.logger.Warn("unparseable numeric field, using default", zap.String("field", field), zap.ByteString("value", raw))
			return nil
		}
		num = json.Number(strings.TrimSpace(s))
	}

	if n, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(num.String(), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) &&
		f >= math.MinInt64 && f < math.MaxInt64 {
		n := int64(f)
		return &n
	}

	e.logger.Warn("unparseable numeric field, using default", zap.String("field", field), zap.ByteString("value", raw))
	return nil
}
