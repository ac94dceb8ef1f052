package llm

import (
	"context"
	"fmt"
)

const (
	reportTemperature = 0.3

	reportBadFormat  = "生成日报失败：AI服务返回格式异常"
	reportBadContent = "生成日报失败：AI服务返回内容异常"
)

// Reporter реализует service.ReportWriter
type Reporter struct {
	client *Client
}

// NewReporter создаёт Reporter
func NewReporter(client *Client) *Reporter {
	return &Reporter{client: client}
}

// WriteReport возвращает Markdown отчёта. Ответ без choices или content
// превращается в текст с описанием сбоя, ошибки транспорта и статуса возвращаются как есть.
func (r *Reporter) WriteReport(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.chat(ctx, prompt, reportTemperature)
	if err != nil {
		return "", fmt.Errorf("daily report request: %w", err)
	}

	if len(resp.Choices) == 0 {
		r.client.logger.Error("daily report: choices missing in model response")
		return reportBadFormat, nil
	}
	content := resp.Choices[0].Message.Content
	if content == nil {
		r.client.logger.Error("daily report: content missing in model response")
		return reportBadContent, nil
	}
	return *content, nil
}
