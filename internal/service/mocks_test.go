package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shestoi/warehouse/internal/authctx"
)

type mockExtractor struct{ mock.Mock }

func (m *mockExtractor) Extract(ctx context.Context, text string) ([]Candidate, error) {
	args := m.Called(ctx, text)
	cands, _ := args.Get(0).([]Candidate)
	return cands, args.Error(1)
}

type mockCodeLister struct{ mock.Mock }

func (m *mockCodeLister) ListAllCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}

type mockItemCreator struct{ mock.Mock }

func (m *mockItemCreator) AddItem(ctx context.Context, actor authctx.Actor, in ItemInput) (int64, error) {
	args := m.Called(ctx, actor, in)
	return args.Get(0).(int64), args.Error(1)
}

type mockStockReceiver struct{ mock.Mock }

func (m *mockStockReceiver) CheckIn(ctx context.Context, actor authctx.Actor, itemID, qty int64, remark string) (int64, error) {
	args := m.Called(ctx, actor, itemID, qty, remark)
	return args.Get(0).(int64), args.Error(1)
}

type mockReportWriter struct{ mock.Mock }

func (m *mockReportWriter) WriteReport(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockSummaryProvider struct{ mock.Mock }

func (m *mockSummaryProvider) Summary(ctx context.Context) (DashboardSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(DashboardSummary), args.Error(1)
}

func strPtr(s string) *string { return &s }
func intPtr(n int64) *int64  { return &n }
