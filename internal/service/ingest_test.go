package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/internal/repository/memory"
)

// newIngestFixture собирает IngestService поверх настоящих ItemService и LedgerService в памяти
func newIngestFixture(extractor Extractor) (*IngestService, *memory.Storage) {
	storage := memory.NewStorage()
	items := NewItemService(zap.NewNop(), storage.Items())
	ledger := NewLedgerService(zap.NewNop(), storage, storage.Movements())
	return NewIngestService(zap.NewNop(), extractor, storage.Items(), items, ledger), storage
}

func TestIngestService_BlankInputSkipsExtraction(t *testing.T) {
	extractor := &mockExtractor{}
	svc, _ := newIngestFixture(extractor)

	_, err := svc.Ingest(context.Background(), testActor, "  \n\t ")
	require.ErrorIs(t, err, ErrValidation)
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestIngestService_ExtractionFailureIsFatal(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, "два мышки").Return(nil, ErrUpstreamUnavailable)
	svc, storage := newIngestFixture(extractor)

	_, err := svc.Ingest(context.Background(), testActor, "два мышки")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	codes, err := storage.Items().ListAllCodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestIngestService_NothingExtracted(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, "你好").Return([]Candidate{}, nil)
	svc, _ := newIngestFixture(extractor)

	res, err := svc.Ingest(context.Background(), testActor, "你好")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Failed)
	assert.True(t, res.Success())
	assert.Equal(t, "处理完成: 添加 0, 失败 0.", res.Message())
}

func TestIngestService_CreatesItemWithInitialStock(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, "2 个鼠标, 阈值5").Return([]Candidate{
		{Name: strPtr("鼠标"), Unit: strPtr("个"), Threshold: intPtr(5), Quantity: intPtr(2)},
	}, nil)
	svc, storage := newIngestFixture(extractor)

	res, err := svc.Ingest(ctx, testActor, "2 个鼠标, 阈值5")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "1", res.Outcomes[0].Code)
	assert.Equal(t, int64(2), res.Outcomes[0].SeededQuantity)

	it, err := storage.Items().GetByCode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "鼠标", it.Name)
	assert.Equal(t, "普通", it.Specification)
	assert.Equal(t, int64(5), it.Threshold)
	assert.Equal(t, int64(2), it.StockQuantity)

	ms, err := storage.Movements().ListByItem(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, repository.DirectionIn, ms[0].Direction)
	assert.Equal(t, InitialStockRemark, ms[0].Remark)
}

func TestIngestService_PartialFailureKeepsCodesConsecutive(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{
		{Name: strPtr("梨")},
		{Name: strPtr("苹果"), Quantity: intPtr(-3)},
		{Name: strPtr("香蕉"), Quantity: intPtr(0)},
	}, nil)
	svc, storage := newIngestFixture(extractor)

	res, err := svc.Ingest(ctx, testActor, "梨, -3 苹果, 香蕉")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "处理完成: 添加 2, 失败 1.", res.Message())
	assert.ErrorIs(t, res.Outcomes[1].Err, ErrValidation)

	codes, err := storage.Items().ListAllCodes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, codes)

	banana, err := storage.Items().GetByCode(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "香蕉", banana.Name)
	assert.Equal(t, int64(0), banana.StockQuantity)
}

func TestIngestService_DefaultsAndStartNumber(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{
		{StartNumber: intPtr(88)},
		{Name: strPtr("苹果"), StartNumber: intPtr(5)},
	}, nil)
	svc, storage := newIngestFixture(extractor)

	_, err := storage.Items().Insert(ctx, repository.Item{Name: "旧", Code: "3", Unit: "个", Specification: "普通"})
	require.NoError(t, err)

	res, err := svc.Ingest(ctx, testActor, "从88开始")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, "88", res.Outcomes[0].Code)
	assert.Equal(t, "89", res.Outcomes[1].Code)

	it, err := storage.Items().GetByCode(ctx, "88")
	require.NoError(t, err)
	assert.Equal(t, defaultName, it.Name)
	assert.Equal(t, defaultUnit, it.Unit)
	assert.Equal(t, defaultSpecification, it.Specification)
	assert.Equal(t, defaultThreshold, it.Threshold)
}

func TestIngestService_BlankFieldFails(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{
		{Name: strPtr("  ")},
		{Name: strPtr("胶水"), Unit: strPtr("")},
	}, nil)
	svc, _ := newIngestFixture(extractor)

	res, err := svc.Ingest(context.Background(), testActor, "???")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 2, res.Failed)
	assert.False(t, res.Success())
	assert.Equal(t, "添加物品失败 (处理 2).", res.Message())
}

func TestIngestService_CheckInFailureStillCountsAsAdded(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{{Name: strPtr("键盘"), Quantity: intPtr(3)}}, nil)

	codes := &mockCodeLister{}
	codes.On("ListAllCodes", mock.Anything).Return([]string{"1"}, nil)

	items := &mockItemCreator{}
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool {
		return in.Code == "2" && in.Name == "键盘"
	})).Return(int64(11), nil)

	stock := &mockStockReceiver{}
	stock.On("CheckIn", mock.Anything, testActor, int64(11), int64(3), InitialStockRemark).Return(int64(0), errors.New("db down"))

	svc := NewIngestService(zap.NewNop(), extractor, codes, items, stock)
	res, err := svc.Ingest(ctx, testActor, "3 键盘")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 0, res.Failed)
	assert.Error(t, res.Outcomes[0].SeedErr)
	assert.Equal(t, int64(0), res.Outcomes[0].SeededQuantity)

	items.AssertExpectations(t)
	stock.AssertExpectations(t)
}

func TestIngestService_AddItemFailureReleasesCode(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{{Name: strPtr("A")}, {Name: strPtr("B")}}, nil)

	codes := &mockCodeLister{}
	codes.On("ListAllCodes", mock.Anything).Return([]string{}, nil)

	items := &mockItemCreator{}
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool { return in.Name == "A" })).
		Return(int64(0), errors.New("insert failed")).Once()
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool { return in.Name == "B" && in.Code == "1" })).
		Return(int64(2), nil).Once()

	svc := NewIngestService(zap.NewNop(), extractor, codes, items, &mockStockReceiver{})
	res, err := svc.Ingest(context.Background(), testActor, "A, B")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "1", res.Outcomes[1].Code)
	items.AssertExpectations(t)
}

func TestIngestService_ConflictSkipsCode(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{{Name: strPtr("A")}, {Name: strPtr("B")}}, nil)

	codes := &mockCodeLister{}
	codes.On("ListAllCodes", mock.Anything).Return([]string{}, nil)

	items := &mockItemCreator{}
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool { return in.Code == "1" })).
		Return(int64(0), ErrConflict).Once()
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool { return in.Code == "2" })).
		Return(int64(5), nil).Once()

	svc := NewIngestService(zap.NewNop(), extractor, codes, items, &mockStockReceiver{})
	res, err := svc.Ingest(context.Background(), testActor, "A, B")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, "2", res.Outcomes[1].Code)
	items.AssertExpectations(t)
}

func TestIngestService_PanicIsContained(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{{Name: strPtr("A")}, {Name: strPtr("B")}}, nil)

	codes := &mockCodeLister{}
	codes.On("ListAllCodes", mock.Anything).Return([]string{}, nil)

	items := &mockItemCreator{}
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool { return in.Name == "A" })).
		Run(func(mock.Arguments) { panic("boom") }).Return(int64(0), nil).Once()
	items.On("AddItem", mock.Anything, testActor, mock.MatchedBy(func(in ItemInput) bool { return in.Name == "B" })).
		Return(int64(9), nil).Once()

	svc := NewIngestService(zap.NewNop(), extractor, codes, items, &mockStockReceiver{})
	res, err := svc.Ingest(context.Background(), testActor, "A, B")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Failed)
	assert.Error(t, res.Outcomes[0].Err)
	assert.Equal(t, "1", res.Outcomes[1].Code)
}

func TestIngestService_CodeListingFailureIsFatal(t *testing.T) {
	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, mock.Anything).Return([]Candidate{{Name: strPtr("A")}}, nil)

	codes := &mockCodeLister{}
	codes.On("ListAllCodes", mock.Anything).Return(nil, errors.New("db down"))

	items := &mockItemCreator{}
	svc := NewIngestService(zap.NewNop(), extractor, codes, items, &mockStockReceiver{})
	_, err := svc.Ingest(context.Background(), testActor, "A")
	require.Error(t, err)
	items.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything)
}
