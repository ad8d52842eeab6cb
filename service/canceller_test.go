package service

import (
	"context"
	"testing"
	"time"

	"order-matching-core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cancelFixture struct {
	persistence *stubPersistence
	events      *stubEvents
	balances    *BalancesHolder
	pairs       *AssetsPairsHolder
	assets      *AssetsHolder
	books       *OrderBookService
	stopBooks   *OrderBookService
	service     *CancelService
	reports     chan *models.LimitOrdersReport
	trusted     chan *models.LimitOrdersReport
	responses   chan models.Response
}

func newCancelFixture(trustedClients []string) *cancelFixture {
	f := &cancelFixture{
		persistence: &stubPersistence{},
		events:      &stubEvents{},
		books:       NewOrderBookService(),
		stopBooks:   NewOrderBookService(),
		reports:     make(chan *models.LimitOrdersReport, 8),
		trusted:     make(chan *models.LimitOrdersReport, 8),
		responses:   make(chan models.Response, 8),
	}
	f.balances = NewBalancesHolder(f.persistence, NewSettingsCache(nil, trustedClients))
	f.pairs = NewAssetsPairsHolder([]models.AssetPair{
		{AssetPairId: "BTCUSD", BaseAssetId: "BTC", QuotingAssetId: "USD", Accuracy: 2},
		{AssetPairId: "ETHUSD", BaseAssetId: "ETH", QuotingAssetId: "USD", Accuracy: 2},
	})
	f.assets = NewAssetsHolder([]models.Asset{
		{AssetId: "BTC", Accuracy: 8},
		{AssetId: "ETH", Accuracy: 6},
		{AssetId: "USD", Accuracy: 2},
	})
	f.service = NewCancelService(f.books,
		f.stopBooks,
		f.pairs,
		f.assets,
		f.balances,
		NewSequenceNumberHolder(0),
		f.events,
		f.reports,
		f.trusted,
		f.responses)
	return f
}

func newCanceller(f *cancelFixture) *LimitOrdersCanceller {
	return NewLimitOrdersCanceller(f.pairs, f.assets, f.balances, f.books, LimitOrderReservedVolume,
		time.Now().UTC().UnixMilli())
}

func TestCanceller_ClassifySeparatesRemovedPairs(t *testing.T) {
	f := newCancelFixture(nil)
	kept := newOrder("o1", "c1", "1", "100")
	orphan := newOrder("o2", "c1", "1", "100")
	orphan.AssetPairId = "DOGEUSD"

	classification := newCanceller(f).Classify([]*models.Order{kept, orphan})

	require.Len(t, classification.toCancel, 1)
	assert.Equal(t, "BTCUSD", classification.toCancel[0].assetPairId)
	assert.Len(t, classification.all, 2)
}

func TestCanceller_PlanClampsReleasesToRemainingReserved(t *testing.T) {
	f := newCancelFixture(nil)
	f.balances.SetBalance("c1", "USD", models.Balance{Balance: dec("500"), Reserved: dec("150")})

	// Two buys each claiming a 100 USD reservation against only 150
	// actually reserved. The second release must be clamped to 50.
	first := newOrder("o1", "c1", "1", "100")
	first.ReservedVolume = dec("100")
	second := newOrder("o2", "c1", "1", "100")
	second.ReservedVolume = dec("100")
	f.books.AddOrder(first)
	f.books.AddOrder(second)

	canceller := newCanceller(f)
	plan := canceller.Plan(canceller.Classify([]*models.Order{first, second}))

	require.Len(t, plan.WalletOperations, 2)
	total := plan.WalletOperations[0].ReservedAmount.Add(plan.WalletOperations[1].ReservedAmount)
	assert.Equal(t, "-150", total.String())
}

func TestCanceller_PlanDoesNotTouchLiveBook(t *testing.T) {
	f := newCancelFixture(nil)
	f.balances.SetBalance("c1", "USD", models.Balance{Balance: dec("500"), Reserved: dec("100")})
	order := newOrder("o1", "c1", "1", "100")
	order.ReservedVolume = dec("100")
	f.books.AddOrder(order)

	canceller := newCanceller(f)
	plan := canceller.Plan(canceller.Classify([]*models.Order{order}))

	assert.Len(t, f.books.GetOrderBook("BTCUSD").SideOrders(true), 1, "planning must stay speculative")
	assert.Equal(t, models.StatusInOrderBook, order.Status)

	canceller.Commit(plan)
	assert.Empty(t, f.books.GetOrderBook("BTCUSD").SideOrders(true))
	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.Nil(t, f.books.GetOrder("o1"))
}

func TestCanceller_TrustedUnmatchedOrdersGoToTrustedBucket(t *testing.T) {
	f := newCancelFixture([]string{"market-maker"})
	untouched := newOrder("o1", "market-maker", "1", "100")
	partial := newOrder("o2", "market-maker", "1", "100")
	partial.RemainingVolume = dec("0.5")
	regular := newOrder("o3", "c1", "1", "100")
	f.books.AddOrder(untouched)
	f.books.AddOrder(partial)
	f.books.AddOrder(regular)

	canceller := newCanceller(f)
	plan := canceller.Plan(canceller.Classify([]*models.Order{untouched, partial, regular}))

	require.Len(t, plan.TrustedClientReports, 1)
	assert.Equal(t, "o1", plan.TrustedClientReports[0].Order.Id)
	assert.Len(t, plan.ClientReports, 2)
	assert.Empty(t, plan.WalletOperations, "trusted clients hold no reservations and c1 has nothing reserved")
}

func TestCanceller_BooksDiffCoversOnlyChangedSides(t *testing.T) {
	f := newCancelFixture(nil)
	buy := newOrder("o1", "c1", "1", "100")
	ask := newOrder("o2", "c2", "-1", "105")
	f.books.AddOrder(buy)
	f.books.AddOrder(ask)

	canceller := newCanceller(f)
	plan := canceller.Plan(canceller.Classify([]*models.Order{buy}))
	diff := plan.BooksDiff(false)

	require.Len(t, diff.Sides, 1)
	assert.True(t, diff.Sides[0].IsBuySide)
	assert.False(t, diff.Sides[0].IsStopBook)
	assert.Empty(t, diff.Sides[0].Orders)
	assert.Equal(t, []*models.Order{buy}, diff.OrdersToRemove)
}

func TestCancelService_ProcessCancelBatch(t *testing.T) {
	f := newCancelFixture(nil)
	f.balances.SetBalance("c1", "USD", models.Balance{Balance: dec("500"), Reserved: dec("100")})
	order := newOrder("o1", "c1", "1", "100")
	order.ReservedVolume = dec("100")
	f.books.AddOrder(order)

	f.service.ProcessCancelBatch(context.Background(), &models.CancelOrdersContext{
		MessageId:        "m1",
		OrderIds:         []string{"o1", "ghost"},
		ProcessedMessage: &models.ProcessedMessage{MessageId: "m1"},
	})

	response := <-f.responses
	assert.Equal(t, models.MessageStatusOk, response.Status)

	assert.Equal(t, "0", f.balances.GetReservedBalance("c1", "USD").String())
	assert.Nil(t, f.books.GetOrder("o1"))
	assert.Equal(t, models.StatusCancelled, order.Status)

	require.Len(t, f.persistence.commits, 1)
	assert.Equal(t, int64(1), f.persistence.commits[0].sequenceNumber)

	report := <-f.reports
	require.Len(t, report.Orders, 1)
	assert.Equal(t, "o1", report.Orders[0].Order.Id)
	assert.Empty(t, f.trusted)

	require.Len(t, f.events.executionEvents, 1)
	assert.Equal(t, int64(1), f.events.executionEvents[0].SequenceNumber)
}

func TestCancelService_CancelsParkedStopOrder(t *testing.T) {
	f := newCancelFixture(nil)
	f.balances.SetBalance("c1", "USD", models.Balance{Balance: dec("200"), Reserved: dec("150")})

	parked := newOrder("s1", "c1", "100", "0")
	parked.Type = models.OrderTypeStopLimit
	parked.UpperBound = &models.PriceBound{TriggerPrice: dec("2"), LimitPrice: dec("1.5")}
	parked.ReservedVolume = dec("150")
	f.stopBooks.AddOrder(parked)

	f.service.ProcessCancelBatch(context.Background(), &models.CancelOrdersContext{
		MessageId:        "m1",
		OrderIds:         []string{"s1"},
		ProcessedMessage: &models.ProcessedMessage{MessageId: "m1"},
	})

	response := <-f.responses
	assert.Equal(t, models.MessageStatusOk, response.Status)

	assert.Equal(t, "0", f.balances.GetReservedBalance("c1", "USD").String())
	assert.Equal(t, models.StatusCancelled, parked.Status)
	assert.Nil(t, f.stopBooks.GetOrder("s1"))
	assert.Empty(t, f.stopBooks.GetOrderBook("BTCUSD").SideOrders(true))

	require.Len(t, f.persistence.commits, 1)
	diff := f.persistence.commits[0].booksDiff
	require.Len(t, diff.Sides, 1)
	assert.True(t, diff.Sides[0].IsStopBook)
	assert.Equal(t, []*models.Order{parked}, diff.OrdersToRemove)

	report := <-f.reports
	require.Len(t, report.Orders, 1)
	assert.Equal(t, "s1", report.Orders[0].Order.Id)
}

func TestCancelService_MixedBatchSpansBothBooksInOneCommit(t *testing.T) {
	f := newCancelFixture(nil)
	f.balances.SetBalance("c1", "USD", models.Balance{Balance: dec("500"), Reserved: dec("250")})

	resting := newOrder("o1", "c1", "1", "100")
	resting.ReservedVolume = dec("100")
	f.books.AddOrder(resting)

	parked := newOrder("s1", "c1", "100", "0")
	parked.Type = models.OrderTypeStopLimit
	parked.UpperBound = &models.PriceBound{TriggerPrice: dec("2"), LimitPrice: dec("1.5")}
	parked.ReservedVolume = dec("150")
	f.stopBooks.AddOrder(parked)

	f.service.ProcessCancelBatch(context.Background(), &models.CancelOrdersContext{
		MessageId:        "m1",
		OrderIds:         []string{"o1", "s1"},
		ProcessedMessage: &models.ProcessedMessage{MessageId: "m1"},
	})

	response := <-f.responses
	assert.Equal(t, models.MessageStatusOk, response.Status)

	assert.Equal(t, "0", f.balances.GetReservedBalance("c1", "USD").String())
	assert.Nil(t, f.books.GetOrder("o1"))
	assert.Nil(t, f.stopBooks.GetOrder("s1"))

	require.Len(t, f.persistence.commits, 1)
	diff := f.persistence.commits[0].booksDiff
	require.Len(t, diff.Sides, 2)
	assert.False(t, diff.Sides[0].IsStopBook)
	assert.True(t, diff.Sides[1].IsStopBook)
	assert.Len(t, diff.OrdersToRemove, 2)

	report := <-f.reports
	assert.Len(t, report.Orders, 2)

	require.Len(t, f.events.executionEvents, 1)
	assert.Equal(t, int64(1), f.events.executionEvents[0].SequenceNumber)
}

func TestCancelService_AllOrdersMissingIsBadRequest(t *testing.T) {
	f := newCancelFixture(nil)

	f.service.ProcessCancelBatch(context.Background(), &models.CancelOrdersContext{
		MessageId:        "m1",
		OrderIds:         []string{"ghost"},
		ProcessedMessage: &models.ProcessedMessage{MessageId: "m1"},
	})

	response := <-f.responses
	assert.Equal(t, models.MessageStatusBadRequest, response.Status)
	assert.Empty(t, f.persistence.commits)
}

func TestCancelService_PersistenceFailureDiscardsPlan(t *testing.T) {
	f := newCancelFixture(nil)
	f.persistence.fail = true
	f.balances.SetBalance("c1", "USD", models.Balance{Balance: dec("500"), Reserved: dec("100")})
	order := newOrder("o1", "c1", "1", "100")
	order.ReservedVolume = dec("100")
	f.books.AddOrder(order)

	f.service.ProcessCancelBatch(context.Background(), &models.CancelOrdersContext{
		MessageId:        "m1",
		OrderIds:         []string{"o1"},
		ProcessedMessage: &models.ProcessedMessage{MessageId: "m1"},
	})

	response := <-f.responses
	assert.Equal(t, models.MessageStatusRuntime, response.Status)
	assert.Equal(t, "Unable to save result data", response.Reason)

	assert.Equal(t, "100", f.balances.GetReservedBalance("c1", "USD").String())
	assert.NotNil(t, f.books.GetOrder("o1"))
	assert.Equal(t, models.StatusInOrderBook, order.Status)
	assert.Empty(t, f.events.executionEvents)
}
