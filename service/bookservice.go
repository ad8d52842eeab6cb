package service

import (
	"order-matching-core/models"
)

// OrderBookService is the per-pair order book cache plus the secondary
// order lookup indexes. Two instances exist: one for the live limit book
// and one for the stop-order book. All mutation happens on the serialized
// execution zone, so no locking is needed here.
type OrderBookService struct {
	books      map[string]*AssetOrderBook
	ordersById map[string]*models.Order
	// clientOrders indexes resting orders per client for the search path.
	clientOrders map[string]map[string]*models.Order
}

func NewOrderBookService() *OrderBookService {
	return &OrderBookService{
		books:        make(map[string]*AssetOrderBook),
		ordersById:   make(map[string]*models.Order),
		clientOrders: make(map[string]map[string]*models.Order),
	}
}

func (s *OrderBookService) GetOrderBook(assetPairId string) *AssetOrderBook {
	book, ok := s.books[assetPairId]
	if !ok {
		book = NewAssetOrderBook(assetPairId)
		s.books[assetPairId] = book
	}
	return book
}

// SetOrderBook commits a speculative book copy into the live cache. Only
// called after the corresponding persistence step succeeded.
func (s *OrderBookService) SetOrderBook(assetPairId string, book *AssetOrderBook) {
	s.books[assetPairId] = book
}

// AddOrder inserts the order into its book and the lookup indexes.
func (s *OrderBookService) AddOrder(order *models.Order) {
	s.GetOrderBook(order.AssetPairId).AddOrder(order)
	s.RegisterOrder(order)
}

// RegisterOrder adds the order to the lookup indexes only; used when the
// book itself was committed via SetOrderBook.
func (s *OrderBookService) RegisterOrder(order *models.Order) {
	s.ordersById[order.Id] = order
	byClient, ok := s.clientOrders[order.ClientId]
	if !ok {
		byClient = make(map[string]*models.Order)
		s.clientOrders[order.ClientId] = byClient
	}
	byClient[order.Id] = order
}

func (s *OrderBookService) GetOrder(id string) *models.Order {
	return s.ordersById[id]
}

func (s *OrderBookService) GetOrderByExternalId(clientId, externalId string) *models.Order {
	for _, order := range s.clientOrders[clientId] {
		if order.ExternalId == externalId {
			return order
		}
	}
	return nil
}

// SearchOrders returns the client's resting orders on one pair and side.
func (s *OrderBookService) SearchOrders(clientId, assetPairId string, isBuySide bool) []*models.Order {
	var found []*models.Order
	for _, order := range s.GetOrderBook(assetPairId).SideOrders(isBuySide) {
		if order.ClientId == clientId {
			found = append(found, order)
		}
	}
	return found
}

// CancelLimitOrders marks the orders cancelled and drops them from the
// lookup indexes. The book mutation itself happens through SetOrderBook.
func (s *OrderBookService) CancelLimitOrders(orders []*models.Order, atMillis int64) {
	for _, order := range orders {
		order.UpdateStatus(models.StatusCancelled, atMillis)
		s.unregisterOrder(order)
	}
}

func (s *OrderBookService) unregisterOrder(order *models.Order) {
	delete(s.ordersById, order.Id)
	if byClient, ok := s.clientOrders[order.ClientId]; ok {
		delete(byClient, order.Id)
		if len(byClient) == 0 {
			delete(s.clientOrders, order.ClientId)
		}
	}
}
