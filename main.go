package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"order-matching-core/config"
	"order-matching-core/models"
	"order-matching-core/pipeline"
	"order-matching-core/rabbit"
	"order-matching-core/service"
	"order-matching-core/storage"
	"order-matching-core/validators"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// matchingForwarder hands live limit orders to the external matching
// collaborator over its queue. Matching itself is out of process.
type matchingForwarder struct {
	sender *rabbit.Sender
}

func (f *matchingForwarder) ProcessLimitOrder(ctx context.Context, orderContext *models.OrderContext, _ decimal.Decimal) {
	if err := f.sender.SendLimitOrderForMatching(ctx, orderContext.Order); err != nil {
		logrus.WithField("orderId", orderContext.Order.ExternalId).Errorln("Forward to matching failed, reason: ", err.Error())
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalln("Load config failed, reason: ", err.Error())
	}

	redisClient, err := storage.NewRedisClient(cfg.RedisHost)
	if err != nil {
		logrus.Fatalln("Redis connection failed, reason: ", err.Error())
	}

	dictionaries := storage.NewDictionariesStorage(redisClient)
	assets, err := dictionaries.LoadAssets(ctx)
	if err != nil {
		logrus.Fatalln("Load assets failed, reason: ", err.Error())
	}
	pairs, err := dictionaries.LoadAssetPairs(ctx)
	if err != nil {
		logrus.Fatalln("Load asset pairs failed, reason: ", err.Error())
	}
	sequenceNumber, err := dictionaries.LoadSequenceNumber(ctx)
	if err != nil {
		logrus.Fatalln("Load sequence number failed, reason: ", err.Error())
	}

	settings := service.NewSettingsCache(
		splitEnvList(os.Getenv("OMC_DISABLED_ASSETS")),
		splitEnvList(os.Getenv("OMC_TRUSTED_CLIENTS")))
	assetsHolder := service.NewAssetsHolder(assets)
	pairsHolder := service.NewAssetsPairsHolder(pairs)
	balancesHolder := service.NewBalancesHolder(storage.NewRedisPersistence(redisClient), settings)

	balances, err := dictionaries.LoadBalances(ctx)
	if err != nil {
		logrus.Fatalln("Load balances failed, reason: ", err.Error())
	}
	for _, snapshot := range balances {
		balancesHolder.SetBalance(snapshot.ClientId, snapshot.AssetId, snapshot.Balance)
	}

	connection, err := rabbit.GetRabbitConnection(cfg.RabbitUrl, cfg.RabbitConnectTimeout)
	if err != nil {
		logrus.Fatalln("Rabbit connection failed, reason: ", err.Error())
	}
	channel, err := connection.Channel()
	if err != nil {
		logrus.Fatalln("Rabbit channel failed, reason: ", err.Error())
	}
	sender := rabbit.NewSender(ctx, channel)

	intake := make(chan *models.MessageWrapper, cfg.IntakeQueueSize)
	preprocessed := make(chan *models.MessageWrapper, cfg.PreprocessedQueueSize)
	clientReports := make(chan *models.LimitOrdersReport, cfg.ReportsQueueSize)
	trustedReports := make(chan *models.LimitOrdersReport, cfg.ReportsQueueSize)
	responses := make(chan models.Response, cfg.ResponsesQueueSize)

	limitOrderService := service.NewOrderBookService()
	stopOrderService := service.NewOrderBookService()
	sequenceHolder := service.NewSequenceNumberHolder(sequenceNumber)
	matchingEngine := &matchingForwarder{sender: &sender}

	stopProcessor := service.NewStopLimitOrderProcessor(limitOrderService,
		stopOrderService,
		matchingEngine,
		assetsHolder,
		balancesHolder,
		validators.NewBusinessValidator(),
		sequenceHolder,
		&sender,
		clientReports,
		responses)

	cancelService := service.NewCancelService(limitOrderService,
		stopOrderService,
		pairsHolder,
		assetsHolder,
		balancesHolder,
		sequenceHolder,
		&sender,
		clientReports,
		trustedReports,
		responses)

	executor := service.NewExecutor(preprocessed,
		stopProcessor,
		matchingEngine,
		cancelService,
		limitOrderService,
		stopOrderService,
		responses)

	preprocessor := pipeline.NewPreprocessor(intake,
		preprocessed,
		responses,
		validators.NewInputValidator(settings),
		assetsHolder,
		pairsHolder,
		settings,
		cfg.PreprocessorWorkers)

	consumer := rabbit.NewProcessor(parseMessageWrapper, func(ctx context.Context, wrapper *models.MessageWrapper) {
		select {
		case <-ctx.Done():
		case intake <- wrapper:
		}
	})

	go preprocessor.Run(ctx)
	go executor.Run(ctx)
	go forwardReports(ctx, clientReports, sender.SendClientReport)
	go forwardReports(ctx, trustedReports, sender.SendTrustedClientReport)
	go forwardResponses(ctx, responses, &sender)

	logrus.Infoln("Order matching core started")

	if err = consumer.RunConsumer(ctx, channel, cfg.OrdersQueue); err != nil {
		logrus.Fatalln("Consumer failed, reason: ", err.Error())
	}
}

func parseMessageWrapper(body []byte) (*models.MessageWrapper, error) {
	var wrapper models.MessageWrapper
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper, nil
}

func forwardReports(ctx context.Context, reports <-chan *models.LimitOrdersReport,
	send func(context.Context, *models.LimitOrdersReport) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case report := <-reports:
			if err := send(ctx, report); err != nil {
				logrus.WithField("messageId", report.MessageId).Errorln("Send report failed, reason: ", err.Error())
			}
		}
	}
}

func forwardResponses(ctx context.Context, responses <-chan models.Response, sender *rabbit.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case response := <-responses:
			if err := sender.SendResponse(ctx, &response); err != nil {
				logrus.WithField("messageId", response.MessageId).Errorln("Send response failed, reason: ", err.Error())
			}
		}
	}
}

func splitEnvList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
