package storage

import (
	"context"

	redisLib "github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"
)

type TxContainer struct {
	tx redisLib.Pipeliner
}

type RedisClient struct {
	cli *redisLib.Client
}

func NewRedisClient(host string) (*RedisClient, error) {
	cli := redisLib.NewClient(&redisLib.Options{
		Addr:     host,
		Password: "",
		DB:       0,
	})

	pong, err := cli.Ping(context.Background()).Result()

	if err != nil {
		return nil, err
	}

	logger.Infoln(pong)
	return &RedisClient{cli: cli}, nil
}

func (r *RedisClient) getAllFromHash(ctx context.Context, key string) (map[string]string, error) {
	values, err := r.cli.HGetAll(ctx, key).Result()

	if err != nil {
		return nil, err
	}

	return values, nil
}

func (r *RedisClient) getValue(ctx context.Context, key string) (*string, error) {
	value, err := r.cli.Get(ctx, key).Result()

	if err != nil {
		return nil, err
	}

	return &value, nil
}

func (x *TxContainer) addInHash(ctx context.Context, key string, fieldKey string, fieldValue interface{}) *TxContainer {
	x.tx.HSet(ctx, key, fieldKey, fieldValue)

	return x
}

func (x *TxContainer) removeFromHash(ctx context.Context, key string, field string) *TxContainer {
	x.tx.HDel(ctx, key, field)

	return x
}

func (x *TxContainer) setValue(ctx context.Context, key string, value interface{}) *TxContainer {
	x.tx.Set(ctx, key, value, 0)

	return x
}

func (r *RedisClient) performTx(ctx context.Context) TxContainer {
	tx := r.cli.TxPipeline()
	return TxContainer{tx: tx}
}

func (x *TxContainer) execTx(ctx context.Context) error {
	_, err := x.tx.Exec(ctx)
	return err
}
