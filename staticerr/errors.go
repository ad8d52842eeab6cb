package staticerr

import "errors"

var (
	ErrorRabbitConnectionFail = errors.New("RabbitUnvailable")
	ErrorUnknownAsset         = errors.New("UnknownAsset")
	ErrorUnknownAssetPair     = errors.New("UnknownAssetPair")
	ErrorOrderNotFound        = errors.New("OrderNotFound")
	ErrorNegativeBalance      = errors.New("NegativeBalance")
)
