package oanda

// Wire types of the OANDA v20 REST API. Prices and amounts travel as decimal strings.

type accountSummaryResponse struct {
	Account struct {
		ID       string `json:"id"`
		Currency string `json:"currency"`
		Balance  string `json:"balance"`
	} `json:"account"`
}

type instrument struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	DisplayPrecision int    `json:"displayPrecision"`
	PipLocation      int    `json:"pipLocation"`
	MinimumTradeSize string `json:"minimumTradeSize"`
}

type instrumentsResponse struct {
	Instruments []instrument `json:"instruments"`
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

type priceBucket struct {
	Price string `json:"price"`
}

type clientPrice struct {
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Tradeable  bool          `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

// homeConversion holds the factors converting an amount in Currency into the account currency.
type homeConversion struct {
	Currency      string `json:"currency"`
	AccountGain   string `json:"accountGain"`
	AccountLoss   string `json:"accountLoss"`
	PositionValue string `json:"positionValue"`
}

type pricingResponse struct {
	Prices          []clientPrice    `json:"prices"`
	HomeConversions []homeConversion `json:"homeConversions,omitempty"`
}

type clientExtensions struct {
	ID      string `json:"id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type onFillDetails struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
}

type marketOrderRequest struct {
	Type                  string            `json:"type"`
	Instrument            string            `json:"instrument"`
	Units                 string            `json:"units"`
	TimeInForce           string            `json:"timeInForce"`
	PriceBound            string            `json:"priceBound,omitempty"`
	PositionFill          string            `json:"positionFill"`
	StopLossOnFill        *onFillDetails    `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill      *onFillDetails    `json:"takeProfitOnFill,omitempty"`
	ClientExtensions      *clientExtensions `json:"clientExtensions,omitempty"`
	TradeClientExtensions *clientExtensions `json:"tradeClientExtensions,omitempty"`
}

type orderRequestBody struct {
	Order marketOrderRequest `json:"order"`
}

type tradeOpen struct {
	TradeID string `json:"tradeID"`
	Units   string `json:"units"`
}

type transaction struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Price        string     `json:"price,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
	TradeOpened  *tradeOpen `json:"tradeOpened,omitempty"`
}

type orderResponse struct {
	OrderCreateTransaction *transaction `json:"orderCreateTransaction,omitempty"`
	OrderFillTransaction   *transaction `json:"orderFillTransaction,omitempty"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction,omitempty"`
	OrderRejectTransaction *transaction `json:"orderRejectTransaction,omitempty"`
	ErrorCode              string       `json:"errorCode,omitempty"`
	ErrorMessage           string       `json:"errorMessage,omitempty"`
}

type apiTrade struct {
	ID                string            `json:"id"`
	Instrument        string            `json:"instrument"`
	InitialUnits      string            `json:"initialUnits"`
	State             string            `json:"state"`
	RealizedPL        string            `json:"realizedPL"`
	AverageClosePrice string            `json:"averageClosePrice"`
	OpenTime          string            `json:"openTime"`
	CloseTime         string            `json:"closeTime"`
	ClientExtensions  *clientExtensions `json:"clientExtensions,omitempty"`
}

type tradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
