package kabu

// Request/response payloads for the kabu-station style REST API. Field
// names follow the wire format, not Go conventions.

type tokenRequest struct {
	APIPassword string `json:"APIPassword"`
}

type tokenResponse struct {
	ResultCode int    `json:"ResultCode"`
	Token      string `json:"Token"`
}

type candleBar struct {
	Date   string  `json:"Date"` // YYYY-MM-DD
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume float64 `json:"Volume"`
}

type position struct {
	Symbol        string  `json:"Symbol"`
	LeavesQty     float64 `json:"LeavesQty"`
	Price         float64 `json:"Price"`
	ProfitLoss    float64 `json:"ProfitLoss"`
	CurrentPrice  float64 `json:"CurrentPrice"`
}

type cashResponse struct {
	StockAccountWallet float64 `json:"StockAccountWallet"`
}

type orderRequest struct {
	Password       string  `json:"Password"`
	Symbol         string  `json:"Symbol"`
	Exchange       int     `json:"Exchange"`
	SecurityType   int     `json:"SecurityType"`
	Side           string  `json:"Side"` // "1" sell, "2" buy
	CashMargin     int     `json:"CashMargin"`
	DelivType      int     `json:"DelivType"`
	AccountType    int     `json:"AccountType"`
	Qty            int     `json:"Qty"`
	FrontOrderType int     `json:"FrontOrderType"` // 20 = limit
	Price          float64 `json:"Price"`
	ExpireDay      int     `json:"ExpireDay"` // 0 = today
}

type orderResponse struct {
	Result  int    `json:"Result"`
	OrderID string `json:"OrderId"`
}

// ExecutionNotice is one push message from the brokerage websocket: an
// order reaching a terminal state.
type ExecutionNotice struct {
	OrderID string  `json:"OrderId"`
	Symbol  string  `json:"Symbol"`
	Qty     float64 `json:"Qty"`
	Price   float64 `json:"Price"`
	State   int     `json:"State"` // 5 = done
}
