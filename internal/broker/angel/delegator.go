package angel

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"main/internal/broker"
	"main/internal/model"
	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

const (
	_pathPlaceOrder = "/rest/secure/angelbroking/order/v1/placeOrder"
	_pathLtpData    = "/order-service/rest/secure/angelbroking/order/v1/getLtpData"
	_pathPositions  = "/rest/secure/angelbroking/portfolio/v1/getpositions"
	_pathRMS        = "/rest/secure/angelbroking/user/v1/getRMS"
	_pathCandleData = "/rest/secure/angelbroking/historical/v1/getCandleData"

	_candleTimeLayout = "2006-01-02 15:04"

	_requestTimeout     = 15 * time.Second
	_scripMasterTimeout = 2 * time.Minute
)

// Delegator speaks the broker's REST surface. One instance is shared by all
// credentials; per-call auth rides in the headers.
type Delegator struct {
	client      *http.Client
	baseURL     string
	scripMaster string
}

func NewDelegator(client *http.Client, baseURL, scripMasterURL string) *Delegator {
	return &Delegator{
		client:      client,
		baseURL:     baseURL,
		scripMaster: scripMasterURL,
	}
}

var _ broker.Gateway = (*Delegator)(nil)

func (d *Delegator) PlaceOrder(ctx context.Context, auth broker.Auth, req broker.OrderRequest) (broker.OrderResponse, error) {
	if len(req.TradingSymbol) == 0 || len(req.Token) == 0 || req.Quantity <= 0 {
		return broker.OrderResponse{}, exception.ErrOrderInvalidRequest
	}

	body := map[string]string{
		"variety":           "NORMAL",
		"tradingsymbol":     req.TradingSymbol,
		"symboltoken":       req.Token,
		"transactiontype":   req.Side.String(),
		"exchange":          req.Exchange,
		"ordertype":         "MARKET",
		"producttype":       "INTRADAY",
		"duration":          "DAY",
		"price":             "0",
		"squareoff":         "0",
		"stoploss":          "0",
		"quantity":          strconv.FormatInt(req.Quantity, 10),
		"triggerprice":      "0",
		"disclosedquantity": "0",
	}

	var data response[responsePlaceOrder]
	if err := d.post(ctx, auth, _pathPlaceOrder, body, &data); err != nil {
		return broker.OrderResponse{}, errors.Wrap(err, "place order").With("symbol", req.TradingSymbol)
	}

	if !data.Status {
		return broker.OrderResponse{}, errors.Wrapf(exception.ErrOrderRejected, "code: %s, message: %s", data.ErrorCode, data.Message)
	}

	if len(data.Data.OrderID) == 0 {
		return broker.OrderResponse{}, exception.ErrOrderEmptyResponseID
	}

	return broker.OrderResponse{OrderID: data.Data.OrderID}, nil
}

func (d *Delegator) LTP(ctx context.Context, auth broker.Auth, exchange, tradingSymbol, token string) (float64, error) {
	body := map[string]string{
		"exchange":      exchange,
		"tradingsymbol": tradingSymbol,
		"symboltoken":   token,
	}

	var data response[responseLTP]
	if err := d.post(ctx, auth, _pathLtpData, body, &data); err != nil {
		return 0, errors.Wrap(err, "get ltp").With("symbol", tradingSymbol)
	}

	if !data.Status || data.Data.LTP <= 0 {
		return 0, errors.Wrapf(exception.ErrNoPrice, "symbol: %s, message: %s", tradingSymbol, data.Message)
	}

	return data.Data.LTP, nil
}

func (d *Delegator) Positions(ctx context.Context, auth broker.Auth) ([]broker.PositionPnL, error) {
	var data response[[]responsePosition]
	if err := d.get(ctx, auth, _pathPositions, &data); err != nil {
		return nil, errors.Wrap(err, "get positions")
	}

	// An empty book comes back with a null data field and status true.
	rows := make([]broker.PositionPnL, 0, len(data.Data))
	for _, p := range data.Data {
		rows = append(rows, broker.PositionPnL{
			Realized:    toFloat(p.Realised),
			Unrealized:  toFloat(p.Unrealised),
			ProductType: p.ProductType,
		})
	}

	return rows, nil
}

func (d *Delegator) Funds(ctx context.Context, auth broker.Auth) (float64, error) {
	var data response[responseRMS]
	if err := d.get(ctx, auth, _pathRMS, &data); err != nil {
		return 0, errors.Wrap(err, "get rms")
	}

	if !data.Status {
		return 0, errors.Errorf("get rms, code: %s, message: %s", data.ErrorCode, data.Message)
	}

	return toFloat(data.Data.AvailableCash), nil
}

func (d *Delegator) Candles(ctx context.Context, auth broker.Auth, exchange, token, interval string, from, to time.Time) ([]model.Candle, error) {
	body := map[string]string{
		"exchange":    exchange,
		"symboltoken": token,
		"interval":    interval,
		"fromdate":    from.Format(_candleTimeLayout),
		"todate":      to.Format(_candleTimeLayout),
	}

	// Each row is [timestamp, open, high, low, close, volume].
	var data response[[][]any]
	if err := d.post(ctx, auth, _pathCandleData, body, &data); err != nil {
		return nil, errors.Wrap(err, "get candle data").With("token", token)
	}

	if !data.Status {
		return nil, errors.Errorf("get candle data, code: %s, message: %s", data.ErrorCode, data.Message)
	}

	candles := make([]model.Candle, 0, len(data.Data))
	for _, row := range data.Data {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, model.Candle{
			Open:  toFloatAny(row[1]),
			High:  toFloatAny(row[2]),
			Low:   toFloatAny(row[3]),
			Close: toFloatAny(row[4]),
		})
	}

	return candles, nil
}

// FetchScripMaster downloads the full instrument catalog. The payload is
// tens of megabytes, so this call runs on its own generous deadline.
func (d *Delegator) FetchScripMaster(ctx context.Context) ([]model.CatalogRow, error) {
	ctx, cancel := context.WithTimeout(ctx, _scripMasterTimeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, d.scripMaster, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build scrip master request")
	}
	r.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(r)
	if err != nil {
		return nil, errors.Wrap(err, "fetch scrip master")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(exception.ErrScripBadMasterShape, "status: %d", resp.StatusCode)
	}

	var rows []model.CatalogRow
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrap(exception.ErrScripBadMasterShape, err.Error())
	}

	return rows, nil
}

func (d *Delegator) post(ctx context.Context, auth broker.Auth, path string, body map[string]string, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return err
	}
	return d.do(ctx, auth, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (d *Delegator) get(ctx context.Context, auth broker.Auth, path string, out any) error {
	return d.do(ctx, auth, http.MethodGet, path, nil, out)
}

func (d *Delegator) do(ctx context.Context, auth broker.Auth, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return err
	}

	r.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("X-UserType", "USER")
	r.Header.Set("X-SourceID", "WEB")
	r.Header.Set("X-ClientLocalIP", "127.0.0.1")
	r.Header.Set("X-ClientPublicIP", "127.0.0.1")
	r.Header.Set("X-MACAddress", "AA-BB-CC-DD-EE-FF")
	if len(auth.APIKey) != 0 {
		r.Header.Set("X-PrivateKey", auth.APIKey)
	}

	resp, err := d.client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out)
}

func toFloat(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func toFloatAny(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
