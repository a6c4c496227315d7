package payment

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nasuf/dictation-studio-service/internal/pkg/env"
)

// Order lifecycle statuses.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
	OrderStatusExpired = "expired"
)

// ZPayPaymentTypes maps the accepted payment channels to their display
// names on the provider's checkout page.
var ZPayPaymentTypes = map[string]string{
	"alipay": "支付宝",
	"wxpay":  "微信支付",
}

// ZPayPlanPricing is the fixed per-plan price in CNY. Each plan sells in
// one duration only.
var ZPayPlanPricing = map[string]string{
	"Basic":   "19.00",
	"Pro":     "49.00",
	"Premium": "89.00",
}

// ZPayPlanDurations maps each plan to its only valid duration in days.
var ZPayPlanDurations = map[string]int{
	"Basic":   30,
	"Pro":     90,
	"Premium": 180,
}

// ZPayClient talks to a ZPAY-compatible aggregated payment gateway. All
// requests and callbacks are authenticated with an MD5 signature over the
// ASCII-sorted parameters.
type ZPayClient struct {
	pid       string
	key       string
	submitURL string
	apiURL    string
	notifyURL string
	returnURL string
	http      *http.Client
}

func NewZPayClient() *ZPayClient {
	base := strings.TrimRight(env.GetEnv("ZPAY_BASE_URL", "https://z-pay.cn"), "/")
	return &ZPayClient{
		pid:       env.GetEnv("ZPAY_PID", ""),
		key:       env.GetEnv("ZPAY_KEY", ""),
		submitURL: base + "/submit.php",
		apiURL:    base + "/api.php",
		notifyURL: env.GetEnv("ZPAY_NOTIFY_URL", ""),
		returnURL: env.GetEnv("ZPAY_RETURN_URL", ""),
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// GenerateOrderID creates a unique merchant order number.
func GenerateOrderID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("DS_ZPAY_%d_%s", time.Now().Unix(), strings.ToUpper(hex.EncodeToString(buf)))
}

// Sign computes the gateway signature: parameters sorted by key in ASCII
// order, joined as k=v with &, the merchant key appended, MD5-hexed. Empty
// values are skipped.
func (c *ZPayClient) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if params[k] == "" || k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&") + c.key))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a callback's signature, ignoring the sign and
// sign_type parameters themselves.
func (c *ZPayClient) VerifySignature(params map[string]string, receivedSign string) bool {
	return strings.EqualFold(c.Sign(params), receivedSign)
}

// BuildPaymentURL assembles the signed checkout redirect URL for an order.
func (c *ZPayClient) BuildPaymentURL(orderID, planName string, durationDays int, amount, payType string) string {
	params := map[string]string{
		"money":        amount,
		"name":         fmt.Sprintf("Dictation Studio - %s Plan - %d Days", planName, durationDays),
		"notify_url":   c.notifyURL,
		"out_trade_no": orderID,
		"pid":          c.pid,
		"return_url":   c.returnURL,
		"sitename":     "Dictation Studio",
		"type":         payType,
	}
	sign := c.Sign(params)

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("sign", sign)
	q.Set("sign_type", "MD5")
	return c.submitURL + "?" + q.Encode()
}

// OrderStatus is the gateway's view of an order.
type OrderStatus struct {
	Status  string
	TradeNo string
	Money   string
}

// QueryOrderStatus polls the gateway for an order's current state. Returns
// nil when the gateway does not know the order.
func (c *ZPayClient) QueryOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	q := url.Values{}
	q.Set("act", "order")
	q.Set("pid", c.pid)
	q.Set("key", c.key)
	q.Set("out_trade_no", orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from order query", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Code        int    `json:"code"`
		TradeStatus string `json:"trade_status"`
		TradeNo     string `json:"trade_no"`
		Money       string `json:"money"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse order query response: %w", err)
	}
	if result.Code != 1 {
		return nil, nil
	}

	status := OrderStatusPending
	if result.TradeStatus == "TRADE_SUCCESS" {
		status = OrderStatusPaid
	}
	return &OrderStatus{Status: status, TradeNo: result.TradeNo, Money: result.Money}, nil
}
