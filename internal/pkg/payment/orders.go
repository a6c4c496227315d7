package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

const (
	orderTTL     = 24 * time.Hour
	userOrderTTL = 30 * 24 * time.Hour
	lockTTL      = 30 * time.Second
)

// Order is a gateway payment order tracked locally while the payment is in
// flight.
type Order struct {
	OrderID    string `redis:"order_id" json:"orderId"`
	UserEmail  string `redis:"user_email" json:"userEmail"`
	PlanName   string `redis:"plan_name" json:"planName"`
	Duration   int    `redis:"duration" json:"duration"`
	Amount     string `redis:"amount" json:"amount"`
	PayType    string `redis:"pay_type" json:"payType"`
	Status     string `redis:"status" json:"status"`
	TradeNo    string `redis:"trade_no" json:"tradeNo,omitempty"`
	PaymentURL string `redis:"payment_url" json:"paymentUrl"`
	CreatedAt  string `redis:"created_at" json:"createdAt"`
	PaidAt     string `redis:"paid_at" json:"paidAt,omitempty"`
}

// OrderStore keeps pending gateway orders and per-user order indexes in the
// user database. Orders expire after a day, the per-user index after a
// month.
type OrderStore struct {
	rdb *redis.Client
}

func NewOrderStore(rdb *redis.Client) *OrderStore {
	return &OrderStore{rdb: rdb}
}

func (s *OrderStore) Save(ctx context.Context, o *Order) error {
	key := constants.ZPayOrderPrefix + o.OrderID
	if err := s.rdb.HSet(ctx, key, o).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, orderTTL).Err()
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (*Order, error) {
	key := constants.ZPayOrderPrefix + orderID
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	var o Order
	if err := s.rdb.HGetAll(ctx, key).Scan(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// AddToUser appends an order to the user's order index.
func (s *OrderStore) AddToUser(ctx context.Context, email, orderID string) error {
	key := constants.ZPayUserOrdersPrefix + email
	if err := s.rdb.RPush(ctx, key, orderID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, userOrderTTL).Err()
}

// ListForUser returns the user's orders, newest first. Orders that have
// already expired from the store are skipped.
func (s *OrderStore) ListForUser(ctx context.Context, email string) ([]*Order, error) {
	ids, err := s.rdb.LRange(ctx, constants.ZPayUserOrdersPrefix+email, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	orders := make([]*Order, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		o, err := s.Get(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		if o != nil {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// AcquireCallbackLock takes the per-order idempotency lock used while a
// payment callback is processed. Returns false when another worker holds
// it.
func (s *OrderStore) AcquireCallbackLock(ctx context.Context, orderID string) (bool, error) {
	return s.rdb.SetNX(ctx, constants.ZPayCallbackLockPrefix+orderID, "1", lockTTL).Result()
}

// ReleaseCallbackLock drops the idempotency lock.
func (s *OrderStore) ReleaseCallbackLock(ctx context.Context, orderID string) error {
	return s.rdb.Del(ctx, constants.ZPayCallbackLockPrefix+orderID).Err()
}
