package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/app/repository"
	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
	"github.com/nasuf/dictation-studio-service/internal/pkg/payment"
)

type checkoutRequest struct {
	Plan        string `json:"plan" validate:"required,oneof=Basic Pro Premium"`
	Duration    int    `json:"duration" validate:"required,min=1"`
	IsRecurring bool   `json:"isRecurring"`
}

type zpayOrderRequest struct {
	Plan    string `json:"plan" validate:"required,oneof=Basic Pro Premium"`
	PayType string `json:"payType" validate:"required,oneof=alipay wxpay"`
}

// HandleCreateCheckoutSession opens a Stripe checkout for the current user.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := deps.Stripe.CreateCheckoutSession(currentUser(c), req.Plan, req.Duration, req.IsRecurring)
	if err != nil {
		logrus.Errorf("checkout session creation failed: %v", err)
		return internalError(c, "Failed to create checkout session")
	}
	return c.JSON(session)
}

// HandleStripeWebhook consumes Stripe events. A verified completed
// checkout is applied to the user's plan with retries; a payment that
// cannot be applied is parked for the background retrier, and Stripe is
// answered 200 so it does not re-deliver what we already recorded.
func HandleStripeWebhook(c *fiber.Ctx) error {
	ev, sessionID, err := deps.StripeWebhook.Decode(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		logrus.Warnf("stripe webhook rejected: %v", err)
		return badRequest(c, "Invalid webhook payload")
	}
	if ev == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	if err := payment.ApplyWithRetry(c.Context(), deps.Entitlements, deps.FailedUpdates, sessionID, *ev); err != nil {
		logrus.Errorf("plan application parked for session %s: %v", sessionID, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

// HandleVerifySession lets the client confirm a checkout outcome directly,
// covering webhook delivery gaps. A paid session is (re-)applied; the
// engine's expiration arithmetic makes a duplicate application extend from
// the already-extended expiration, so callers must treat this as
// idempotent only when the webhook was lost.
func HandleVerifySession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return badRequest(c, "sessionId is required")
	}

	paid, metadata, err := deps.Stripe.VerifySession(sessionID)
	if err != nil {
		logrus.Errorf("session verification failed: %v", err)
		return internalError(c, "Failed to verify session")
	}
	if !paid {
		return c.JSON(fiber.Map{"paid": false})
	}

	// Only apply when a parked failed update exists; an already-applied
	// webhook leaves nothing to do.
	parked, err := deps.FailedUpdates.Get(c.Context(), sessionID)
	if err != nil {
		logrus.Errorf("failed update lookup failed: %v", err)
		return internalError(c, "Failed to verify session")
	}
	if parked != nil {
		if err := payment.ApplyWithRetry(c.Context(), deps.Entitlements, deps.FailedUpdates, sessionID, parked.Event); err != nil {
			logrus.Errorf("parked plan application failed for session %s: %v", sessionID, err)
			return internalError(c, "Payment recorded but plan update is still pending")
		}
	}

	ev, err := payment.EventFromMetadata(metadata)
	if err != nil {
		return c.JSON(fiber.Map{"paid": true})
	}
	return c.JSON(fiber.Map{"paid": true, "plan": ev.PlanName, "duration": ev.DurationDays})
}

// HandleCreateZPayOrder creates a gateway order and returns the redirect
// URL.
func HandleCreateZPayOrder(c *fiber.Ctx) error {
	var req zpayOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	amount := payment.ZPayPlanPricing[req.Plan]
	duration := payment.ZPayPlanDurations[req.Plan]
	email := currentUser(c)

	orderID := payment.GenerateOrderID()
	paymentURL := deps.ZPay.BuildPaymentURL(orderID, req.Plan, duration, amount, req.PayType)

	order := &payment.Order{
		OrderID:    orderID,
		UserEmail:  email,
		PlanName:   req.Plan,
		Duration:   duration,
		Amount:     amount,
		PayType:    req.PayType,
		Status:     payment.OrderStatusPending,
		PaymentURL: paymentURL,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := deps.Orders.Save(c.Context(), order); err != nil {
		logrus.Errorf("order save failed: %v", err)
		return internalError(c, "Failed to create payment order")
	}
	if err := deps.Orders.AddToUser(c.Context(), email, orderID); err != nil {
		logrus.Errorf("order index update failed: %v", err)
		return internalError(c, "Failed to create payment order")
	}

	logrus.Infof("created payment order %s for user %s (%s)", orderID, email, req.Plan)
	return c.JSON(fiber.Map{
		"orderId":    orderID,
		"paymentUrl": paymentURL,
		"amount":     amount,
		"currency":   "CNY",
	})
}

// HandleZPayNotify is the gateway's server-to-server payment callback. The
// signature is verified, then the order is settled exactly once under a
// per-order lock.
func HandleZPayNotify(c *fiber.Ctx) error {
	params := map[string]string{}
	for _, key := range []string{"trade_no", "out_trade_no", "type", "name", "money", "trade_status", "sign", "sign_type", "pid", "param"} {
		if v := c.Query(key); v != "" {
			params[key] = v
		}
	}

	for _, required := range []string{"trade_no", "out_trade_no", "trade_status", "sign"} {
		if params[required] == "" {
			return badRequest(c, "Missing callback parameter: "+required)
		}
	}

	if !deps.ZPay.VerifySignature(params, params["sign"]) {
		logrus.Warnf("invalid payment callback signature for order %s", params["out_trade_no"])
		return badRequest(c, "Invalid signature")
	}

	if params["trade_status"] != "TRADE_SUCCESS" {
		return c.SendString("success")
	}

	if err := settleZPayOrder(c, params["out_trade_no"], params["trade_no"]); err != nil {
		logrus.Errorf("order settlement failed for %s: %v", params["out_trade_no"], err)
		return internalError(c, "Failed to process payment")
	}
	// The gateway retries until it sees this exact body.
	return c.SendString("success")
}

func settleZPayOrder(c *fiber.Ctx, orderID, tradeNo string) error {
	ctx := c.Context()

	locked, err := deps.Orders.AcquireCallbackLock(ctx, orderID)
	if err != nil {
		return err
	}
	if !locked {
		logrus.Infof("order %s is already being processed", orderID)
		return nil
	}
	defer func() {
		if err := deps.Orders.ReleaseCallbackLock(ctx, orderID); err != nil {
			logrus.Warnf("lock release failed for order %s: %v", orderID, err)
		}
	}()

	order, err := deps.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		logrus.Warnf("callback for unknown order %s", orderID)
		return nil
	}
	if order.Status == payment.OrderStatusPaid {
		return nil
	}

	order.Status = payment.OrderStatusPaid
	order.TradeNo = tradeNo
	order.PaidAt = time.Now().UTC().Format(time.RFC3339)
	if err := deps.Orders.Save(ctx, order); err != nil {
		return err
	}

	return payment.ApplyWithRetry(ctx, deps.Entitlements, deps.FailedUpdates, orderID, entitlement.PaymentEvent{
		UserEmail:    order.UserEmail,
		PlanName:     order.PlanName,
		DurationDays: order.Duration,
	})
}

// HandleGetZPayOrderStatus returns one order's state, polling the gateway
// when it is still pending so a lost callback cannot strand a paid order.
func HandleGetZPayOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	email := currentUser(c)

	order, err := deps.Orders.Get(c.Context(), orderID)
	if err != nil {
		logrus.Errorf("order load failed: %v", err)
		return internalError(c, "Failed to load order")
	}
	if order == nil || order.UserEmail != email {
		return notFound(c, "Order not found")
	}

	if order.Status == payment.OrderStatusPending {
		status, err := deps.ZPay.QueryOrderStatus(c.Context(), orderID)
		if err != nil {
			logrus.Warnf("gateway status query failed for order %s: %v", orderID, err)
		} else if status != nil && status.Status == payment.OrderStatusPaid {
			if err := settleZPayOrder(c, orderID, status.TradeNo); err != nil {
				logrus.Errorf("order settlement failed for %s: %v", orderID, err)
			} else if refreshed, err := deps.Orders.Get(c.Context(), orderID); err == nil && refreshed != nil {
				order = refreshed
			}
		}
	}

	resp := fiber.Map{"order": order}
	if order.Status == payment.OrderStatusPaid {
		resp["plan"] = userPlanSnapshot(c, email)
	}
	return c.JSON(resp)
}

// HandleListZPayOrders returns the current user's orders, newest first.
func HandleListZPayOrders(c *fiber.Ctx) error {
	orders, err := deps.Orders.ListForUser(c.Context(), currentUser(c))
	if err != nil {
		logrus.Errorf("order listing failed: %v", err)
		return internalError(c, "Failed to list orders")
	}
	return c.JSON(fiber.Map{"orders": orders, "count": len(orders)})
}

// userPlanSnapshot is attached to paid order responses so the client can
// refresh its view of the entitlement without a second request.
func userPlanSnapshot(c *fiber.Ctx, email string) interface{} {
	config, err := repository.GetGlobalFactory().GetUserRepository().GetConfig(c.Context(), email)
	if err != nil {
		return nil
	}
	return config["plan"]
}
