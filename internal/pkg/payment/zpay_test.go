package payment

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestZPayClient() *ZPayClient {
	return &ZPayClient{
		pid:       "1001",
		key:       "testkey",
		submitURL: "https://z-pay.cn/submit.php",
		apiURL:    "https://z-pay.cn/api.php",
		notifyURL: "https://example.com/notify",
		returnURL: "https://example.com/return",
	}
}

func TestZPaySignSortedASCII(t *testing.T) {
	c := newTestZPayClient()
	params := map[string]string{
		"out_trade_no": "DS_ZPAY_1_AB",
		"money":        "49.00",
		"pid":          "1001",
	}

	// money < out_trade_no < pid in ASCII order.
	sum := md5.Sum([]byte("money=49.00&out_trade_no=DS_ZPAY_1_AB&pid=1001" + "testkey"))
	assert.Equal(t, hex.EncodeToString(sum[:]), c.Sign(params))
}

func TestZPaySignSkipsEmptyAndSignFields(t *testing.T) {
	c := newTestZPayClient()
	base := map[string]string{"money": "49.00", "pid": "1001"}
	withNoise := map[string]string{
		"money":     "49.00",
		"pid":       "1001",
		"empty":     "",
		"sign":      "deadbeef",
		"sign_type": "MD5",
	}
	assert.Equal(t, c.Sign(base), c.Sign(withNoise))
}

func TestZPayVerifySignature(t *testing.T) {
	c := newTestZPayClient()
	params := map[string]string{
		"trade_no":     "2024010112345",
		"out_trade_no": "DS_ZPAY_1_AB",
		"money":        "49.00",
		"trade_status": "TRADE_SUCCESS",
	}
	sign := c.Sign(params)

	assert.True(t, c.VerifySignature(params, sign))
	assert.True(t, c.VerifySignature(params, strings.ToUpper(sign)), "signature comparison is case-insensitive")
	assert.False(t, c.VerifySignature(params, "0000"))

	params["money"] = "0.01"
	assert.False(t, c.VerifySignature(params, sign), "tampered parameters must fail verification")
}

func TestZPayBuildPaymentURL(t *testing.T) {
	c := newTestZPayClient()
	u := c.BuildPaymentURL("DS_ZPAY_1_AB", "Pro", 90, "49.00", "alipay")

	assert.True(t, strings.HasPrefix(u, "https://z-pay.cn/submit.php?"))
	assert.Contains(t, u, "out_trade_no=DS_ZPAY_1_AB")
	assert.Contains(t, u, "sign_type=MD5")
	assert.Contains(t, u, "sign=")
}

func TestGenerateOrderIDUnique(t *testing.T) {
	a := GenerateOrderID()
	b := GenerateOrderID()
	require.True(t, strings.HasPrefix(a, "DS_ZPAY_"))
	assert.NotEqual(t, a, b)
}

func TestEventFromMetadata(t *testing.T) {
	ev, err := EventFromMetadata(map[string]string{
		"user_email":  "user@test.com",
		"plan":        "Premium",
		"duration":    "30",
		"isRecurring": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, "user@test.com", ev.UserEmail)
	assert.Equal(t, "Premium", ev.PlanName)
	assert.Equal(t, 30, ev.DurationDays)
	assert.True(t, ev.IsRecurring)

	_, err = EventFromMetadata(map[string]string{"plan": "Premium"})
	assert.Error(t, err)

	_, err = EventFromMetadata(map[string]string{
		"user_email": "user@test.com", "plan": "Premium", "duration": "0",
	})
	assert.Error(t, err)
}
