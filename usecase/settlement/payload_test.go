package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentRef(t *testing.T) {
	cases := map[string]struct {
		payload string
		want    string
	}{
		"charge object":    {`{"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_1"}}}`, "pi_1"},
		"intent object":    {`{"data":{"object":{"id":"pi_2","object":"payment_intent"}}}`, "pi_2"},
		"reference":        {`{"data":{"reference":"ref_3"}}`, "ref_3"},
		"expanded field":   {`{"data":{"object":{"id":"ch_1","payment_intent":{"id":"pi_x"}}}}`, "pi_x"},
		"missing":          {`{"data":{}}`, ""},
		"charge no intent": {`{"data":{"object":{"id":"ch_9","object":"charge","payment_intent":null}}}`, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, intentRef([]byte(tc.payload)))
		})
	}
}

func TestPaymentData(t *testing.T) {
	charge := []byte(`{"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_1","metadata":{"contribution_id":"c1","campaign":"camp1"}}}}`)
	ref := paymentData("stripe", "pi_1", charge)
	assert.Equal(t, "stripe", ref.Provider)
	assert.Equal(t, "pi_1", ref.IntentID)
	assert.Equal(t, "ch_1", ref.ChargeID)
	assert.Equal(t, map[string]string{"contribution_id": "c1", "campaign": "camp1"}, ref.Metadata)
	assert.Equal(t, "c1", contributionRef(charge))

	intentPayload := []byte(`{"data":{"object":{"id":"pi_1","latest_charge":"ch_9"}}}`)
	ref = paymentData("stripe", "pi_1", intentPayload)
	assert.Equal(t, "ch_9", ref.ChargeID)
	assert.Nil(t, ref.Metadata)
}

func TestPartialRefund(t *testing.T) {
	assert.True(t, partialRefund([]byte(`{"data":{"object":{"refunded":false}}}`)))
	assert.False(t, partialRefund([]byte(`{"data":{"object":{"refunded":true}}}`)))
	assert.False(t, partialRefund([]byte(`{"data":{"object":{}}}`)))
}
