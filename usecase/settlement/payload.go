package settlement

import (
	"github.com/tidwall/gjson"

	"github.com/fastygo/settlement/domain"
)

const (
	pathObject          = "data.object"
	pathObjectID        = "data.object.id"
	pathContributionRef = "data.object.metadata.contribution_id"
)

// intentPaths are tried in order. Charge objects carry their intent in payment_intent
// (possibly expanded), intent objects are identified by their own id.
var intentPaths = []string{
	"data.object.payment_intent",
	"data.object.payment_intent.id",
	pathObjectID,
	"data.reference",
}

func intentRef(payload []byte) string {
	isCharge := gjson.GetBytes(payload, pathObject+".object").String() == "charge"
	for _, path := range intentPaths {
		// a charge id is never an intent id
		if isCharge && path == pathObjectID {
			continue
		}
		if v := gjson.GetBytes(payload, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func contributionRef(payload []byte) string {
	return gjson.GetBytes(payload, pathContributionRef).String()
}

// paymentData collects the provider references stored on a settled contribution.
func paymentData(provider, intentID string, payload []byte) domain.PaymentReference {
	obj := gjson.GetBytes(payload, pathObject)
	ref := domain.PaymentReference{
		Provider: provider,
		IntentID: intentID,
	}

	switch {
	case obj.Get("object").String() == "charge":
		ref.ChargeID = obj.Get("id").String()
	case obj.Get("latest_charge").Type == gjson.String:
		ref.ChargeID = obj.Get("latest_charge").String()
	}

	if meta := obj.Get("metadata"); meta.IsObject() {
		ref.Metadata = make(map[string]string)
		meta.ForEach(func(key, value gjson.Result) bool {
			ref.Metadata[key.String()] = value.String()
			return true
		})
	}
	return ref
}

// partialRefund reports a refund notification that does not cover the whole charge.
// Absent fields are read as a full refund.
func partialRefund(payload []byte) bool {
	refunded := gjson.GetBytes(payload, "data.object.refunded")
	return refunded.Exists() && !refunded.Bool()
}
