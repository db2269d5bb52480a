package payment

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/and161185/lojinha/internal/utils"
)

// Event is the canonical form of a webhook notification. The processor sends
// the same payment lifecycle through several transport shapes; everything is
// normalized here once instead of re-branching in the handler.
type Event struct {
	Kind      string
	PaymentID string
}

var (
	paymentResourceRe       = regexp.MustCompile(`payments/(\d+)`)
	merchantOrderResourceRe = regexp.MustCompile(`merchant_orders/(\d+)`)
)

type eventBody struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Action   string `json:"action"`
	ID       any    `json:"id"`
	Resource string `json:"resource"`
	Href     string `json:"href"`
	Data     struct {
		ID       any    `json:"id"`
		Resource string `json:"resource"`
	} `json:"data"`
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ExtractEvent normalizes the observed notification shapes:
//   - JSON: {type|topic: "payment", data:{id}}
//   - JSON: {action: "payment.created", data:{id}}
//   - JSON: {resource: ".../v1/payments/123"} or merchant_orders URLs
//   - query: ?type=payment&data.id=123 or ?topic=payment&id=123
//
// Kind and ID are each resolved by priority: query first, then body fields,
// then the resource path.
func ExtractEvent(query url.Values, rawBody []byte) Event {
	var body eventBody
	if len(rawBody) > 0 {
		// a broken body is treated like an absent one
		_ = json.Unmarshal(rawBody, &body)
	}

	qKind := firstNonEmpty(query.Get("type"), query.Get("topic"))
	qID := firstNonEmpty(query.Get("data.id"), query.Get("id"))

	bKind := firstNonEmpty(body.Type, body.Topic)

	var actionKind string
	if i := strings.Index(body.Action, "."); i > 0 {
		actionKind = body.Action[:i]
	}

	bID := firstNonEmpty(asString(body.Data.ID), asString(body.ID))

	resource := firstNonEmpty(body.Resource, body.Data.Resource, body.Href)
	var resourceKind, resourceID string
	if resource != "" {
		if m := paymentResourceRe.FindStringSubmatch(resource); m != nil {
			resourceKind = "payment"
			resourceID = m[1]
		}
		if merchantOrderResourceRe.MatchString(resource) {
			resourceKind = "merchant_order"
		}
	}

	return Event{
		Kind:      strings.ToLower(firstNonEmpty(qKind, bKind, actionKind, resourceKind)),
		PaymentID: firstNonEmpty(qID, bID, resourceID),
	}
}

// ShouldProcess decides whether the event names a fetchable payment. Anything
// else (merchant_order, missing or non-numeric ID) is acknowledged to the
// processor and dropped.
func (e Event) ShouldProcess() (bool, string) {
	if e.Kind != "" && e.Kind != "payment" {
		return false, "not a payment event"
	}
	if e.PaymentID == "" {
		return false, "no payment id"
	}
	if !utils.IsNumeric(e.PaymentID) {
		return false, "non-numeric payment id"
	}
	return true, ""
}
