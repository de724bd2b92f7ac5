package live

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/c360/sensorstream/errors"
)

const (
	// DefaultSubscribeKey subscribes to every sensor on the server.
	DefaultSubscribeKey = "CO@*"
	// DefaultSubscribeContext identifies this client to the server.
	DefaultSubscribeContext = "iotics-connector-cev"
)

// Reading is one live value destined for enrichment.
type Reading struct {
	SensorKey string  `json:"sensor_key"`
	Value     float64 `json:"value"`
}

// SubscribeRequest is the first frame sent on every connection.
type SubscribeRequest struct {
	Type  string         `json:"type"`
	Param SubscribeParam `json:"param"`
}

// SubscribeParam selects the keys to subscribe to.
type SubscribeParam struct {
	Keys    []string `json:"keys"`
	Context string   `json:"context"`
}

// NewSubscribeRequest builds a subscribe request.
func NewSubscribeRequest(keys []string, context string) SubscribeRequest {
	return SubscribeRequest{
		Type:  "subscribe",
		Param: SubscribeParam{Keys: keys, Context: context},
	}
}

type pushMessage struct {
	Subscription *struct {
		Key *string `json:"key"`
	} `json:"subscription"`
	Data *struct {
		Value json.RawMessage `json:"value"`
	} `json:"data"`
}

// Decode errors. All of them wrap errors.ErrInvalidData.
var (
	ErrMissingKey   = fmt.Errorf("%w: missing subscription key", errors.ErrInvalidData)
	ErrMissingValue = fmt.Errorf("%w: missing data value", errors.ErrInvalidData)
	ErrNotNumeric   = fmt.Errorf("%w: value is not numeric", errors.ErrInvalidData)
	ErrUndecodable  = fmt.Errorf("%w: message is not valid JSON", errors.ErrInvalidData)
)

// ParseMessage decodes a push message into a Reading. Numbers and numeric
// strings are accepted; NaN and infinities are not.
func ParseMessage(data []byte) (Reading, error) {
	var msg pushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Reading{}, errors.WrapInvalid(fmt.Errorf("%w: %v", ErrUndecodable, err), "live", "ParseMessage", "decode message")
	}

	if msg.Subscription == nil || msg.Subscription.Key == nil || *msg.Subscription.Key == "" {
		return Reading{}, errors.WrapInvalid(ErrMissingKey, "live", "ParseMessage", "read key")
	}
	key := *msg.Subscription.Key

	if msg.Data == nil || len(msg.Data.Value) == 0 || bytes.Equal(msg.Data.Value, []byte("null")) {
		return Reading{}, errors.WrapInvalid(ErrMissingValue, "live", "ParseMessage", "read value")
	}

	value, ok := numeric(msg.Data.Value)
	if !ok {
		return Reading{}, errors.WrapInvalid(ErrNotNumeric, "live", "ParseMessage", "read value")
	}

	return Reading{SensorKey: key, Value: Round3(value)}, nil
}

func numeric(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Round3 rounds v to three decimal places. Rounding works on the exact
// decimal value of v, so 1.2345 (stored just below the half) becomes 1.234.
func Round3(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return v
	}
	return r
}
