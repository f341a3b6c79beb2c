package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"genetix/pkg/exchange"
)

// decodeObject requires a JSON object at the top level before unmarshalling.
func decodeObject(endpoint string, raw json.RawMessage, out any) error {
	return decodeShape(endpoint, raw, '{', out)
}

// decodeArray requires a JSON array at the top level before unmarshalling.
func decodeArray(endpoint string, raw json.RawMessage, out any) error {
	return decodeShape(endpoint, raw, '[', out)
}

func decodeShape(endpoint string, raw json.RawMessage, open byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != open {
		return fmt.Errorf("binance: %s: %w", endpoint, exchange.ErrUnexpectedShape)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("binance: decode %s: %w", endpoint, err)
	}
	return nil
}

func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
