package postgres

import (
	"encoding/json"
	"fmt"

	"cryptosignal-engine/internal/paper"
)

func encodeTP(tp []paper.TPTarget) ([]byte, error) {
	b, err := json.Marshal(tp)
	if err != nil {
		return nil, fmt.Errorf("encoding take-profit ladder: %w", err)
	}
	return b, nil
}

func decodeTP(raw []byte) ([]paper.TPTarget, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tp []paper.TPTarget
	if err := json.Unmarshal(raw, &tp); err != nil {
		return nil, fmt.Errorf("decoding take-profit ladder: %w", err)
	}
	return tp, nil
}
