package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

func EncodeCallback(unique, data string) (string, error) {
	payload := unique
	if data != "" {
		payload = unique + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}
	return payload, nil
}

func DecodeCallback(callbackData string) (unique, data string, err error) {
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	unique, data, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return unique, data, nil
}

// DecodeCallbackInt decodes callback data whose payload is an integer, such as "wd_approve:12".
func DecodeCallbackInt(callbackData string) (string, int64, error) {
	unique, data, err := DecodeCallback(callbackData)
	if err != nil {
		return "", 0, err
	}

	n, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return unique, 0, fmt.Errorf("callback %q: invalid payload: %w", unique, err)
	}
	return unique, n, nil
}
