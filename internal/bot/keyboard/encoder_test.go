package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
)

func TestEncodeCallback(t *testing.T) {
	tests := []struct {
		name      string
		unique    string
		data      string
		want      string
		wantError bool
	}{
		{name: "with data", unique: "wd_page", data: "2", want: "wd_page:2"},
		{name: "without data", unique: "wd_page", want: "wd_page"},
		{name: "exceeds limit", unique: strings.Repeat("x", keyboard.CallbackDataLimitBytes+1), wantError: true},
		{name: "payload pushes over limit", unique: "wd_approve", data: strings.Repeat("9", keyboard.CallbackDataLimitBytes), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyboard.EncodeCallback(tt.unique, tt.data)
			if tt.wantError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantUnique string
		wantData   string
		wantErr    bool
	}{
		{name: "unique and data", input: "wd_reject:3", wantUnique: "wd_reject", wantData: "3"},
		{name: "only unique", input: "wd_page", wantUnique: "wd_page"},
		{name: "multiple separators", input: "action:part1:part2", wantUnique: "action", wantData: "part1:part2"},
		{name: "empty input", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unique, data, err := keyboard.DecodeCallback(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUnique, unique)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestDecodeCallbackInt(t *testing.T) {
	unique, id, err := keyboard.DecodeCallbackInt("wd_approve:42")
	require.NoError(t, err)
	assert.Equal(t, keyboard.CallbackApprove, unique)
	assert.Equal(t, int64(42), id)

	_, _, err = keyboard.DecodeCallbackInt("wd_approve:abc")
	assert.Error(t, err)

	_, _, err = keyboard.DecodeCallbackInt("wd_approve")
	assert.Error(t, err)
}
