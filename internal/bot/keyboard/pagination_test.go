package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/trx-referral-bot/internal/bot/keyboard"
	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

func translator(t *testing.T) i18n.Translator {
	t.Helper()

	manager, err := i18n.Load("en")
	require.NoError(t, err)
	return manager.Translator("en")
}

func TestPaginationButtons(t *testing.T) {
	tr := translator(t)
	prev, next := tr.T("pagination.prev"), tr.T("pagination.next")

	testCases := []struct {
		name      string
		page      int
		total     int
		wantTexts []string
		wantData  []string
	}{
		{name: "first page", page: 0, total: 5, wantTexts: []string{"1/5", next}, wantData: []string{"0", "1"}},
		{name: "middle page", page: 2, total: 5, wantTexts: []string{prev, "3/5", next}, wantData: []string{"1", "2", "3"}},
		{name: "last page", page: 4, total: 5, wantTexts: []string{prev, "5/5"}, wantData: []string{"3", "4"}},
		{name: "single page", page: 0, total: 1, wantTexts: []string{"1/1"}, wantData: []string{"0"}},
		{name: "page past the end is clamped", page: 9, total: 2, wantTexts: []string{prev, "2/2"}, wantData: []string{"0", "1"}},
		{name: "negative page is clamped", page: -3, total: 2, wantTexts: []string{"1/2", next}, wantData: []string{"0", "1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buttons := keyboard.PaginationButtons(tr, keyboard.CallbackPage, tc.page, tc.total)
			require.Len(t, buttons, len(tc.wantTexts))

			for i := range tc.wantTexts {
				assert.Equal(t, tc.wantTexts[i], buttons[i].Text)
				assert.Equal(t, keyboard.CallbackPage, buttons[i].Unique)
				assert.Equal(t, tc.wantData[i], buttons[i].Data)
			}
		})
	}
}

func TestPaginationButtons_NilTranslator(t *testing.T) {
	buttons := keyboard.PaginationButtons(nil, keyboard.CallbackPage, 1, 3)
	require.Len(t, buttons, 3)
	assert.Equal(t, "2/3", buttons[1].Text)
}
