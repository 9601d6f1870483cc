package keyboard

import (
	"strconv"

	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

// PaginationButtons returns up to three inline buttons (prev, current page, next) for a
// zero-based page. Labels are one-based.
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 0 {
		page = 0
	}
	if page > totalPages-1 {
		page = totalPages - 1
	}

	buttons := make([]InlineButton, 0, 3)

	if page > 0 {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.prev", "◀️"),
			Unique: action,
			Data:   strconv.Itoa(page - 1),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   paginationLabel(t, page+1, totalPages),
		Unique: action,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages-1 {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.next", "▶️"),
			Unique: action,
			Data:   strconv.Itoa(page + 1),
		})
	}

	return buttons
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := t.T(key)
	if text == "" || text == key {
		return fallback
	}
	return text
}

func paginationLabel(t i18n.Translator, page, total int) string {
	if t == nil || t.T("pagination.page") == "pagination.page" {
		return strconv.Itoa(page) + "/" + strconv.Itoa(total)
	}
	return t.Tf("pagination.page", i18n.Params{"page": page, "pages": total})
}
