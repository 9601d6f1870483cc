package handlers

import (
	"bytes"
	"log/slog"

	qrcode "github.com/skip2/go-qrcode"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/trx-referral-bot/internal/i18n"
)

const qrSize = 256

// NewInviteHandler sends the referral link followed by a QR code of it.
func NewInviteHandler(svc Ledger, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("invite handler invoked without sender")
			return nil
		}

		t := Translator(c)
		link, err := svc.InviteLink(Context(c), userID)
		if err != nil {
			return replyLedgerError(c, err)
		}

		text := t.Tf("invite.text", i18n.Params{
			"reward": svc.Policy().InviteReward().String(),
			"link":   link,
		})
		if err := c.Send(text, telebot.NoPreview); err != nil {
			return err
		}

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			log.Warn("qr code generation failed", slog.Int64("user_id", userID), slog.Any("error", err))
			return nil
		}

		return c.Send(&telebot.Photo{
			File:    telebot.FromReader(bytes.NewReader(png)),
			Caption: t.T("invite.qr_caption"),
		})
	}
}
