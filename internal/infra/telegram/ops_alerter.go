// internal/infra/telegram/ops_alerter.go
package telegram

import (
	"fmt"
	"strings"

	"hall_maintenance_service/internal/app"

	"gopkg.in/telebot.v3"
)

// OpsAlerter posts sweep outcomes to an operations chat so failures are
// seen without log trawling. Purely advisory: alert failures are never
// allowed to affect the sweep itself.
type OpsAlerter struct {
	bot    *telebot.Bot
	chatID int64
}

func NewOpsAlerter(bot *telebot.Bot, chatID int64) *OpsAlerter {
	return &OpsAlerter{bot: bot, chatID: chatID}
}

// SweepCompleted sends a one-line summary plus per-pair failure details.
func (a *OpsAlerter) SweepCompleted(report *app.SweepReport) error {
	var b strings.Builder
	b.WriteString("Maintenance ")
	b.WriteString(report.Summary())
	for _, f := range report.Failures {
		fmt.Fprintf(&b, "\n- hall %d / task %d: %v", f.HallID, f.TaskID, f.Err)
	}

	recipient := &telebot.Chat{ID: a.chatID}
	_, err := a.bot.Send(recipient, b.String())
	return err
}
