package emitter

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

// Sender posts a chat message. Implemented by the Telegram client.
type Sender interface {
	Send(ctx context.Context, chatID, text string, linkPreview bool) error
}

// Notifier turns events into HTML chat messages.
type Notifier struct {
	sender      Sender
	chatID      string
	linkPreview bool
	txURL       string // fmt template with one %s for the hash
}

var _ Emitter = (*Notifier)(nil)

// NewNotifier creates a chat notifier. txURL is a printf template for
// transaction links, e.g. "https://bscscan.com/tx/%s".
func NewNotifier(sender Sender, chatID, txURL string, linkPreview bool) *Notifier {
	return &Notifier{
		sender:      sender,
		chatID:      chatID,
		linkPreview: linkPreview,
		txURL:       txURL,
	}
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Emit(ctx context.Context, event domain.TransferEvent) error {
	return n.sender.Send(ctx, n.chatID, n.Format(event), n.linkPreview)
}

func (n *Notifier) Close() error { return nil }

// Format renders one event as a Telegram HTML message.
func (n *Notifier) Format(event domain.TransferEvent) string {
	var b strings.Builder

	icon, title, sign, party := "📥", "Incoming", "+", "From"
	if event.Direction == domain.DirectionOut {
		icon, title, sign, party = "📤", "Outgoing", "-", "To"
	}

	name := event.WalletName
	if name == "" {
		name = domain.ShortAddress(event.Wallet)
	}
	fmt.Fprintf(&b, "%s <b>%s %s</b> · %s\n", icon, title, html.EscapeString(event.Symbol), html.EscapeString(name))
	fmt.Fprintf(&b, "<code>%s</code>\n\n", domain.ShortAddress(event.Wallet))

	fmt.Fprintf(&b, "Amount: <b>%s%s %s</b>", sign, domain.FormatAmount(event.Amount), html.EscapeString(event.Symbol))
	if event.USDValue.Valid {
		fmt.Fprintf(&b, " (~$%s)", domain.FormatAmount(event.USDValue.Decimal))
	}
	b.WriteByte('\n')

	if event.Counterparty != "" {
		fmt.Fprintf(&b, "%s: <code>%s</code>\n", party, domain.ShortAddress(event.Counterparty))
	}
	if event.Balance.Valid {
		fmt.Fprintf(&b, "Balance: %s %s\n", domain.FormatAmount(event.Balance.Decimal), html.EscapeString(event.Symbol))
	}

	switch {
	case event.Anonymous():
		b.WriteString("\n<i>Balance change, transaction not identified</i>")
	case n.txURL != "":
		fmt.Fprintf(&b, "\n<a href=\"%s\">View transaction</a>", html.EscapeString(fmt.Sprintf(n.txURL, event.TxHash)))
	default:
		fmt.Fprintf(&b, "\nTx: <code>%s</code>", event.TxHash)
	}

	return b.String()
}
