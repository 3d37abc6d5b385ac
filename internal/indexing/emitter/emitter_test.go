package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

type recordingSender struct {
	chatID  string
	texts   []string
	preview bool
	err     error
}

func (r *recordingSender) Send(ctx context.Context, chatID, text string, linkPreview bool) error {
	r.chatID = chatID
	r.preview = linkPreview
	r.texts = append(r.texts, text)
	return r.err
}

type fakeEmitter struct {
	name   string
	events []domain.TransferEvent
	err    error
	closed bool
}

func (f *fakeEmitter) Name() string { return f.name }

func (f *fakeEmitter) Emit(ctx context.Context, e domain.TransferEvent) error {
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeEmitter) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() domain.TransferEvent {
	return domain.TransferEvent{
		ID:           "evt-1",
		TxHash:       "0xabc",
		BlockNumber:  101,
		Symbol:       "BNB",
		Amount:       decimal.RequireFromString("1.5"),
		Direction:    domain.DirectionIn,
		Counterparty: "0x1111111111111111111111111111111111111111",
		Wallet:       "0xaaaa00000000000000000000000000000000aaaa",
		WalletName:   "Main",
		USDValue:     decimal.NewNullDecimal(decimal.NewFromInt(900)),
		Source:       domain.SourceScanner,
		DetectedAt:   time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestNotifier_FormatIncoming(t *testing.T) {
	n := NewNotifier(&recordingSender{}, "42", "https://bscscan.com/tx/%s", false)

	msg := n.Format(sampleEvent())

	assert.Contains(t, msg, "📥 <b>Incoming BNB</b> · Main")
	assert.Contains(t, msg, "Amount: <b>+1.50 BNB</b> (~$900.00)")
	assert.Contains(t, msg, "From: <code>0x1111…1111</code>")
	assert.Contains(t, msg, `<a href="https://bscscan.com/tx/0xabc">View transaction</a>`)
	assert.NotContains(t, msg, "Balance:")
}

func TestNotifier_FormatOutgoingAnonymous(t *testing.T) {
	n := NewNotifier(&recordingSender{}, "42", "https://bscscan.com/tx/%s", false)

	e := sampleEvent()
	e.TxHash = ""
	e.Counterparty = ""
	e.Direction = domain.DirectionOut
	e.Symbol = "USDT"
	e.Amount = decimal.RequireFromString("1234.5")
	e.USDValue = decimal.NullDecimal{}
	e.Balance = decimal.NewNullDecimal(decimal.RequireFromString("0.25"))
	e.WalletName = "<script>"

	msg := n.Format(e)

	assert.Contains(t, msg, "📤 <b>Outgoing USDT</b> · &lt;script&gt;")
	assert.Contains(t, msg, "Amount: <b>-1,234.50 USDT</b>\n")
	assert.Contains(t, msg, "Balance: 0.2500 USDT")
	assert.Contains(t, msg, "transaction not identified")
	assert.NotContains(t, msg, "bscscan")
	assert.NotContains(t, msg, "To:")
}

func TestNotifier_EmitUsesChatSettings(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, "42", "", true)

	require.NoError(t, n.Emit(context.Background(), sampleEvent()))
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "42", sender.chatID)
	assert.True(t, sender.preview)
	assert.Contains(t, sender.texts[0], "Tx: <code>0xabc</code>")
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	failing := &fakeEmitter{name: "telegram", err: errors.New("429")}
	ok := &fakeEmitter{name: "kafka"}
	m := NewMulti(failing, nil, ok)

	err := m.Emit(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Len(t, ok.events, 1, "second emitter still receives the event")
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

type recordingPublisher struct {
	stream  string
	maxLen  int64
	payload []byte
}

func (r *recordingPublisher) Publish(ctx context.Context, stream string, maxLen int64, payload []byte) error {
	r.stream, r.maxLen, r.payload = stream, maxLen, payload
	return nil
}

func TestStreamSink_PublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewStreamSink(pub, "walletwatch:events", 1000)

	require.NoError(t, sink.Emit(context.Background(), sampleEvent()))
	assert.Equal(t, "walletwatch:events", pub.stream)
	assert.Equal(t, int64(1000), pub.maxLen)

	var decoded domain.TransferEvent
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "0xabc", decoded.TxHash)
	assert.True(t, decoded.Amount.Equal(decimal.RequireFromString("1.5")))
}

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (r *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return nil
}

func TestKafkaSink_KeysByWallet(t *testing.T) {
	w := &recordingWriter{}
	sink := NewKafkaSinkWithWriter(w, "transfers")

	require.NoError(t, sink.Emit(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "0xaaaa00000000000000000000000000000000aaaa", string(w.msgs[0].Key))
	assert.Equal(t, "scanner", string(w.msgs[0].Headers[0].Value))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}
