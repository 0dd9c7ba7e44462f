package kafkagw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	kafkax "github.com/ariefcatur/go-chat-orders/internal/kafka"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	key, value []byte
	headers    []kafkago.Header
}

type recorder struct {
	mu  sync.Mutex
	out []published
}

func (r *recorder) Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, published{key, value, headers})
	return nil
}

func TestGateway_SendTextEnvelope(t *testing.T) {
	rec := &recorder{}
	g := &Gateway{Out: rec, Producer: "shop-bot"}
	kb := gateway.InlineRow(gateway.Button{Text: "Order", Token: "order_G1"})
	require.NoError(t, g.SendText(context.Background(), 42, "<b>hi</b>", kb))

	require.Len(t, rec.out, 1)
	p := rec.out[0]
	assert.Equal(t, []byte("42"), p.key)

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(p.value, &env))
	assert.Equal(t, EventSendText, env.EventType)
	assert.Equal(t, "shop-bot", env.Producer)
	assert.NotEmpty(t, env.EventID)

	cmd, err := kafkax.UnwrapPayload[SendTextCommand](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cmd.ChatID)
	assert.Equal(t, "HTML", cmd.ParseMode)
	require.NotNil(t, cmd.Keyboard)
	assert.Equal(t, "order_G1", cmd.Keyboard.Inline[0][0].Token)
}

func TestGateway_PlainTextIsHTMLToo(t *testing.T) {
	rec := &recorder{}
	g := &Gateway{Out: rec}
	require.NoError(t, g.SendText(context.Background(), 7, "Reason: a &lt; b", nil))
	require.NoError(t, g.SendPhoto(context.Background(), 7, "photo-1", "<b>Mug</b>", nil))

	require.Len(t, rec.out, 2)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(rec.out[0].value, &env))
	text, err := kafkax.UnwrapPayload[SendTextCommand](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "HTML", text.ParseMode)
	assert.Nil(t, text.Keyboard)

	require.NoError(t, json.Unmarshal(rec.out[1].value, &env))
	photo, err := kafkax.UnwrapPayload[SendPhotoCommand](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "HTML", photo.ParseMode)
}

func TestGateway_EditWithoutKeyboardRemovesControls(t *testing.T) {
	rec := &recorder{}
	g := &Gateway{Out: rec}
	require.NoError(t, g.EditMessage(context.Background(), 1, 10, "", nil))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(rec.out[0].value, &env))
	assert.Equal(t, EventEditMessage, env.EventType)
	assert.NotContains(t, string(env.Payload), "keyboard")
	assert.NotContains(t, string(env.Payload), "text")
}

func TestDecodeUpdate_RoundTrip(t *testing.T) {
	u := gateway.Update{
		UpdateID:     "u-1",
		From:         gateway.Sender{ID: 7, FirstName: "Ann"},
		ChatID:       7,
		MessageID:    99,
		CallbackID:   "cb",
		CallbackData: "accept_ORDER_3",
	}
	ev, err := DecodeUpdate(UpdateMessage(u, "transport"))
	require.NoError(t, err)
	assert.Equal(t, gateway.KindCallback, ev.Kind)
	assert.Equal(t, gateway.Control{Action: gateway.ActionAccept, ID: "ORDER_3"}, ev.Control)
	assert.Equal(t, int64(99), ev.MessageID)
}

func TestUpdateHandler_SkipsMalformed(t *testing.T) {
	called := false
	h := UpdateHandler(func(ctx context.Context, ev gateway.Event) error {
		called = true
		return nil
	}, zap.NewNop().Sugar())

	assert.NoError(t, h(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.False(t, called)

	wrong := kafkax.MustMarshal(orders.Envelope{EventType: "Other", Payload: json.RawMessage(`{}`)})
	assert.NoError(t, h(context.Background(), kafkago.Message{Value: wrong}))
	assert.False(t, called)

	ok := UpdateMessage(gateway.Update{UpdateID: "1", From: gateway.Sender{ID: 3}, Text: "hi"}, "t")
	assert.NoError(t, h(context.Background(), ok))
	assert.True(t, called)
}

func TestMembershipClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels/@shop/members/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"member"}`))
		case "/channels/@shop/members/2":
			assert.Equal(t, "br", r.Header.Get("Accept-Encoding"))
			w.Header().Set("Content-Encoding", "br")
			bw := brotli.NewWriter(w)
			_, _ = bw.Write([]byte(`{"status":"kicked"}`))
			_ = bw.Close()
		case "/channels/@shop/members/3":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewMembershipClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	s, err := c.MembershipStatus(ctx, "@shop", 1)
	require.NoError(t, err)
	assert.Equal(t, gateway.MemberMember, s)

	s, err = c.MembershipStatus(ctx, "@shop", 2)
	require.NoError(t, err)
	assert.Equal(t, gateway.MemberKicked, s)

	s, err = c.MembershipStatus(ctx, "@shop", 3)
	require.NoError(t, err)
	assert.Equal(t, gateway.MemberLeft, s)

	_, err = c.MembershipStatus(ctx, "@shop", 4)
	assert.Error(t, err)
}
