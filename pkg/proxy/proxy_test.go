package proxy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/reference"
	"github.com/frostrpc/frost/pkg/requesthandler"
)

type fakeHandler struct {
	sendErr error
	reply   *connection.Reply
	sent    int32
}

func (h *fakeHandler) SendRequest(ctx context.Context, req *connection.Request, params []byte, twoway bool) (*connection.Reply, error) {
	atomic.AddInt32(&h.sent, 1)
	if h.sendErr != nil {
		return nil, h.sendErr
	}
	return h.reply, nil
}
func (h *fakeHandler) PrepareBatchRequest() error { return nil }
func (h *fakeHandler) FinishBatchRequest(ctx context.Context, req *connection.Request, params []byte) error {
	return nil
}
func (h *fakeHandler) AbortBatchRequest()                      {}
func (h *fakeHandler) FlushBatchRequests(ctx context.Context) error { return nil }

func newTestRef(t *testing.T) *reference.Reference {
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	ref, err := reference.New(id, reference.Options{
		Endpoints: []reference.Endpoint{{Kind: reference.TCP, Host: "127.0.0.1", Port: 4061}},
	})
	require.NoError(t, err)
	return ref
}

func TestInvokeReturnsReplyOnSuccess(t *testing.T) {
	h := &fakeHandler{reply: &connection.Reply{Status: frosterr.StatusOK, Body: []byte("ok")}}
	p := New(newTestRef(t), func(ref *reference.Reference) *requesthandler.Cache {
		return requesthandler.New(ref, func(ctx context.Context, ref *reference.Reference) (requesthandler.Handler, error) {
			return h, nil
		}, nil)
	})

	rep, err := p.Invoke(context.Background(), "echo", nil, true)
	require.NoError(t, err)
	assert.Equal(t, frosterr.StatusOK, rep.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.sent))
}

func TestInvokeRetriesIdempotentThenSucceeds(t *testing.T) {
	orig := timeAfter
	timeAfter = func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	defer func() { timeAfter = orig }()

	attempts := int32(0)
	p := New(newTestRef(t), func(ref *reference.Reference) *requesthandler.Cache {
		return requesthandler.New(ref, func(ctx context.Context, ref *reference.Reference) (requesthandler.Handler, error) {
			n := atomic.AddInt32(&attempts, 1)
			if n == 1 {
				return &fakeHandler{sendErr: frosterr.New(frosterr.KindConnectionLost, "lost")}, nil
			}
			return &fakeHandler{reply: &connection.Reply{Status: frosterr.StatusOK}}, nil
		}, []time.Duration{0, 0})
	})

	rep, err := p.Invoke(context.Background(), "echo", nil, true)
	require.NoError(t, err)
	assert.Equal(t, frosterr.StatusOK, rep.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestInvokeDoesNotRetryWithEmptyRetryBudget(t *testing.T) {
	h := &fakeHandler{sendErr: frosterr.New(frosterr.KindConnectFailed, "down")}
	p := New(newTestRef(t), func(ref *reference.Reference) *requesthandler.Cache {
		return requesthandler.New(ref, func(ctx context.Context, ref *reference.Reference) (requesthandler.Handler, error) {
			return h, nil
		}, nil)
	})

	_, err := p.Invoke(context.Background(), "echo", nil, false)
	// No retry intervals configured, so even a retryable kind exhausts the
	// budget immediately.
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.sent))
}

func TestCheckReplyMapsStatusesToKinds(t *testing.T) {
	assert.NoError(t, CheckReply(&connection.Reply{Status: frosterr.StatusOK}))
	assert.True(t, frosterr.Of(CheckReply(&connection.Reply{Status: frosterr.StatusObjectNotExist}), frosterr.KindObjectNotExist))
	assert.True(t, frosterr.Of(CheckReply(&connection.Reply{Status: frosterr.StatusUserException}), frosterr.KindUnknownUserException))
}

func TestWithFacetDerivesIndependentProxy(t *testing.T) {
	p := New(newTestRef(t), func(ref *reference.Reference) *requesthandler.Cache {
		return requesthandler.New(ref, func(ctx context.Context, ref *reference.Reference) (requesthandler.Handler, error) {
			return &fakeHandler{}, nil
		}, nil)
	})
	p2 := p.WithFacet("stats")
	assert.Equal(t, "stats", p2.Reference().Facet())
	assert.Equal(t, "", p.Reference().Facet())
}
