package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/servant"
)

type fakeAdapter struct {
	s      servant.Servant
	finish func()
	err    error
}

func (a *fakeAdapter) Locate(ctx context.Context, current servant.Current) (servant.Servant, func(), error) {
	if a.err != nil {
		return nil, nil, a.err
	}
	finish := a.finish
	if finish == nil {
		finish = func() {}
	}
	return a.s, finish, nil
}

type funcServant struct {
	fn func(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error)
}

func (f funcServant) Dispatch(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
	return f.fn(ctx, current, params)
}

func newReq(requestID int32) *connection.Request {
	id, _ := identity.New("", "obj")
	return &connection.Request{RequestID: requestID, Identity: id, Operation: "echo"}
}

func TestDispatchReturnsOKReplyOnSuccess(t *testing.T) {
	s := funcServant{fn: func(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
		return servant.Result{Body: []byte("ok")}, nil
	}}
	e := NewEngine(&fakeAdapter{s: s})

	rep := e.Dispatch(context.Background(), nil, newReq(1))
	require.NotNil(t, rep)
	assert.Equal(t, frosterr.StatusOK, rep.Status)
	assert.Equal(t, []byte("ok"), rep.Body)
}

func TestDispatchReturnsNilReplyForOneway(t *testing.T) {
	called := false
	s := funcServant{fn: func(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
		called = true
		return servant.Result{}, nil
	}}
	e := NewEngine(&fakeAdapter{s: s})

	rep := e.Dispatch(context.Background(), nil, newReq(0))
	assert.Nil(t, rep)
	assert.True(t, called)
}

func TestDispatchMapsLocateErrorToStatus(t *testing.T) {
	e := NewEngine(&fakeAdapter{err: frosterr.New(frosterr.KindObjectNotExist, "no such object")})

	rep := e.Dispatch(context.Background(), nil, newReq(1))
	require.NotNil(t, rep)
	assert.Equal(t, frosterr.StatusObjectNotExist, rep.Status)
}

func TestDispatchReturnsUserExceptionStatus(t *testing.T) {
	s := funcServant{fn: func(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
		return servant.Result{Exception: errors.New("widget jammed")}, nil
	}}
	e := NewEngine(&fakeAdapter{s: s})

	rep := e.Dispatch(context.Background(), nil, newReq(1))
	require.NotNil(t, rep)
	assert.Equal(t, frosterr.StatusUserException, rep.Status)
	assert.Equal(t, []byte("widget jammed"), rep.Body)
}

func TestDispatchRecoversServantPanic(t *testing.T) {
	s := funcServant{fn: func(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
		panic("boom")
	}}
	e := NewEngine(&fakeAdapter{s: s})

	rep := e.Dispatch(context.Background(), nil, newReq(1))
	require.NotNil(t, rep)
	assert.Equal(t, frosterr.StatusUnknownLocalException, rep.Status)
}

func TestDispatchCallsFinishExactlyOnce(t *testing.T) {
	finishCount := 0
	s := funcServant{fn: func(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
		return servant.Result{}, nil
	}}
	e := NewEngine(&fakeAdapter{s: s, finish: func() { finishCount++ }})

	e.Dispatch(context.Background(), nil, newReq(1))
	assert.Equal(t, 1, finishCount)
}
