// Package proxy implements Proxy, the client-side handle applications hold
// to invoke operations on a remote object. A Proxy pairs an
// immutable reference.Reference with its own requesthandler.Cache — two
// Proxies whose references are Equal still each keep a private handler
// cache, and each cache dials its own connection: connections are not
// shared between proxies, even when their Reference.Key() values match.
package proxy

import (
	"context"
	"time"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/reference"
	"github.com/frostrpc/frost/pkg/requesthandler"
)

// CacheFactory builds a fresh requesthandler.Cache for a reference — bound
// to pkg/communicator.Communicator.NewRequestHandlerCache by callers that
// construct proxies.
type CacheFactory func(ref *reference.Reference) *requesthandler.Cache

// Proxy is an immutable client handle: a Reference plus the request
// handler cache that resolves it to a live connection on demand.
type Proxy struct {
	ref      *reference.Reference
	cache    *requesthandler.Cache
	newCache CacheFactory
}

// New wraps ref in a Proxy, building its request handler cache via
// newCache.
func New(ref *reference.Reference, newCache CacheFactory) *Proxy {
	return &Proxy{ref: ref, cache: newCache(ref), newCache: newCache}
}

// Reference returns the proxy's underlying reference.
func (p *Proxy) Reference() *reference.Reference { return p.ref }

// Invoke sends operation with the pre-encoded params encapsulation over
// p's reference's mode, retrying per the request handler cache's retry
// table until the budget is exhausted or a non-retryable failure occurs.
func (p *Proxy) Invoke(ctx context.Context, operation string, params []byte, idempotent bool) (*connection.Reply, error) {
	twoway := p.ref.Mode() == reference.Twoway
	attempt := 0
	for {
		handler, err := p.cache.GetRequestHandler(ctx)
		if err != nil {
			return nil, err
		}

		req := &connection.Request{
			Identity:  p.ref.Identity(),
			Facet:     p.ref.Facet(),
			Operation: operation,
			Mode:      p.ref.Mode(),
			Context:   p.ref.Context(),
		}

		switch p.ref.Mode() {
		case reference.BatchOneway, reference.BatchDatagram:
			if err := handler.FinishBatchRequest(ctx, req, params); err != nil {
				return nil, err
			}
			return nil, nil
		}

		alreadySent := false
		rep, sendErr := handler.SendRequest(ctx, req, params, twoway)
		if sendErr == nil {
			return rep, nil
		}

		attempt++
		outcome := p.cache.HandleException(sendErr, p.ref.Mode(), idempotent, alreadySent, attempt)
		if !outcome.Retry {
			p.cache.ClearCachedRequestHandler(handler)
			return nil, sendErr
		}
		p.cache.ClearCachedRequestHandler(handler)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeAfter(outcome.After):
		}
	}
}

// Flush sends any batch requests queued on the proxy's current connection.
func (p *Proxy) Flush(ctx context.Context) error {
	handler, err := p.cache.GetRequestHandler(ctx)
	if err != nil {
		return err
	}
	return handler.FlushBatchRequests(ctx)
}

// BeginBatch marks the start of a batch-oneway invocation sequence on the
// proxy's current connection.
func (p *Proxy) BeginBatch(ctx context.Context) error {
	handler, err := p.cache.GetRequestHandler(ctx)
	if err != nil {
		return err
	}
	return handler.PrepareBatchRequest()
}

// derive returns a new Proxy over a derived reference, with a fresh,
// independent request handler cache: each derived proxy owns its own
// handler cache even when the underlying reference is otherwise identical.
func (p *Proxy) derive(ref *reference.Reference) *Proxy {
	return New(ref, p.newCache)
}

func (p *Proxy) WithContext(ctx map[string]string) *Proxy   { return p.derive(p.ref.WithContext(ctx)) }
func (p *Proxy) WithFacet(facet string) *Proxy               { return p.derive(p.ref.WithFacet(facet)) }
func (p *Proxy) WithMode(mode reference.InvocationMode) *Proxy {
	return p.derive(p.ref.WithMode(mode))
}
func (p *Proxy) WithSecure(secure bool) *Proxy     { return p.derive(p.ref.WithSecure(secure)) }
func (p *Proxy) WithCompress(compress bool) *Proxy { return p.derive(p.ref.WithCompress(compress)) }

// checkReply converts a completed Reply's status into either a nil error
// (StatusOK) or a *frosterr.Error the caller can branch on.
func checkReply(rep *connection.Reply) error {
	switch rep.Status {
	case frosterr.StatusOK:
		return nil
	case frosterr.StatusUserException:
		return frosterr.New(frosterr.KindUnknownUserException, "proxy: operation raised a user exception")
	case frosterr.StatusObjectNotExist:
		return frosterr.New(frosterr.KindObjectNotExist, "proxy: object does not exist")
	case frosterr.StatusFacetNotExist:
		return frosterr.New(frosterr.KindFacetNotExist, "proxy: facet does not exist")
	case frosterr.StatusOperationNotExist:
		return frosterr.New(frosterr.KindOperationNotExist, "proxy: operation does not exist")
	case frosterr.StatusUnknownLocalException:
		return frosterr.New(frosterr.KindUnknownLocalException, "proxy: remote local exception")
	default:
		return frosterr.New(frosterr.KindUnknownException, "proxy: unknown reply status %s", rep.Status)
	}
}

// CheckReply is the exported form of checkReply, used by generated proxy
// code (out of scope here) immediately after a successful Invoke.
func CheckReply(rep *connection.Reply) error { return checkReply(rep) }

// decodeEncapsulation is a small helper generated code would use to open a
// reply body as an encapsulation view before decoding return values.
func decodeEncapsulation(body []byte) (*wire.EncapsulationView, error) {
	buf := wire.NewBufferFromBytes(body)
	return buf.ReadEncapsulation()
}

// timeAfter is a package-level indirection over time.After so tests can
// substitute a fast clock instead of waiting out real retry intervals.
var timeAfter = time.After
