// Package ingest connects the market-data and order-report websocket to the dispatcher.
package ingest

import (
	"context"
	"sync/atomic"

	"bookstrat/internal/codec"
	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const (
	methodQuerySnapshot = "query_bidask_snapshot"
	methodSubscribe     = "subscribe_data"
)

// Dispatcher receives decoded events.
type Dispatcher interface {
	Dispatch(evt schema.Event) error
}

type Request struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type Response struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func responseParser(m ws.Message) (Response, bool) {
	var resp Response
	err := m.Unmarshal(&resp)
	return resp, err == nil && resp.ID != 0
}

// Feed streams enveloped events from the websocket into the dispatcher.
type Feed struct {
	wss        *ws.WebSocket
	registry   *schema.Registry
	dispatcher Dispatcher
	reqID      atomic.Int64
	received   atomic.Uint64
	rejected   atomic.Uint64
}

func NewFeed(ctx context.Context, url string, registry *schema.Registry, dispatcher Dispatcher) (*Feed, error) {
	if url == "" {
		return nil, exception.ErrFeedEmptyURL
	}
	if dispatcher == nil {
		return nil, exception.ErrFeedNilConsumer
	}
	if registry == nil {
		registry = schema.NewRegistry("")
	}
	return &Feed{
		wss:        ws.New(ctx, url),
		registry:   registry,
		dispatcher: dispatcher,
	}, nil
}

func (f *Feed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

func (f *Feed) Close() {
	f.wss.Close()
}

// Bootstrap requests a book snapshot for every instrument in the universe, then
// subscribes to the universe. Snapshots must be requested before subscribing.
func (f *Feed) Bootstrap(ctx context.Context) error {
	symbols := make([]string, 0, f.registry.Len())
	for _, inst := range f.registry.Instruments() {
		if err := f.request(ctx, methodQuerySnapshot, []string{string(inst)}); err != nil {
			return errors.Wrapf(err, "query snapshot %s", inst)
		}
		symbols = append(symbols, string(inst))
	}
	if len(symbols) == 0 {
		return nil
	}
	if err := f.request(ctx, methodSubscribe, symbols); err != nil {
		return errors.Wrap(err, "subscribe universe")
	}
	logs.Infof("feed subscribed, source: %s, symbols: %v", f.registry.Source(), symbols)

	return nil
}

func (f *Feed) request(ctx context.Context, method string, params []string) error {
	id := f.reqID.Add(1)
	appendIntoRegister := true
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := Request{Method: method, Params: params, ID: id}
			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write request payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := responseParser(m)
			if !ok || resp.ID != id {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("%s and wait, err: %+v", method, resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// Observe decodes every message and dispatches it until ctx ends or the process shuts down.
func (f *Feed) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				env, ok := ws.ReadMessage[codec.Envelope](m)
				if !ok || env.Type == "" {
					continue
				}

				if err := f.handle(env); err != nil {
					logs.Warnf("feed message dropped, type: %s, err: %+v", env.Type, err)
				}
			}
		}
	}()

	return cancel
}

// Stats returns how many messages were dispatched and how many were dropped.
func (f *Feed) Stats() (received, rejected uint64) {
	return f.received.Load(), f.rejected.Load()
}

func (f *Feed) handle(env codec.Envelope) error {
	evt, err := codec.DecodeEnvelope(env)
	if err != nil {
		f.rejected.Add(1)
		return err
	}

	if sym := evt.Symbol(); sym != "" && f.registry.Len() != 0 && !f.registry.Contains(sym) {
		f.rejected.Add(1)
		return errors.Errorf("symbol %s not in universe", sym)
	}

	if err := f.dispatcher.Dispatch(evt); err != nil {
		f.rejected.Add(1)
		return errors.Wrap(err, "dispatch")
	}
	f.received.Add(1)

	return nil
}
