package counter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/metrics"
	"github.com/anicoll/counter-dashboard/internal/pkg/model"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

var (
	ErrResetUnavailable = errors.New("reset control is disabled")
	ErrNotMounted       = errors.New("widget is not mounted")
	ErrAlreadyMounted   = errors.New("widget already mounted")
)

// Sink receives the widget's output. Calls come from a single goroutine.
type Sink interface {
	Render(View)
	Notify(model.Notice)
}

type resetRequest struct {
	ctx   context.Context
	reply chan error
}

type resetResult struct {
	err   error
	reply chan error
}

// Widget holds the state of one mounted counter card. All state changes run
// on the widget's own loop goroutine.
type Widget struct {
	store  realtime.Store
	sink   Sink
	logger *zap.Logger

	// owned by the loop
	loading   bool
	value     *int64
	resetting bool

	viewMu sync.Mutex
	view   View

	sub      realtime.Subscription
	resets   chan resetRequest
	results  chan resetResult
	stop     chan struct{}
	done     chan struct{}
	mounted  atomic.Bool
	tornDown atomic.Bool
	stopOnce sync.Once
}

func NewWidget(store realtime.Store, sink Sink) *Widget {
	return &Widget{
		store:   store,
		sink:    sink,
		logger:  zap.L(),
		loading: true,
		view:    LoadingView(),
		resets:  make(chan resetRequest),
		results: make(chan resetResult),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Mount renders the loading card and opens the live subscription. A
// subscription failure is shown on the card and also returned.
func (w *Widget) Mount(ctx context.Context) error {
	if !w.mounted.CompareAndSwap(false, true) {
		return ErrAlreadyMounted
	}
	metrics.MountedWidgets.Inc()
	w.render()

	sub, err := w.store.Subscribe(ctx, CountPath)
	var updates <-chan realtime.Update
	if err == nil {
		w.sub = sub
		updates = sub.Updates()
	}
	go w.loop(updates, err)
	return err
}

// Unmount releases the subscription. Nothing is rendered or notified once it
// returns. An in-flight reset write is not cancelled.
func (w *Widget) Unmount() {
	if !w.mounted.Load() {
		return
	}
	w.stopOnce.Do(func() {
		w.tornDown.Store(true)
		close(w.stop)
		<-w.done
		if w.sub != nil {
			if err := w.sub.Close(); err != nil {
				w.logger.Warn("failed to release subscription", zap.Error(err))
			}
		}
		metrics.MountedWidgets.Dec()
	})
}

// Reset disables the control, writes the reset command and re-enables the
// control when the write settles. It blocks until then.
func (w *Widget) Reset(ctx context.Context) error {
	if !w.mounted.Load() {
		return ErrNotMounted
	}
	req := resetRequest{ctx: context.WithoutCancel(ctx), reply: make(chan error, 1)}
	select {
	case w.resets <- req:
	case <-w.stop:
		return ErrNotMounted
	}
	return <-req.reply
}

// View returns the last rendered view.
func (w *Widget) View() View {
	w.viewMu.Lock()
	defer w.viewMu.Unlock()
	return w.view
}

func (w *Widget) loop(updates <-chan realtime.Update, subscribeErr error) {
	defer close(w.done)
	if subscribeErr != nil {
		w.subscriptionFailed(subscribeErr)
	}
	for {
		select {
		case <-w.stop:
			return
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			w.apply(u)
		case req := <-w.resets:
			w.startReset(req)
		case res := <-w.results:
			w.finishReset(res)
		}
	}
}

func (w *Widget) apply(u realtime.Update) {
	if u.Err != nil {
		w.subscriptionFailed(u.Err)
		return
	}
	metrics.CountUpdates.Inc()
	value, ok := decodeCount(u.Value)
	if !ok {
		w.logger.Warn("ignoring non-integer count", zap.ByteString("value", u.Value))
	}
	w.value = value
	w.loading = false
	w.render()

	if value != nil && Exceeded(*value) {
		metrics.ThresholdWarnings.Inc()
		w.notify(limitNotice)
	}
}

func (w *Widget) subscriptionFailed(err error) {
	w.logger.Error("product count read failed", zap.Error(err))
	metrics.SubscriptionErrors.Inc()
	w.value = nil
	w.loading = false
	w.render()
	w.notify(connectionErrorNotice)
}

func (w *Widget) startReset(req resetRequest) {
	if w.loading || w.resetting {
		req.reply <- ErrResetUnavailable
		return
	}
	w.resetting = true
	w.render()

	go func() {
		res := resetResult{err: SendReset(req.ctx, w.store), reply: req.reply}
		select {
		case w.results <- res:
		case <-w.stop:
			res.reply <- res.err
		}
	}()
}

func (w *Widget) finishReset(res resetResult) {
	metrics.ResetCommands.WithLabelValues(metrics.ResetResult(res.err)).Inc()
	if res.err != nil {
		w.logger.Error("failed to send reset command", zap.Error(res.err))
		w.notify(resetFailedNotice)
	} else {
		w.logger.Info("reset command sent")
		w.notify(resetSentNotice)
	}
	w.resetting = false
	w.render()
	res.reply <- res.err
}

func (w *Widget) render() {
	v := newView(w.loading, w.value, w.resetting)
	w.viewMu.Lock()
	w.view = v
	w.viewMu.Unlock()
	if w.tornDown.Load() {
		return
	}
	w.sink.Render(v)
}

func (w *Widget) notify(n model.Notice) {
	if w.tornDown.Load() {
		return
	}
	w.sink.Notify(n)
}
