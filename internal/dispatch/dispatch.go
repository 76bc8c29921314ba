package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tempvox/tempvox/internal/platform"
)

// Handler is the state machine the pipeline feeds. HandleVoice contains its
// own failures; HandleInteraction reports them in the result.
type Handler interface {
	HandleVoice(ctx context.Context, ev platform.VoiceUpdate)
	HandleInteraction(ctx context.Context, in platform.Interaction) platform.InteractionResult
}

// task is one queued unit of work for a community worker.
type task struct {
	voice       *platform.VoiceUpdate
	interaction *platform.Interaction
	reply       func(platform.InteractionResult)
}

// Dispatcher serializes event handling per community: one worker goroutine
// per community, spawned on demand, draining a buffered queue. Events for
// the same community are handled in submission order; different communities
// never wait on each other's slow calls.
type Dispatcher struct {
	handler   Handler
	log       *zerolog.Logger
	queueSize int

	mu      sync.Mutex
	ctx     context.Context
	queues  map[platform.CommunityID]chan task
	wg      sync.WaitGroup
	started bool
}

// New builds a dispatcher; queueSize bounds each community's backlog.
func New(handler Handler, queueSize int, logger *zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		handler:   handler,
		log:       logger,
		queueSize: queueSize,
		queues:    make(map[platform.CommunityID]chan task),
	}
}

// Start makes the dispatcher live; workers run until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
	d.started = true
}

// Wait blocks until every worker has drained and exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// SubmitVoice queues an occupancy-change event. A full queue drops the event
// with an error log rather than blocking ingestion.
func (d *Dispatcher) SubmitVoice(ev platform.VoiceUpdate) {
	d.submit(ev.Community, task{voice: &ev})
}

// SubmitInteraction queues an interactive action; reply receives the result
// once the community worker gets to it. reply may be nil.
func (d *Dispatcher) SubmitInteraction(in platform.Interaction, reply func(platform.InteractionResult)) {
	d.submit(in.Community, task{interaction: &in, reply: reply})
}

func (d *Dispatcher) submit(community platform.CommunityID, t task) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		d.log.Error().Str("community", string(community)).Msg("dispatcher not started, event dropped")
		return
	}
	q, ok := d.queues[community]
	if !ok {
		q = make(chan task, d.queueSize)
		d.queues[community] = q
		d.wg.Add(1)
		go d.worker(d.ctx, community, q)
	}
	d.mu.Unlock()

	select {
	case q <- t:
	default:
		d.log.Error().Str("community", string(community)).Msg("community queue full, event dropped")
		if t.reply != nil {
			t.reply(platform.InteractionResult{OK: false, Code: "overloaded"})
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, community platform.CommunityID, q chan task) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q:
			d.run(ctx, community, t)
		}
	}
}

// run executes one task with panic containment: a blown-up handler must not
// take the worker, and with it the community's whole pipeline, down.
func (d *Dispatcher) run(ctx context.Context, community platform.CommunityID, t task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Interface("panic", r).
				Str("community", string(community)).
				Msg("event handler panicked")
			if t.reply != nil {
				t.reply(platform.InteractionResult{OK: false, Code: "internal"})
			}
		}
	}()

	switch {
	case t.voice != nil:
		d.handler.HandleVoice(ctx, *t.voice)
	case t.interaction != nil:
		result := d.handler.HandleInteraction(ctx, *t.interaction)
		if t.reply != nil {
			t.reply(result)
		}
	}
}
