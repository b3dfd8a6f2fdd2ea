package engine

import (
	"context"
	"strings"
	"time"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/funcall"
	"github.com/nxgate/nxgate/pkg/observability"
	"github.com/nxgate/nxgate/pkg/provider"
	"github.com/nxgate/nxgate/pkg/reasoning"
	"github.com/nxgate/nxgate/pkg/transport"
)

// streamState tracks the lifecycle of one SSE response.
type streamState int

const (
	stateStarted streamState = iota
	stateStreaming
	stateFunctionCallEmitted
	stateNormalDone
	stateClosed
)

func (s streamState) String() string {
	switch s {
	case stateStarted:
		return "STARTED"
	case stateStreaming:
		return "STREAMING"
	case stateFunctionCallEmitted:
		return "FUNCTION_CALL_EMITTED"
	case stateNormalDone:
		return "NORMAL_DONE"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// streamer converts upstream fragments into chat completion chunks.
// Every chunk is written and flushed before the next fragment is pulled.
type streamer struct {
	c       *call
	w       transport.ResponseWriter
	id      string
	created int64
	state   streamState

	splitter *reasoning.Splitter

	// pending is text withheld while a function call may be forming.
	pending string
	// received is the full upstream text, for usage accounting.
	received strings.Builder

	index     int
	roleSent  bool
	reasoning bool
}

// stream invokes the provider and writes the chunk stream. Complete text
// from non-streaming upstreams is paced into fragments first.
func (e *Engine) stream(ctx context.Context, c *call, w transport.ResponseWriter) error {
	// Cancelled on return so an abandoned upstream stops producing.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, start, err := e.invoke(ctx, c)
	if err != nil {
		return err
	}

	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	s := &streamer{
		c:        c,
		w:        w,
		id:       api.NewCompletionID(),
		created:  time.Now().Unix(),
		state:    stateStarted,
		splitter: e.reasoning.NewSplitter(),
	}

	err = s.run(ctx, provider.Paced(ctx, out, e.cfg.ChunkSize, e.cfg.ChunkDelay))

	status := "success"
	var usage *api.Usage
	if err != nil {
		status = "error"
	} else {
		u := e.counter.Count(c.messages, s.received.String())
		usage = &u
	}
	e.finish(c, start, status, usage)
	if s.reasoning {
		observability.ReasoningExtractedTotal.WithLabelValues(c.requested, "stream").Inc()
	}
	return err
}

func (s *streamer) transition(to streamState) {
	debug.Log("streaming", "stream state", "id", s.id, "from", s.state.String(), "to", to.String())
	s.state = to
}

func (s *streamer) run(ctx context.Context, frags <-chan provider.Fragment) error {
	s.transition(stateStreaming)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frags:
			if !ok {
				return s.finishNormal(ctx)
			}
			if f.Err != nil {
				return f.Err
			}
			done, err := s.push(ctx, f.Text)
			if err != nil || done {
				return err
			}
		}
	}
}

// push handles one fragment. It reports true once a function call has been
// emitted and the stream is finished.
func (s *streamer) push(ctx context.Context, text string) (bool, error) {
	s.received.WriteString(text)
	if !s.c.toolsOffered {
		return false, s.emit(ctx, s.splitter.Push(text))
	}

	s.pending += text
	if i := strings.Index(s.pending, funcall.Marker); i >= 0 {
		if i > 0 {
			before := s.pending[:i]
			s.pending = s.pending[i:]
			if err := s.emit(ctx, s.splitter.Push(before)); err != nil {
				return false, err
			}
		}
		if funcall.CallComplete(s.pending) {
			if inv, ok := funcall.ParseFunctionCall(s.pending); ok {
				return true, s.emitFunctionCall(ctx, inv)
			}
		}
		return false, nil
	}

	keep := funcall.PartialMarkerLen(s.pending)
	release := s.pending[:len(s.pending)-keep]
	s.pending = s.pending[len(s.pending)-keep:]
	return false, s.emit(ctx, s.splitter.Push(release))
}

// finishNormal runs when the upstream is exhausted. A call whose closing
// tag never arrived is still decoded leniently; otherwise held text is
// released as content before the stop chunk.
func (s *streamer) finishNormal(ctx context.Context) error {
	if s.pending != "" {
		if s.c.toolsOffered && funcall.ContainsMarker(s.pending) {
			if inv, ok := funcall.ParseFunctionCall(s.pending); ok {
				return s.emitFunctionCall(ctx, inv)
			}
		}
		rest := s.pending
		s.pending = ""
		if err := s.emit(ctx, s.splitter.Push(rest)); err != nil {
			return err
		}
	}
	if err := s.emit(ctx, s.splitter.Flush()); err != nil {
		return err
	}

	s.transition(stateNormalDone)
	stop := api.FinishReasonStop
	if err := s.write(ctx, 0, api.ChunkDelta{}, &stop); err != nil {
		return err
	}
	s.transition(stateClosed)
	return nil
}

func (s *streamer) emitFunctionCall(ctx context.Context, inv *funcall.Invocation) error {
	debug.Log("funcall", "decoded function call in stream", "id", s.id, "name", inv.Name, "args", len(inv.Keys()))
	observability.FunctionCallsTotal.WithLabelValues(s.c.requested, "stream").Inc()

	tc := inv.ToolCall(api.NewCallID())
	idx := 0
	tc.Index = &idx
	if err := s.write(ctx, 0, api.ChunkDelta{ToolCalls: []api.ToolCall{tc}}, nil); err != nil {
		return err
	}
	s.transition(stateFunctionCallEmitted)

	finish := api.FinishReasonToolCalls
	if err := s.write(ctx, 0, api.ChunkDelta{}, &finish); err != nil {
		return err
	}
	s.transition(stateClosed)
	return nil
}

// emit writes one content chunk per splitter delta, each with the next
// choice index.
func (s *streamer) emit(ctx context.Context, deltas []reasoning.Delta) error {
	for _, d := range deltas {
		if d.Content == nil && d.Reasoning == nil {
			continue
		}
		if d.Reasoning != nil {
			s.reasoning = true
		}
		idx := s.index
		s.index++
		if err := s.write(ctx, idx, api.ChunkDelta{Content: d.Content, ReasoningContent: d.Reasoning}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *streamer) write(ctx context.Context, index int, delta api.ChunkDelta, finish *string) error {
	if !s.roleSent && finish == nil {
		delta.Role = api.RoleAssistant
		s.roleSent = true
	}
	return s.w.WriteChunk(ctx, &api.ChatCompletionChunk{
		ID:      s.id,
		Object:  api.ObjectChatCompletionChunk,
		Created: s.created,
		Model:   s.c.requested,
		Choices: []api.ChunkChoice{{
			Index:        index,
			Delta:        delta,
			FinishReason: finish,
		}},
	})
}
