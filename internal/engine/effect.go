package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/graphite/internal/graph"
)

// EffectHandler performs the asynchronous work of an effect unit. ctx is
// cancelled when the kernel closes.
type EffectHandler func(ctx context.Context, params any) (any, error)

// EffectUnit is an effect node with its outcome events.
//
// Running Node dispatches the handler on its own goroutine; the pass moves
// on at once. The outcome re-enters the graph as a new trigger: the result
// on Done, or an *EffectError on Fail. Done and Fail are owned by Node, so
// removing Node removes them too.
type EffectUnit struct {
	Node graph.NodeID
	Done graph.NodeID
	Fail graph.NodeID
}

// EffectError is the payload delivered to an effect's Fail node.
type EffectError struct {
	Params any
	Err    error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("effect failed: %v", e.Err)
}

func (e *EffectError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the failure as {"error": ..., "params": ...} so it
// survives trace storage.
func (e *EffectError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"error":  e.Err.Error(),
		"params": e.Params,
	})
}

// Effect creates an effect unit named name.
func (k *Kernel) Effect(name string, handler EffectHandler) (*EffectUnit, error) {
	if handler == nil {
		return nil, fmt.Errorf("effect %q: nil handler", name)
	}

	unit := &EffectUnit{}

	node, err := k.CreateNode(graph.KindEffect, name,
		graph.Run("dispatch", func(v any) error {
			return k.dispatch(name, unit, handler, v)
		}),
	)
	if err != nil {
		return nil, err
	}
	unit.Node = node

	if unit.Done, err = k.CreateNode(graph.KindEvent, name+".done"); err != nil {
		return nil, err
	}
	if unit.Fail, err = k.CreateNode(graph.KindEvent, name+".fail"); err != nil {
		return nil, err
	}
	if err := k.Adopt(node, unit.Done); err != nil {
		return nil, err
	}
	if err := k.Adopt(node, unit.Fail); err != nil {
		return nil, err
	}

	return unit, nil
}

// dispatch starts handler for params and returns without waiting.
func (k *Kernel) dispatch(name string, unit *EffectUnit, handler EffectHandler, params any) error {
	if k.closed.Load() {
		return ErrKernelClosed
	}

	k.inflight.Add(1)
	go func() {
		defer func() {
			k.inflight.Add(-1)
			k.notifySettled()
		}()

		result, err := callEffect(k.ctx, handler, params)

		var launched bool
		if err != nil {
			launched = k.launch(Trigger{Node: unit.Fail, Payload: &EffectError{Params: params, Err: err}, Outcome: true})
		} else {
			launched = k.launch(Trigger{Node: unit.Done, Payload: result, Outcome: true})
		}
		if !launched {
			k.logger.Debug("effect outcome dropped: kernel closed",
				"effect", name,
				"failed", err != nil,
			)
		}
	}()

	return nil
}

func callEffect(ctx context.Context, handler EffectHandler, params any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, params)
}
