package agent

import "context"

// Echo is a built-in Agent that replies with the query message. It backs the
// serve command when no real agent is wired in and keeps examples runnable.
type Echo struct {
	Prefix string // prepended to every reply, default "Echo: "
}

func (e *Echo) StreamQuery(ctx context.Context, q Query, out chan<- Fragment) error {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "Echo: "
	}
	for _, text := range []string{prefix, q.Message} {
		select {
		case out <- Fragment{Text: text}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
