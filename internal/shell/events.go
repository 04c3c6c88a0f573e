package shell

import (
	"context"
	"fmt"
	"io"

	"github.com/zjrosen/maptel/internal/pubsub"
	"github.com/zjrosen/maptel/internal/registry/application"
)

// PrintEvents writes one line per registry change to w until events is
// closed or ctx is done.
func PrintEvents(ctx context.Context, events <-chan pubsub.Event[application.TableEvent], w io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintln(w, FormatEvent(ev))
		}
	}
}

// FormatEvent renders a change as "event <type> <op> handle=<h> ...".
func FormatEvent(ev pubsub.Event[application.TableEvent]) string {
	p := ev.Payload
	line := fmt.Sprintf("event %s %s handle=%d", ev.Type, p.Op, p.Handle)
	if p.Source != "" {
		line += " source=" + p.Source.String()
	}
	if p.Destination != "" {
		line += " destination=" + p.Destination.String()
	}
	return line
}
