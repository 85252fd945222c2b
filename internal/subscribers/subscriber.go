package subscribers

import (
	"context"

	"hestia.local/dispatch/internal/events"
)

type Subscriber interface {
	Name() string
	Handle(context.Context, events.Event) error
}
