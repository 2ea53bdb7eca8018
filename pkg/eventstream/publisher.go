package eventstream

import (
	"context"
	"errors"
)

// ErrNilRecordEvent is returned by publishers handed a nil event.
var ErrNilRecordEvent = errors.New("nil record event")

// Publisher announces persisted records to a downstream event stream. The
// persister calls PublishRecord after every successful storage write and
// treats a publish failure as non-fatal.
type Publisher interface {
	PublishRecord(ctx context.Context, event *RecordPersistedEvent) error
	Close() error
}
