package tenantinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/tenantauth/pkg/logx"
	"github.com/lib/pq"
)

// ChangeChannel is the NOTIFY channel the tenants trigger publishes the
// changed domain on
const ChangeChannel = "tenant_changed"

// Invalidator drops cached tenants
type Invalidator interface {
	Invalidate(domain string)
	InvalidateAll()
}

// NewChangeListener opens a dedicated LISTEN connection on ChangeChannel.
// pq reconnects on its own; call Close to stop it.
func NewChangeListener(dsn string) (*pq.Listener, error) {
	l := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logx.WithError(err).WithField("event", int(ev)).Warn("tenant change listener")
		}
	})
	if err := l.Listen(ChangeChannel); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// WatchChanges invalidates the domains announced on notifications until ctx
// ends or the channel closes. A nil notification follows a reconnect, when
// events may have been lost, and flushes everything.
func WatchChanges(ctx context.Context, notifications <-chan *pq.Notification, cache Invalidator) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n == nil {
				logx.Warn("tenant change listener reconnected; flushing tenant cache")
				cache.InvalidateAll()
				continue
			}
			cache.Invalidate(n.Extra)
			logx.WithField("domain", n.Extra).Debug("tenant cache entry invalidated")
		}
	}
}
