package httpclient

import (
	"context"

	"github.com/helica-bio/helica/errors"
)

// Pool hands out the shared guarded client under a bounded lease count.
// Acquire returns the client together with a release function; callers must
// defer the release so the lease is returned on every exit path.
type Pool struct {
	client *Client
	leases chan struct{}
}

// NewPool creates a pool of size leases over the given client.
func NewPool(client *Client, size int) (*Pool, error) {
	if client == nil {
		return nil, errors.New("pool requires a client")
	}
	if size < 1 {
		return nil, errors.Newf("pool size must be >= 1, got %d", size)
	}
	return &Pool{
		client: client,
		leases: make(chan struct{}, size),
	}, nil
}

// Acquire obtains a lease on the client, blocking until one is free or the
// context is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*Client, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "acquiring http client lease")
	}
	select {
	case p.leases <- struct{}{}:
		released := false
		release := func() {
			if released {
				return
			}
			released = true
			<-p.leases
		}
		return p.client, release, nil
	case <-ctx.Done():
		return nil, nil, errors.Wrap(ctx.Err(), "acquiring http client lease")
	}
}

// InUse returns the number of outstanding leases.
func (p *Pool) InUse() int {
	return len(p.leases)
}

// Size returns the maximum number of concurrent leases.
func (p *Pool) Size() int {
	return cap(p.leases)
}
