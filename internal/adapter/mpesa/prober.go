package mpesa

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polkiloo/marketplace/internal/config"
	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
)

// Prober checks that the gateway can be reached before a push is attempted.
type Prober interface {
	Check(ctx context.Context) error
}

// NetProber dials a well-known address and resolves the gateway host concurrently.
type NetProber struct {
	address string
	host    string
	timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
	lookup  func(ctx context.Context, host string) ([]string, error)
}

// NewNetProber builds a prober for the configured gateway.
func NewNetProber(cfg config.MpesaConfig) (*NetProber, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse mpesa url: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("mpesa url has no host")
	}
	dialer := &net.Dialer{}
	return &NetProber{
		address: cfg.ProbeAddress,
		host:    parsed.Hostname(),
		timeout: cfg.ProbeTimeout,
		dial:    dialer.DialContext,
		lookup:  net.DefaultResolver.LookupHost,
	}, nil
}

// Check reports ErrNetworkUnavailable when the machine is offline and
// ErrGatewayUnreachable when only the gateway host cannot be resolved.
func (p *NetProber) Check(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var (
		g       errgroup.Group
		connErr error
	)
	g.Go(func() error {
		conn, err := p.dial(ctx, "tcp", p.address)
		if err != nil {
			connErr = fmt.Errorf("%w: %v", domainErrors.ErrNetworkUnavailable, err)
			return connErr
		}
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		addrs, err := p.lookup(ctx, p.host)
		if err == nil && len(addrs) == 0 {
			err = fmt.Errorf("no addresses for %s", p.host)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnreachable, err)
		}
		return nil
	})

	// An offline machine explains a failed lookup too, so it wins.
	if err := g.Wait(); err != nil {
		if connErr != nil {
			return connErr
		}
		return err
	}
	return nil
}
