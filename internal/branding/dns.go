package branding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver answers the two lookups domain verification needs. Live DNS
// only; verification results are never cached.
type Resolver interface {
	TXT(ctx context.Context, name string) ([]string, error)
	CNAME(ctx context.Context, name string) (string, error)
}

// DNSResolver queries the configured resolvers in order until one answers.
type DNSResolver struct {
	resolvers []string
	client    *dns.Client
}

// NewDNSResolver builds a resolver. Addresses are host:port.
func NewDNSResolver(resolvers []string, timeout time.Duration) *DNSResolver {
	return &DNSResolver{
		resolvers: resolvers,
		client:    &dns.Client{Timeout: timeout},
	}
}

// TXT returns every TXT string published at name.
func (r *DNSResolver) TXT(ctx context.Context, name string) ([]string, error) {
	resp, err := r.exchange(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var values []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			values = append(values, strings.Join(txt.Txt, ""))
		}
	}
	return values, nil
}

// CNAME returns the canonical name target of name, without the trailing
// dot, or empty when none is published.
func (r *DNSResolver) CNAME(ctx context.Context, name string) (string, error) {
	resp, err := r.exchange(ctx, name, dns.TypeCNAME)
	if err != nil {
		return "", err
	}
	for _, rr := range resp.Answer {
		if cname, ok := rr.(*dns.CNAME); ok {
			return strings.TrimSuffix(cname.Target, "."), nil
		}
	}
	return "", nil
}

func (r *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	var lastErr error
	for _, resolver := range r.resolvers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no resolvers configured")
	}
	return nil, fmt.Errorf("resolve %s %s: %w", dns.TypeToString[qtype], name, lastErr)
}
