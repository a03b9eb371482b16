package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// DNSAnswer is one resource record from a diagnostic lookup.
type DNSAnswer struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	TTL   uint32 `json:"ttl"`
	Value string `json:"value"`
}

// DNSResult is the outcome of one diagnostic lookup.
type DNSResult struct {
	Host     string      `json:"host"`
	Resolver string      `json:"resolver"`
	RTTMs    float64     `json:"rtt_ms"`
	Answers  []DNSAnswer `json:"answers"`
}

// DNSChecker resolves A, AAAA and CNAME records against the configured
// resolvers, trying each in order until one responds.
type DNSChecker struct {
	resolvers []string
	client    *dns.Client
}

// NewDNSChecker builds a checker. Resolvers are host:port addresses.
func NewDNSChecker(resolvers []string, timeout time.Duration) *DNSChecker {
	return &DNSChecker{
		resolvers: resolvers,
		client:    &dns.Client{Timeout: timeout},
	}
}

var dnsQueryTypes = []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeCNAME}

// Check queries all diagnostic record types for host. Resolvers are tried
// in order; the first one that answers any query wins.
func (c *DNSChecker) Check(ctx context.Context, host string) (DNSResult, error) {
	var lastErr error
	for _, resolver := range c.resolvers {
		result, err := c.checkVia(ctx, resolver, host)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no resolvers configured")
	}
	return DNSResult{}, fmt.Errorf("dns check %s: %w", host, lastErr)
}

func (c *DNSChecker) checkVia(ctx context.Context, resolver, host string) (DNSResult, error) {
	result := DNSResult{Host: host, Resolver: resolver}
	answered := false
	var total time.Duration

	for _, qtype := range dnsQueryTypes {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		resp, rtt, err := c.client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			return DNSResult{}, fmt.Errorf("exchange %s: %w", dns.TypeToString[qtype], err)
		}
		answered = true
		total += rtt
		for _, rr := range resp.Answer {
			answer := DNSAnswer{
				Name: rr.Header().Name,
				Type: dns.TypeToString[rr.Header().Rrtype],
				TTL:  rr.Header().Ttl,
			}
			switch record := rr.(type) {
			case *dns.A:
				answer.Value = record.A.String()
			case *dns.AAAA:
				answer.Value = record.AAAA.String()
			case *dns.CNAME:
				answer.Value = record.Target
			default:
				continue
			}
			result.Answers = append(result.Answers, answer)
		}
	}
	if !answered {
		return DNSResult{}, fmt.Errorf("no responses from %s", resolver)
	}
	result.RTTMs = float64(total.Microseconds()) / 1000.0
	return result, nil
}

// LookupTXT returns the TXT record strings for name, used for domain
// ownership challenges.
func (c *DNSChecker) LookupTXT(ctx context.Context, name string) ([]string, error) {
	var lastErr error
	for _, resolver := range c.resolvers {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
		resp, _, err := c.client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		var values []string
		for _, rr := range resp.Answer {
			if txt, ok := rr.(*dns.TXT); ok {
				for _, v := range txt.Txt {
					values = append(values, v)
				}
			}
		}
		return values, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no resolvers configured")
	}
	return nil, fmt.Errorf("lookup txt %s: %w", name, lastErr)
}

// LookupCNAME returns the canonical name target for name, or empty when
// no CNAME exists.
func (c *DNSChecker) LookupCNAME(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, resolver := range c.resolvers {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(name), dns.TypeCNAME)
		resp, _, err := c.client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range resp.Answer {
			if cname, ok := rr.(*dns.CNAME); ok {
				return cname.Target, nil
			}
		}
		return "", nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no resolvers configured")
	}
	return "", fmt.Errorf("lookup cname %s: %w", name, lastErr)
}
