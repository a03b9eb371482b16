package diag

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

// newDNSServer starts a UDP resolver on a loopback port answering from
// the given records, keyed by question name and type.
func newDNSServer(t *testing.T, records map[dns.Question][]dns.RR) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			if len(req.Question) == 1 {
				m.Answer = records[req.Question[0]]
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func question(name string, qtype uint16) dns.Question {
	return dns.Question{Name: name, Qtype: qtype, Qclass: dns.ClassINET}
}

func TestDNSCheckerCheck(t *testing.T) {
	t.Parallel()

	resolver := newDNSServer(t, map[dns.Question][]dns.RR{
		question("portal.example.com.", dns.TypeA): {
			mustRR(t, "portal.example.com. 300 IN A 192.0.2.10"),
		},
	})

	c := NewDNSChecker([]string{resolver}, 2*time.Second)
	result, err := c.Check(context.Background(), "portal.example.com")
	require.NoError(t, err)

	require.Equal(t, "portal.example.com", result.Host)
	require.Equal(t, resolver, result.Resolver)
	require.Equal(t, []DNSAnswer{
		{Name: "portal.example.com.", Type: "A", TTL: 300, Value: "192.0.2.10"},
	}, result.Answers)
	require.GreaterOrEqual(t, result.RTTMs, 0.0)
}

func TestDNSCheckerCheckCNAME(t *testing.T) {
	t.Parallel()

	resolver := newDNSServer(t, map[dns.Question][]dns.RR{
		question("alias.example.com.", dns.TypeCNAME): {
			mustRR(t, "alias.example.com. 60 IN CNAME portal.example.com."),
		},
	})

	c := NewDNSChecker([]string{resolver}, 2*time.Second)
	result, err := c.Check(context.Background(), "alias.example.com")
	require.NoError(t, err)
	require.Equal(t, []DNSAnswer{
		{Name: "alias.example.com.", Type: "CNAME", TTL: 60, Value: "portal.example.com."},
	}, result.Answers)
}

func TestDNSCheckerFailsOverToNextResolver(t *testing.T) {
	t.Parallel()

	resolver := newDNSServer(t, map[dns.Question][]dns.RR{
		question("portal.example.com.", dns.TypeA): {
			mustRR(t, "portal.example.com. 300 IN A 192.0.2.10"),
		},
	})

	c := NewDNSChecker([]string{"127.0.0.1:1", resolver}, time.Second)
	result, err := c.Check(context.Background(), "portal.example.com")
	require.NoError(t, err)
	require.Equal(t, resolver, result.Resolver)
	require.Len(t, result.Answers, 1)
}

func TestDNSCheckerNoResolvers(t *testing.T) {
	t.Parallel()

	c := NewDNSChecker(nil, time.Second)
	_, err := c.Check(context.Background(), "portal.example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no resolvers configured")
}

func TestDNSCheckerLookupTXT(t *testing.T) {
	t.Parallel()

	resolver := newDNSServer(t, map[dns.Question][]dns.RR{
		question("_strata-verify.example.com.", dns.TypeTXT): {
			mustRR(t, `_strata-verify.example.com. 30 IN TXT "token-abc123"`),
			mustRR(t, `_strata-verify.example.com. 30 IN TXT "token-def456"`),
		},
	})

	c := NewDNSChecker([]string{resolver}, 2*time.Second)
	values, err := c.LookupTXT(context.Background(), "_strata-verify.example.com")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"token-abc123", "token-def456"}, values)
}

func TestDNSCheckerLookupCNAME(t *testing.T) {
	t.Parallel()

	resolver := newDNSServer(t, map[dns.Question][]dns.RR{
		question("portal.example.com.", dns.TypeCNAME): {
			mustRR(t, "portal.example.com. 60 IN CNAME edge.strataisp.net."),
		},
	})

	c := NewDNSChecker([]string{resolver}, 2*time.Second)

	target, err := c.LookupCNAME(context.Background(), "portal.example.com")
	require.NoError(t, err)
	require.Equal(t, "edge.strataisp.net.", target)

	target, err = c.LookupCNAME(context.Background(), "bare.example.com")
	require.NoError(t, err)
	require.Empty(t, target)
}
