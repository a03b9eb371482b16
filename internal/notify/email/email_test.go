package email

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type stubDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *stubDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestSenderBuildsMessage(t *testing.T) {
	t.Parallel()

	stub := &stubDialer{}
	s := &Sender{dialer: stub, from: "no-reply@strataisp.net", logger: zap.NewNop()}

	err := s.Send("dana@example.com", "Invoice inv-1 due", "Hi Dana, your invoice is due Friday.")
	require.NoError(t, err)
	require.Len(t, stub.sent, 1)

	m := stub.sent[0]
	require.Equal(t, []string{"no-reply@strataisp.net"}, m.GetHeader("From"))
	require.Equal(t, []string{"dana@example.com"}, m.GetHeader("To"))
	require.Equal(t, []string{"Invoice inv-1 due"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "your invoice is due Friday")
}

func TestSenderWrapsDialFailure(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("connection refused")
	s := &Sender{dialer: &stubDialer{err: dialErr}, from: "no-reply@strataisp.net", logger: zap.NewNop()}

	err := s.Send("dana@example.com", "subject", "body")
	require.ErrorIs(t, err, dialErr)
	require.Contains(t, err.Error(), "dana@example.com")
}
