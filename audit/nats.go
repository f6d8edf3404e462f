package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject used when none is configured.
const DefaultSubject = "authcore.audit"

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATSSink publishes each event as a JSON message.
type NATSSink struct {
	conn    Publisher
	subject string
}

// NewNATSSink returns a sink publishing on subject through conn.
func NewNATSSink(conn Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject}
}

// ConnectNATS dials url and returns a sink plus the connection so the caller
// can drain it on shutdown.
func ConnectNATS(url, subject string) (*NATSSink, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("authcore-audit"))
	if err != nil {
		return nil, nil, err
	}
	return NewNATSSink(nc, subject), nc, nil
}

func (s *NATSSink) Emit(ctx context.Context, event Event) error {
	if s == nil || s.conn == nil {
		return errors.New("nats sink is not connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, data)
}
