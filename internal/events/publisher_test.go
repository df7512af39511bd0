package events

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	payload []byte
}

// fakeNATS speaks just enough of the NATS text protocol for a publisher.
func fakeNATS(t *testing.T) (string, <-chan published) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	msgs := make(chan published, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveNATS(conn, msgs)
		}
	}()
	return "nats://" + ln.Addr().String(), msgs
}

func serveNATS(conn net.Conn, msgs chan<- published) {
	defer conn.Close()
	io.WriteString(conn, `INFO {"server_id":"fake","version":"2.10.0","proto":1,"max_payload":1048576}`+"\r\n")

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "PING":
			io.WriteString(conn, "PONG\r\n")
		case strings.HasPrefix(line, "PUB "):
			fields := strings.Fields(line)
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			buf := make([]byte, size+2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return
			}
			msgs <- published{subject: fields[1], payload: buf[:size]}
		}
	}
}

func TestPublisherPublishesJSON(t *testing.T) {
	url, msgs := fakeNATS(t)

	p, err := NewPublisher(url)
	require.NoError(t, err)
	defer p.Close()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), SubjectListingCreated, ListingEvent{ListingID: 7, PhotoCount: 2, OccurredAt: at}))

	select {
	case msg := <-msgs:
		assert.Equal(t, "listing.created", msg.subject)
		var evt ListingEvent
		require.NoError(t, json.Unmarshal(msg.payload, &evt))
		assert.Equal(t, int64(7), evt.ListingID)
		assert.Equal(t, 2, evt.PhotoCount)
		assert.True(t, at.Equal(evt.OccurredAt))
	case <-time.After(3 * time.Second):
		t.Fatal("no message published")
	}
}

func TestPublisherHonoursCanceledContext(t *testing.T) {
	url, _ := fakeNATS(t)

	p, err := NewPublisher(url)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, SubjectListingDeleted, ListingEvent{ListingID: 1}), context.Canceled)
}
