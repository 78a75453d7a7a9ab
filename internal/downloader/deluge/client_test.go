package deluge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeDaemon is a minimal stand-in for the Deluge daemon wire protocol: it
// accepts one connection, answers daemon.login with a success reply, and
// then answers every subsequent call with whatever canned response the test
// registered for that method.
type fakeDaemon struct {
	listener net.Listener
	replies  map[string]interface{}
}

func newFakeDaemon(t *testing.T, replies map[string]interface{}) *fakeDaemon {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := &fakeDaemon{listener: l, replies: replies}
	go d.serve(t)
	return d
}

func (d *fakeDaemon) addr() (string, int) {
	tcpAddr := d.listener.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

func (d *fakeDaemon) serve(t *testing.T) {
	conn, err := d.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		frame, err := readFrame(conn)
		if err != nil {
			return
		}
		decompressed, err := zlibDecompress(frame)
		require.NoError(t, err)

		value, _, err := rencodeDecode(decompressed)
		require.NoError(t, err)

		requests := value.([]interface{})
		request := requests[0].([]interface{})
		id := request[0].(int64)
		method := request[1].(string)

		var result interface{} = true
		if method == "daemon.login" {
			result = "localclient"
		} else if r, ok := d.replies[method]; ok {
			result = r
		}

		response := []interface{}{int64(rpcResponse), id, result}
		payload, err := rencodeEncode(response)
		require.NoError(t, err)
		compressed, err := zlibCompress(payload)
		require.NoError(t, err)

		header := make([]byte, 5)
		header[0] = protocolVersion
		writeUint32(header[1:], uint32(len(compressed)))
		conn.Write(append(header, compressed...))
	}
}

func writeUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestClient_ListActive(t *testing.T) {
	torrents := map[string]interface{}{
		"aa01": map[string]interface{}{
			"name":       "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP",
			"state":      "Seeding",
			"progress":   100.0,
			"eta":        int64(0),
			"time_added": int64(1700000000),
		},
	}
	daemon := newFakeDaemon(t, map[string]interface{}{
		"core.get_torrents_status": torrents,
	})
	defer daemon.listener.Close()

	host, port := daemon.addr()
	client := New(Config{Host: host, Port: port, Username: "u", Password: "p", Timeout: 2 * time.Second}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	statuses, err := client.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, "aa01", statuses[0].Hash)
	require.Equal(t, "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", statuses[0].Name)
	require.InDelta(t, 1.0, statuses[0].Progress, 0.001)
}

func TestClient_Remove(t *testing.T) {
	daemon := newFakeDaemon(t, map[string]interface{}{
		"core.remove_torrent": true,
	})
	defer daemon.listener.Close()

	host, port := daemon.addr()
	client := New(Config{Host: host, Port: port, Timeout: 2 * time.Second}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Remove(ctx, "aa01", true)
	require.NoError(t, err)
}
