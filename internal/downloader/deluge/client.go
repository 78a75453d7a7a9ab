// Package deluge implements the DownloaderClient contract against a Deluge
// daemon, reached over a VPN-tunneled TCP connection. The wire protocol is a
// length-prefixed, zlib-compressed rencode payload; see rencode.go.
package deluge

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

const (
	rpcResponse = 1
	rpcError    = 2
	rpcEvent    = 3

	protocolVersion = 1
)

// Config holds Deluge daemon connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a lazily-opened, single-connection Deluge daemon RPC client.
// One sync.Mutex-guarded connection correlates requests by an incrementing
// request id, matching how the daemon multiplexes RPC and event frames on
// one socket.
type Client struct {
	cfg     Config
	logger  zerolog.Logger
	mu      sync.Mutex
	conn    net.Conn
	nextID  int64
	authed  bool
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, logger: logger.With().Str("component", "deluge-client").Logger()}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.authed {
		return nil
	}

	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial deluge daemon: %v", domain.ErrTransport, err)
	}
	c.conn = conn

	result, err := c.callLocked(ctx, "daemon.login", []interface{}{c.cfg.Username, c.cfg.Password}, nil)
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("%w: daemon login: %v", domain.ErrAuthRejected, err)
	}
	_ = result
	c.authed = true
	return nil
}

// call sends one RPC request and waits for its matching response, opening
// the connection first if necessary.
func (c *Client) call(ctx context.Context, method string, args []interface{}) (interface{}, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callLocked(ctx, method, args, nil)
}

func (c *Client) callLocked(ctx context.Context, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	request := []interface{}{[]interface{}{id, method, args, kwargs}}

	payload, err := rencodeEncode(request)
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}

	compressed, err := zlibCompress(payload)
	if err != nil {
		return nil, fmt.Errorf("compress rpc request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}

	header := make([]byte, 5)
	header[0] = protocolVersion
	binary.BigEndian.PutUint32(header[1:], uint32(len(compressed)))
	if _, err := c.conn.Write(append(header, compressed...)); err != nil {
		c.conn.Close()
		c.conn = nil
		c.authed = false
		return nil, fmt.Errorf("%w: write rpc request: %v", domain.ErrTransport, err)
	}

	for {
		frame, err := readFrame(c.conn)
		if err != nil {
			c.conn.Close()
			c.conn = nil
			c.authed = false
			return nil, fmt.Errorf("%w: read rpc response: %v", domain.ErrTransport, err)
		}

		decompressed, err := zlibDecompress(frame)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress rpc response: %v", domain.ErrMalformedResponse, err)
		}

		value, _, err := rencodeDecode(decompressed)
		if err != nil {
			return nil, fmt.Errorf("%w: decode rpc response: %v", domain.ErrMalformedResponse, err)
		}

		messages, ok := value.([]interface{})
		if !ok || len(messages) < 2 {
			return nil, fmt.Errorf("%w: unexpected rpc response shape", domain.ErrMalformedResponse)
		}

		msgType, ok := messages[0].(int64)
		if !ok {
			return nil, fmt.Errorf("%w: rpc message type is not an int", domain.ErrMalformedResponse)
		}

		if msgType == rpcEvent {
			continue // events are multiplexed on the same socket; skip to the matching reply
		}

		respID, ok := messages[1].(int64)
		if !ok || respID != id {
			continue
		}

		switch msgType {
		case rpcResponse:
			if len(messages) < 3 {
				return nil, nil
			}
			return messages[2], nil
		case rpcError:
			return nil, fmt.Errorf("%w: deluge rpc error: %v", domain.ErrTransport, messages[2:])
		default:
			return nil, fmt.Errorf("%w: unknown rpc message type %d", domain.ErrMalformedResponse, msgType)
		}
	}
}

func readFrame(conn net.Conn) ([]byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func zlibDecompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ListActive returns every torrent currently known to the daemon.
func (c *Client) ListActive(ctx context.Context) ([]domain.TorrentStatus, error) {
	fields := []interface{}{"hash", "name", "state", "progress", "eta", "time_added"}
	result, err := c.call(ctx, "core.get_torrents_status", []interface{}{map[string]interface{}{}, fields})
	if err != nil {
		return nil, err
	}

	torrents, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: unexpected get_torrents_status response shape", domain.ErrMalformedResponse)
	}

	statuses := make([]domain.TorrentStatus, 0, len(torrents))
	for hash, raw := range torrents {
		fieldsMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		statuses = append(statuses, torrentStatusFromFields(hash, fieldsMap))
	}
	return statuses, nil
}

// Status returns the single torrent matching hash, or domain.ErrNotFound.
func (c *Client) Status(ctx context.Context, hash string) (*domain.TorrentStatus, error) {
	statuses, err := c.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		if s.Hash == hash {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Remove purges a torrent from the daemon, optionally also deleting its data.
func (c *Client) Remove(ctx context.Context, hash string, alsoDeleteData bool) error {
	_, err := c.call(ctx, "core.remove_torrent", []interface{}{hash, alsoDeleteData})
	return err
}

func torrentStatusFromFields(hash string, fields map[string]interface{}) domain.TorrentStatus {
	status := domain.TorrentStatus{Hash: hash}
	if v, ok := fields["name"].(string); ok {
		status.Name = v
	}
	if v, ok := fields["state"].(string); ok {
		status.State = v
	}
	if v, ok := asFloat(fields["progress"]); ok {
		status.Progress = v / 100.0
	}
	if v, ok := asInt(fields["eta"]); ok {
		status.ETA = time.Duration(v) * time.Second
	}
	if v, ok := asInt(fields["time_added"]); ok {
		status.TimeAdded = time.Unix(v, 0)
	}
	return status
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
