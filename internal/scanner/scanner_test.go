package scanner

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeClam answers every INSTREAM session with a canned reply, draining the
// chunked stream until the zero-length terminator.
func fakeClam(t *testing.T, reply string) (host string, port int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			serveClamSession(conn, reply)
		}
	}()

	tcpAddr := l.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

func serveClamSession(conn net.Conn, reply string) {
	defer conn.Close()

	buf := make([]byte, 4096)
	conn.Read(buf) // zINSTREAM\x00 command

	for {
		var size [4]byte
		if _, err := io.ReadFull(conn, size[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(size[:])
		if n == 0 {
			break
		}
		io.CopyN(io.Discard, conn, int64(n))
	}

	conn.Write([]byte(reply + "\x00"))
}

func TestScan_CleanFile(t *testing.T) {
	host, port := fakeClam(t, "stream: OK")

	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("not a virus"), 0o644))

	client, err := New(Config{ClamHost: host, ClamPort: port, Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	verdict, err := client.Scan(path)
	require.NoError(t, err)
	require.False(t, verdict.Infected)
	require.Contains(t, verdict.ScannedFiles, path)
}

func TestScan_InfectedFile(t *testing.T) {
	host, port := fakeClam(t, "stream: Eicar-Test-Signature FOUND")

	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR"), 0o644))

	client, err := New(Config{ClamHost: host, ClamPort: port, Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	verdict, err := client.Scan(path)
	require.NoError(t, err)
	require.True(t, verdict.Infected)
	require.Equal(t, "Eicar-Test-Signature", verdict.ThreatName)
	require.Contains(t, verdict.InfectedFiles, path)
}

func TestScan_RuleMatch(t *testing.T) {
	host, port := fakeClam(t, "stream: OK")

	rulesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "suspicious-exe.rule"), []byte(`(?i)\.exe\b`), 0o644))

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.nfo")
	require.NoError(t, os.WriteFile(path, []byte("run setup.exe to install"), 0o644))

	client, err := New(Config{ClamHost: host, ClamPort: port, RulesDir: rulesDir, Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	verdict, err := client.Scan(path)
	require.NoError(t, err)
	require.True(t, verdict.Infected)
	require.Contains(t, verdict.SignatureMatches, "suspicious-exe")
}

func TestScan_Directory(t *testing.T) {
	host, port := fakeClam(t, "stream: OK")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mkv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mkv"), []byte("b"), 0o644))

	client, err := New(Config{ClamHost: host, ClamPort: port, Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	verdict, err := client.Scan(dir)
	require.NoError(t, err)
	require.False(t, verdict.Infected)
	require.Len(t, verdict.ScannedFiles, 2)
}
