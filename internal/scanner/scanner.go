// Package scanner implements the ScannerClient contract: an antivirus pass
// (ClamAV's INSTREAM protocol) combined with a rule-matching pass (compiled
// regexp signatures loaded from a rules directory), aggregated into one
// verdict.
package scanner

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucero0/acquisitiond/internal/domain"
)

// Verdict is the aggregated result of scanning a path: the union of what
// ClamAV and the rule engine each flagged.
type Verdict struct {
	Infected        bool
	ThreatName      string
	SignatureMatches []string
	ScannedFiles     []string
	InfectedFiles    []string
}

// Config holds scanner connection and rule settings.
type Config struct {
	ClamHost   string
	ClamPort   int
	RulesDir   string
	Timeout    time.Duration
	ChunkBytes int
}

// Client scans a file or directory by dialing ClamAV's network daemon over
// its INSTREAM protocol and running a compiled set of regexp signature rules
// against each scanned file's contents.
type Client struct {
	cfg    Config
	logger zerolog.Logger
	rules  []rule
}

type rule struct {
	name    string
	pattern *regexp.Regexp
}

// New loads the rule set from cfg.RulesDir (if set) and returns a Client
// ready to dial ClamAV lazily on each Scan call.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 64 * 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	c := &Client{cfg: cfg, logger: logger.With().Str("component", "scanner-client").Logger()}

	if cfg.RulesDir != "" {
		rules, err := loadRules(cfg.RulesDir)
		if err != nil {
			return nil, fmt.Errorf("load scanner rules: %w", err)
		}
		c.rules = rules
	}
	return c, nil
}

func loadRules(dir string) ([]rule, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rules []rule
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rule") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read rule %s: %w", entry.Name(), err)
		}
		pattern, err := regexp.Compile(strings.TrimSpace(string(body)))
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", entry.Name(), err)
		}
		rules = append(rules, rule{name: strings.TrimSuffix(entry.Name(), ".rule"), pattern: pattern})
	}
	return rules, nil
}

// Scan auto-detects whether path is a file or directory. On a directory it
// scans every entry recursively and aggregates the verdicts.
func (c *Client) Scan(path string) (*Verdict, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrScan, path, err)
	}

	verdict := &Verdict{}

	if !info.IsDir() {
		if err := c.scanFile(path, verdict); err != nil {
			return nil, err
		}
		return verdict, nil
	}

	err = filepath.Walk(path, func(p string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		return c.scanFile(p, verdict)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan directory %s: %v", domain.ErrScan, path, err)
	}
	return verdict, nil
}

func (c *Client) scanFile(path string, verdict *Verdict) error {
	verdict.ScannedFiles = append(verdict.ScannedFiles, path)

	clamThreat, err := c.clamScan(path)
	if err != nil {
		return fmt.Errorf("%w: clamav scan %s: %v", domain.ErrScan, path, err)
	}
	if clamThreat != "" {
		verdict.Infected = true
		verdict.InfectedFiles = append(verdict.InfectedFiles, path)
		verdict.SignatureMatches = append(verdict.SignatureMatches, clamThreat)
		if verdict.ThreatName == "" {
			verdict.ThreatName = clamThreat
		}
	}

	ruleMatches, err := c.ruleScan(path)
	if err != nil {
		return fmt.Errorf("%w: rule scan %s: %v", domain.ErrScan, path, err)
	}
	if len(ruleMatches) > 0 {
		verdict.Infected = true
		if !contains(verdict.InfectedFiles, path) {
			verdict.InfectedFiles = append(verdict.InfectedFiles, path)
		}
		verdict.SignatureMatches = append(verdict.SignatureMatches, ruleMatches...)
		if verdict.ThreatName == "" {
			verdict.ThreatName = ruleMatches[0]
		}
	}

	return nil
}

// clamScan streams path's contents to ClamAV over INSTREAM: each chunk is
// prefixed with its length as a 4-byte big-endian integer, terminated by a
// zero-length chunk. It returns the matched signature name, or "" if clean.
func (c *Client) clamScan(path string) (string, error) {
	if c.cfg.ClamHost == "" {
		return "", nil
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(c.cfg.ClamHost, fmt.Sprintf("%d", c.cfg.ClamPort)), c.cfg.Timeout)
	if err != nil {
		return "", fmt.Errorf("dial clamav: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return "", fmt.Errorf("send instream command: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, c.cfg.ChunkBytes)
	chunk := make([]byte, c.cfg.ChunkBytes)
	for {
		n, readErr := reader.Read(chunk)
		if n > 0 {
			var sizeHeader [4]byte
			binary.BigEndian.PutUint32(sizeHeader[:], uint32(n))
			if _, err := conn.Write(sizeHeader[:]); err != nil {
				return "", fmt.Errorf("write chunk size: %w", err)
			}
			if _, err := conn.Write(chunk[:n]); err != nil {
				return "", fmt.Errorf("write chunk: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	var zero [4]byte
	if _, err := conn.Write(zero[:]); err != nil {
		return "", fmt.Errorf("write terminator: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\x00')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read clamav reply: %w", err)
	}
	reply = strings.TrimRight(reply, "\x00\n")

	if strings.Contains(reply, "FOUND") {
		fields := strings.Fields(reply)
		if len(fields) >= 2 {
			return strings.TrimSuffix(fields[len(fields)-2], "FOUND"), nil
		}
		return "unknown-signature", nil
	}
	return "", nil
}

func (c *Client) ruleScan(path string) ([]string, error) {
	if len(c.rules) == 0 {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var matches []string
	for _, r := range c.rules {
		if r.pattern.Match(content) {
			matches = append(matches, r.name)
		}
	}
	return matches, nil
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
