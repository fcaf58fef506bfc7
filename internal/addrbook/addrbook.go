package addrbook

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"qcping/internal/addrutil"
	"qcping/internal/catalog"
	"qcping/internal/model"
)

// Wildcard matches every station of a network.
const Wildcard = "*"

var (
	// ErrMalformedLine marks an address line that was skipped.
	ErrMalformedLine = errors.New("malformed address line")
	// ErrNoInventoryMatch is fatal: an address record has no catalog stream.
	ErrNoInventoryMatch = errors.New("no inventory representation")
)

// LineError describes a skipped address line.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *LineError) Unwrap() error {
	return ErrMalformedLine
}

// MatchError reports an address record without any catalog stream.
type MatchError struct {
	Network string
	Station string
	Line    int
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s.%s (line %d) has no inventory representation or no streams are defined", e.Network, e.Station, e.Line)
}

func (e *MatchError) Unwrap() error {
	return ErrNoInventoryMatch
}

// Record is one "NET STA IP PORT" line. Station may be the wildcard.
type Record struct {
	Network string
	Station string
	IP      string
	Port    uint16
	Line    int
}

// Prefix is the catalog identifier prefix this record selects.
func (r Record) Prefix() string {
	prefix := r.Network + "."
	if r.Station != Wildcard {
		prefix += r.Station + "."
	}
	return prefix
}

func (r Record) Address() model.Address {
	return model.Address{IP: r.IP, Port: r.Port}
}

func (r Record) String() string {
	return fmt.Sprintf("%s.%s.%s.%d", r.Network, r.Station, r.IP, r.Port)
}

// Parse reads address records. Comment and blank lines are ignored; lines
// that do not split into four fields or carry an invalid port are returned as
// warnings and skipped. An IPv6 address may be written in brackets; the
// brackets are dropped.
func Parse(r io.Reader) ([]Record, []error, error) {
	var (
		records  []Record
		warnings []error
	)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 4 {
			warnings = append(warnings, &LineError{Line: lineNo, Text: line, Reason: "expected NET STA IP PORT"})
			continue
		}
		port, err := addrutil.ParsePort(fields[3])
		if err != nil {
			warnings = append(warnings, &LineError{Line: lineNo, Text: line, Reason: err.Error()})
			continue
		}
		ip := fields[2]
		if strings.HasPrefix(ip, "[") || strings.HasSuffix(ip, "]") {
			if !strings.HasPrefix(ip, "[") || !strings.HasSuffix(ip, "]") || len(ip) < 3 {
				warnings = append(warnings, &LineError{Line: lineNo, Text: line, Reason: "unbalanced brackets in ip"})
				continue
			}
			ip = ip[1 : len(ip)-1]
		}
		records = append(records, Record{
			Network: fields[0],
			Station: fields[1],
			IP:      ip,
			Port:    port,
			Line:    lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, err
	}
	return records, warnings, nil
}

// Apply assigns each record's address to the configured catalog streams it
// matches. Matched but unconfigured streams stay without an address. If any
// record matches no stream at all, nothing is assigned and a *MatchError is
// returned.
func Apply(c *catalog.Catalog, records []Record, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	type assignment struct {
		entry *model.StreamEntry
		addr  model.Address
	}
	var pending []assignment

	log.Info("registered source addresses")
	for _, rec := range records {
		log.Info("source address", zap.Stringer("record", rec))

		matched := c.WithPrefix(rec.Prefix())
		if len(matched) == 0 {
			err := &MatchError{Network: rec.Network, Station: rec.Station, Line: rec.Line}
			log.Error(err.Error())
			return err
		}
		for _, entry := range matched {
			if !entry.Configured {
				continue
			}
			pending = append(pending, assignment{entry: entry, addr: rec.Address()})
		}
	}

	for _, p := range pending {
		addr := p.addr
		p.entry.Address = &addr
	}
	return nil
}

// Load reads the address file at path and applies it to the catalog.
func Load(path string, c *catalog.Catalog, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	defer file.Close()

	records, warnings, err := Parse(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, w := range warnings {
		log.Warn("skipping address line", zap.String("file", path), zap.Error(w))
	}
	return Apply(c, records, log)
}
