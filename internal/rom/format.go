package rom

import (
	"bufio"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Magic is the first line of every ROM file.
const Magic = "#!RP6502"

var (
	headerRE  = regexp.MustCompile(`^#![Rr][Pp]6502\r?\n$`)
	helpRE    = regexp.MustCompile(`^ *# `)
	blankRE   = regexp.MustCompile(`^ *#$`)
	chunkRE   = regexp.MustCompile(`^ *([^ ]+) +([^ ]+) +([^ ]+) *$`)
	numeralRE = regexp.MustCompile(`^(0x)?[0-9A-Fa-f]*$`)
)

// Load parses a ROM file and merges it into r. name is only used in
// error messages.
func (r *ROM) Load(src io.Reader, name string) error {
	br := bufio.NewReader(src)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !headerRE.MatchString(header) {
		// Binary garbage is common here; decode leniently for the message.
		shown, decErr := charmap.CodePage850.NewDecoder().String(strings.TrimRight(header, "\r\n"))
		if decErr != nil {
			shown = ""
		}
		if runes := []rune(shown); len(runes) > 40 {
			shown = string(runes[:40]) + "..."
		}
		return fmt.Errorf("invalid RP6502 ROM file: %s (header %q)", name, shown)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w", name, err)
		}
		line = strings.TrimRight(line, " \t\r\n")
		if line == "" {
			return nil
		}
		if loc := helpRE.FindStringIndex(line); loc != nil {
			if err := r.AddHelp(line[loc[1]:]); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		if blankRE.MatchString(line) {
			if err := r.AddHelp(""); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		m := chunkRE.FindStringSubmatch(line)
		if m == nil {
			return fmt.Errorf("corrupt RP6502 ROM file: %s", name)
		}
		addr, err := parseNumeral(m[1])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		length, err := parseNumeral(m[2])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		crc, err := parseNumeral(m[3])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := r.Allocate(addr, length); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(br, data); err != nil || uint64(crc) != uint64(crc32.ChecksumIEEE(data)) {
			return fmt.Errorf("%s: invalid CRC in block address: $%04X", name, addr)
		}
		copy(r.data[addr:], data)
	}
}

// AddROMFile merges a ROM file from disk.
func (r *ROM) AddROMFile(path string) error {
	// #nosec G304 -- the user names the ROM to load
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Load(f, path)
}

// WriteTo writes r in ROM file format.
func (r *ROM) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	fmt.Fprintf(bw, "%s\n", Magic)
	for _, line := range r.help {
		if line == "" {
			fmt.Fprintln(bw, "#")
			continue
		}
		fmt.Fprintf(bw, "# %s\n", line)
	}
	for _, c := range r.Chunks() {
		fmt.Fprintf(bw, "%s\n", ChunkHeader(c.Addr, c.Data))
		if _, err := bw.Write(c.Data); err != nil {
			return cw.n, err
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteFile writes r to path.
func (r *ROM) WriteFile(path string) error {
	// #nosec G304 -- output path is chosen by the user
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ChunkHeader formats "$AAAA $LLL $CCCCCCCC" for a block, shared by the file
// format and the monitor's BINARY command.
func ChunkHeader(addr int, data []byte) string {
	return fmt.Sprintf("$%04X $%03X $%08X", addr, len(data), crc32.ChecksumIEEE(data))
}

// parseNumeral reads "$FFFF", "0xFFFF" or decimal digits.
func parseNumeral(s string) (int, error) {
	if strings.HasPrefix(s, "$") {
		s = "0x" + s[1:]
	}
	if !numeralRE.MatchString(s) || s == "" || s == "0x" {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	base := 10
	if strings.HasPrefix(s, "0x") {
		base, s = 16, s[2:]
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return int(v), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
