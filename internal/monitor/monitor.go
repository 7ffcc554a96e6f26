// Package monitor drives the RP6502 RIA monitor over its serial console:
// stopping the 6502, writing RAM with BINARY, uploading files to the USB
// drive and restarting the CPU.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strings"
	"time"

	"rp6502/internal/rom"
	"rp6502/internal/trace"
)

const (
	// BaudRate is the RIA console speed.
	BaudRate = 115200
	// DefaultTimeout bounds the wait for a prompt while the line is idle.
	DefaultTimeout = 500 * time.Millisecond
	// BreakDuration is the length of the break that stops the 6502.
	BreakDuration = 10 * time.Millisecond
	// UploadChunk is the block size of UPLOAD transfers.
	UploadChunk = 1024

	// Prompt is printed by the monitor when it is ready for a command.
	Prompt = "]"
	// UploadPrompt is printed while UPLOAD waits for the next block.
	UploadPrompt = "}"
)

// ErrTimeout reports a prompt that never arrived.
var ErrTimeout = errors.New("timed out waiting for monitor prompt")

// RemoteError is a "?" diagnostic printed by the monitor.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Port is the serial line to the RIA. Read returns (0, nil) or a deadline
// error when no byte arrives within the port's read timeout.
type Port interface {
	io.ReadWriter
	// SendBreak holds the line in the break state for d.
	SendBreak(d time.Duration) error
	// Drain discards any input waiting to be read.
	Drain() error
}

// Monitor talks to the RIA monitor on a Port.
type Monitor struct {
	port    Port
	timeout time.Duration
	// Retries is how many extra breaks SendBreak tries before giving up.
	Retries int
}

// New wraps port.
func New(port Port) *Monitor {
	return &Monitor{port: port, timeout: DefaultTimeout, Retries: 1}
}

// SetTimeout changes the default prompt timeout.
func (m *Monitor) SetTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// SendBreak stops the 6502 and waits for the monitor prompt.
func (m *Monitor) SendBreak(ctx context.Context) error {
	ctx, span := trace.Start(ctx, trace.ScopeStage, "break")
	var err error
	for attempt := 0; attempt <= m.Retries; attempt++ {
		if err = m.port.Drain(); err != nil {
			break
		}
		if err = m.port.SendBreak(BreakDuration); err != nil {
			break
		}
		err = m.WaitForPrompt(ctx, Prompt, m.timeout)
		if !errors.Is(err, ErrTimeout) {
			break
		}
	}
	span.End(errDetail(err))
	return err
}

// Command sends one monitor command line and waits for the next prompt.
func (m *Monitor) Command(ctx context.Context, line string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = m.timeout
	}
	if err := m.write([]byte(line + "\r")); err != nil {
		return err
	}
	return m.WaitForPrompt(ctx, Prompt, timeout)
}

// Reset starts the 6502. The monitor echoes one line and gives up the
// console, so no prompt is expected.
func (m *Monitor) Reset(ctx context.Context) error {
	if err := m.write([]byte("RESET\r")); err != nil {
		return err
	}
	_, err := m.readLine(ctx, time.Now().Add(m.timeout))
	if errors.Is(err, ErrTimeout) {
		return nil
	}
	return err
}

// Binary writes data to RAM at addr.
func (m *Monitor) Binary(ctx context.Context, addr int, data []byte) error {
	ctx, span := trace.Start(ctx, trace.ScopeTool, "binary")
	span.WithExtra("addr", fmt.Sprintf("$%04X", addr))
	var buf bytes.Buffer
	buf.WriteString("BINARY " + rom.ChunkHeader(addr, data) + "\r")
	buf.Write(data)
	err := m.write(buf.Bytes())
	if err == nil {
		err = m.WaitForPrompt(ctx, Prompt, m.timeout)
	}
	span.End(errDetail(err))
	return err
}

// SendROM writes every chunk of r to RAM in address order.
func (m *Monitor) SendROM(ctx context.Context, r *rom.ROM) error {
	ctx, span := trace.Start(ctx, trace.ScopeStage, "send-rom")
	var err error
	sent := 0
	for c, ok := r.NextChunk(0); ok; c, ok = r.NextChunk(c.Addr + len(c.Data)) {
		if err = m.Binary(ctx, c.Addr, c.Data); err != nil {
			err = fmt.Errorf("block $%04X: %w", c.Addr, err)
			break
		}
		sent += len(c.Data)
	}
	span.WithExtra("bytes", fmt.Sprint(sent))
	span.End(errDetail(err))
	return err
}

// Upload copies src to the file name on the RIA's USB drive.
func (m *Monitor) Upload(ctx context.Context, src io.Reader, name string) error {
	ctx, span := trace.Start(ctx, trace.ScopeStage, "upload")
	span.WithExtra("name", name)
	err := m.upload(ctx, src, name)
	span.End(errDetail(err))
	return err
}

func (m *Monitor) upload(ctx context.Context, src io.Reader, name string) error {
	if err := m.write([]byte("UPLOAD " + name + "\r")); err != nil {
		return err
	}
	if err := m.WaitForPrompt(ctx, UploadPrompt, m.timeout); err != nil {
		return err
	}
	chunk := make([]byte, UploadChunk)
	for {
		n, readErr := io.ReadFull(src, chunk)
		if n > 0 {
			header := fmt.Sprintf("$%03X $%08X\r", n, crc32.ChecksumIEEE(chunk[:n]))
			if err := m.write(append([]byte(header), chunk[:n]...)); err != nil {
				return err
			}
			if err := m.WaitForPrompt(ctx, UploadPrompt, m.timeout); err != nil {
				return err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	if err := m.write([]byte("END\r")); err != nil {
		return err
	}
	return m.WaitForPrompt(ctx, Prompt, m.timeout)
}

// UploadFile uploads the local file path as name.
func (m *Monitor) UploadFile(ctx context.Context, path, name string) error {
	// #nosec G304 -- the user names the files to upload
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Upload(ctx, f, name)
}

// WaitForPrompt reads until prompt arrives. One-character prompts are matched
// byte by byte, longer ones line by line. A line starting with "?" is
// returned as *RemoteError. The timeout runs from the call.
func (m *Monitor) WaitForPrompt(ctx context.Context, prompt string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = m.timeout
	}
	deadline := time.Now().Add(timeout)
	if len(prompt) != 1 {
		for {
			line, err := m.readLine(ctx, deadline)
			if err != nil {
				return err
			}
			if strings.HasPrefix(line, "?") {
				return &RemoteError{Message: strings.TrimSpace(line)}
			}
			if strings.TrimRight(line, "\r\n") == prompt {
				return nil
			}
		}
	}
	for {
		b, err := m.readByte(ctx, deadline)
		if err != nil {
			return err
		}
		switch b {
		case '?':
			rest, err := m.readLine(ctx, time.Now().Add(m.timeout))
			if err != nil && !errors.Is(err, ErrTimeout) {
				return err
			}
			return &RemoteError{Message: strings.TrimSpace("?" + rest)}
		case prompt[0]:
			return nil
		}
	}
}

// readByte returns the next byte, retrying idle reads until deadline.
func (m *Monitor) readByte(ctx context.Context, deadline time.Time) (byte, error) {
	var b [1]byte
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := m.port.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil && !isIdle(err) {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
	}
}

// readLine reads through the next '\n'. On timeout the partial line is
// returned with ErrTimeout.
func (m *Monitor) readLine(ctx context.Context, deadline time.Time) (string, error) {
	var sb strings.Builder
	for {
		b, err := m.readByte(ctx, deadline)
		if err != nil {
			return sb.String(), err
		}
		sb.WriteByte(b)
		if b == '\n' {
			return sb.String(), nil
		}
	}
}

func (m *Monitor) write(p []byte) error {
	for len(p) > 0 {
		n, err := m.port.Write(p)
		if err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("serial write: %w", io.ErrShortWrite)
		}
		p = p[n:]
	}
	return nil
}

func isIdle(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF)
}

func errDetail(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
