// Package rom models RP6502 ROM images: a sparse 128 KiB address space
// (64 KiB of 6502 RAM plus 64 KiB of extended RAM), optional help text shown
// by the monitor, and the "#!RP6502" file format that carries both.
package rom

import (
	"errors"
	"fmt"
	"os"

	"fortio.org/safecast"
)

const (
	// Size is the addressable ROM space.
	Size = 0x20000
	// BankSize is where 6502 RAM ends and extended RAM begins; chunks never straddle it.
	BankSize = 0x10000
	// MaxChunk is the largest block in a ROM file or BINARY transfer.
	MaxChunk = 1024
	// MaxHelpLines and MaxHelpWidth bound the help text to one screen.
	MaxHelpLines = 24
	MaxHelpWidth = 80
)

// Vector is the address of a 6502 CPU vector.
type Vector int

const (
	NMIVector   Vector = 0xFFFA
	ResetVector Vector = 0xFFFC
	IRQVector   Vector = 0xFFFE
)

func (v Vector) String() string {
	switch v {
	case NMIVector:
		return "NMI"
	case ResetVector:
		return "reset"
	case IRQVector:
		return "IRQ"
	}
	return fmt.Sprintf("$%04X", int(v))
}

var (
	// ErrRange reports an allocation outside the ROM space or across the bank boundary.
	ErrRange = errors.New("invalid address or length")
	// ErrOverlap reports data written twice to the same address.
	ErrOverlap = errors.New("data already exists")
)

// ROM is an in-memory ROM image.
type ROM struct {
	help  []string
	data  []byte
	alloc []bool
}

// New returns an empty ROM.
func New() *ROM {
	return &ROM{
		data:  make([]byte, Size),
		alloc: make([]bool, Size),
	}
}

// Help returns the help lines in order.
func (r *ROM) Help() []string {
	return append([]string(nil), r.help...)
}

// AddHelp appends one help line.
func (r *ROM) AddHelp(line string) error {
	if len(line) > MaxHelpWidth {
		return fmt.Errorf("help line too long (%d > %d)", len(line), MaxHelpWidth)
	}
	if len(r.help) >= MaxHelpLines {
		return fmt.Errorf("help lines > %d", MaxHelpLines)
	}
	r.help = append(r.help, line)
	return nil
}

// Allocate marks [addr, addr+length) as used.
func (r *ROM) Allocate(addr, length int) error {
	// Compare against the space left so huge lengths from a corrupt file
	// cannot wrap around.
	if addr < 0 || length < 0 || addr >= Size || length > Size-addr ||
		(addr < BankSize && length > BankSize-addr) {
		return fmt.Errorf("RP6502 %w: address $%04X, length $%03X", ErrRange, addr, length)
	}
	for i := 0; i < length; i++ {
		if r.alloc[addr+i] {
			return fmt.Errorf("RP6502 ROM %w at $%04X", ErrOverlap, addr+i)
		}
	}
	for i := 0; i < length; i++ {
		r.alloc[addr+i] = true
	}
	return nil
}

// Allocated reports whether addr holds data.
func (r *ROM) Allocated(addr int) bool {
	return addr >= 0 && addr < Size && r.alloc[addr]
}

// At returns the byte stored at addr.
func (r *ROM) At(addr int) byte {
	if addr < 0 || addr >= Size {
		return 0
	}
	return r.data[addr]
}

// AddData copies data to addr.
func (r *ROM) AddData(addr int, data []byte) error {
	if err := r.Allocate(addr, len(data)); err != nil {
		return err
	}
	copy(r.data[addr:], data)
	return nil
}

// SetVector stores a 16-bit CPU vector.
func (r *ROM) SetVector(v Vector, addr int) error {
	target, err := safecast.Conv[uint16](addr)
	if err != nil {
		return fmt.Errorf("invalid %s vector: $%04X", v, addr)
	}
	return r.AddData(int(v), []byte{byte(target), byte(target >> 8)})
}

// HasResetVector reports whether both bytes of the reset vector are present.
func (r *ROM) HasResetVector() bool {
	return r.alloc[ResetVector] && r.alloc[ResetVector+1]
}

// Addresses selects where a binary is loaded and which vectors it provides.
type Addresses struct {
	Data  Address
	NMI   Address
	Reset Address
	IRQ   Address
}

// AddBinary loads a raw binary. Addresses marked FromFile are consumed from
// the front of data, two bytes each, in the order data, NMI, reset, IRQ.
func (r *ROM) AddBinary(data []byte, addrs Addresses) error {
	if addrs.Data.IsZero() {
		return errors.New("address for data is required")
	}
	take := func(a Address, what string) (Address, error) {
		if !a.FromFile {
			return a, nil
		}
		if len(data) < 2 {
			return a, fmt.Errorf("no %s address found in file", what)
		}
		v := int(data[0]) | int(data[1])<<8
		data = data[2:]
		return At(v), nil
	}

	var err error
	if addrs.Data, err = take(addrs.Data, "data"); err != nil {
		return err
	}
	vectors := []struct {
		addr   *Address
		vector Vector
		what   string
	}{
		{&addrs.NMI, NMIVector, "nmi"},
		{&addrs.Reset, ResetVector, "reset"},
		{&addrs.IRQ, IRQVector, "irq"},
	}
	for _, vec := range vectors {
		if *vec.addr, err = take(*vec.addr, vec.what); err != nil {
			return err
		}
		if vec.addr.Set {
			if err := r.SetVector(vec.vector, vec.addr.Value); err != nil {
				return err
			}
		}
	}
	return r.AddData(addrs.Data.Value, data)
}

// AddBinaryFile loads a raw binary file, see AddBinary.
func (r *ROM) AddBinaryFile(path string, addrs Addresses) error {
	// #nosec G304 -- the user names the file to package
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := r.AddBinary(data, addrs); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Chunk is a contiguous run of allocated bytes.
type Chunk struct {
	Addr int
	Data []byte
}

// NextChunk finds the first allocated run at or after addr. Runs are cut at
// MaxChunk bytes and at the bank boundary. ok is false when nothing is left.
func (r *ROM) NextChunk(addr int) (chunk Chunk, ok bool) {
	for ; addr >= 0 && addr < Size; addr++ {
		if !r.alloc[addr] {
			continue
		}
		length := 0
		for addr+length < Size && r.alloc[addr+length] {
			length++
			if length == MaxChunk || addr+length == BankSize {
				break
			}
		}
		data := make([]byte, length)
		copy(data, r.data[addr:addr+length])
		return Chunk{Addr: addr, Data: data}, true
	}
	return Chunk{}, false
}

// Chunks returns every chunk in address order.
func (r *ROM) Chunks() []Chunk {
	var out []Chunk
	for c, ok := r.NextChunk(0); ok; c, ok = r.NextChunk(c.Addr + len(c.Data)) {
		out = append(out, c)
	}
	return out
}
