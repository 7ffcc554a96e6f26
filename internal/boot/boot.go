// Package boot builds the smallest useful RP6502 program: a routine that
// prints a message on the RIA console and exits back to the monitor. It is
// used by "rp6502 hello" to check a board without a cc65 installation and by
// "rp6502 init --asm" as a starting point.
package boot

import (
	"errors"
	"fmt"

	"rp6502/internal/rom"
)

// RIA registers used by the stub.
const (
	RIAReady = 0xFFE0 // bit 7 set when TX can accept a byte
	RIATx    = 0xFFE1
	RIAOp    = 0xFFEF
	OpExit   = 0xFF

	// DefaultOrigin is the conventional load address of RP6502 programs.
	DefaultOrigin = 0x0200
	// MaxMessage is bounded by the 8-bit index register.
	MaxMessage = 255
)

// 6502 opcodes emitted by Assemble.
const (
	opLDXImm = 0xA2
	opTXS    = 0x9A
	opCLD    = 0xD8
	opLDAAbX = 0xBD
	opBEQ    = 0xF0
	opBITAbs = 0x2C
	opBPL    = 0x10
	opSTAAbs = 0x8D
	opINX    = 0xE8
	opBNE    = 0xD0
	opLDAImm = 0xA9
	opJMPAbs = 0x4C
)

// Program is an assembled stub.
type Program struct {
	Origin  int
	Code    []byte
	Message string
	// CodeSize is where the message bytes start within Code.
	CodeSize int
}

// Assemble lays out the stub at origin followed by the NUL-terminated message.
func Assemble(origin int, message string) (*Program, error) {
	if err := checkMessage(message); err != nil {
		return nil, err
	}
	a := &asm{origin: origin}
	a.emit(opLDXImm, 0xFF)
	a.emit(opTXS)
	a.emit(opCLD)
	a.emit(opLDXImm, 0x00)
	loop := a.pc()
	msgRef := a.emitAbs(opLDAAbX, 0)
	done := a.branch(opBEQ)
	wait := a.pc()
	a.emitAbs(opBITAbs, RIAReady)
	a.branchTo(opBPL, wait)
	a.emitAbs(opSTAAbs, RIATx)
	a.emit(opINX)
	a.branchTo(opBNE, loop)
	a.land(done)
	a.emit(opLDAImm, OpExit)
	a.emitAbs(opSTAAbs, RIAOp)
	end := a.pc()
	a.emitAbs(opJMPAbs, end)
	codeSize := len(a.code)
	a.patchAbs(msgRef, origin+codeSize)
	a.code = append(a.code, message...)
	a.code = append(a.code, 0)
	if a.err != nil {
		return nil, a.err
	}
	if origin < 0 || origin+len(a.code) > RIAReady {
		return nil, fmt.Errorf("program at $%04X does not fit below the RIA registers", origin)
	}
	return &Program{Origin: origin, Code: a.code, Message: message, CodeSize: codeSize}, nil
}

func checkMessage(message string) error {
	if len(message) > MaxMessage {
		return fmt.Errorf("message too long (%d > %d bytes)", len(message), MaxMessage)
	}
	for i := 0; i < len(message); i++ {
		c := message[i]
		if c == 0 || c > 0x7E {
			return fmt.Errorf("message byte %d (0x%02X) is not printable ASCII", i, c)
		}
	}
	return nil
}

// ROM packages p with its reset vector and help text.
func (p *Program) ROM(help ...string) (*rom.ROM, error) {
	r := rom.New()
	for _, line := range help {
		if err := r.AddHelp(line); err != nil {
			return nil, err
		}
	}
	err := r.AddBinary(p.Code, rom.Addresses{Data: rom.At(p.Origin), Reset: rom.At(p.Origin)})
	if err != nil {
		return nil, err
	}
	return r, nil
}

type asm struct {
	origin int
	code   []byte
	err    error
}

func (a *asm) pc() int { return a.origin + len(a.code) }

func (a *asm) emit(b ...byte) { a.code = append(a.code, b...) }

// emitAbs emits an absolute-mode instruction and returns the operand offset.
func (a *asm) emitAbs(op byte, addr int) int {
	a.emit(op, byte(addr), byte(addr>>8))
	return len(a.code) - 2
}

func (a *asm) patchAbs(at, addr int) {
	a.code[at] = byte(addr)
	a.code[at+1] = byte(addr >> 8)
}

// branch emits a forward branch to be resolved by land.
func (a *asm) branch(op byte) int {
	a.emit(op, 0)
	return len(a.code) - 1
}

func (a *asm) land(at int) {
	a.setOffset(at, a.pc())
}

func (a *asm) branchTo(op byte, target int) {
	at := a.branch(op)
	a.setOffset(at, target)
}

func (a *asm) setOffset(at, target int) {
	next := a.origin + at + 1
	delta := target - next
	if delta < -128 || delta > 127 {
		a.err = errors.Join(a.err, fmt.Errorf("branch at $%04X out of range", next-2))
		return
	}
	a.code[at] = byte(int8(delta))
}
