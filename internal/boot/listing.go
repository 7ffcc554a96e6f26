package boot

import (
	"fmt"
	"strings"

	. "github.com/retroenv/retrogolib/nes/addressing"
	"github.com/retroenv/retrogolib/nes/cpu"
)

// Line is one row of a listing.
type Line struct {
	Addr  int
	Bytes []byte
	Text  string
}

func (l Line) String() string {
	hex := make([]string, len(l.Bytes))
	for i, b := range l.Bytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("$%04X  %-9s %s", l.Addr, strings.Join(hex, " "), l.Text)
}

var operandSize = map[Mode]int{
	ImpliedAddressing:     0,
	AccumulatorAddressing: 0,
	ImmediateAddressing:   1,
	ZeroPageAddressing:    1,
	ZeroPageXAddressing:   1,
	ZeroPageYAddressing:   1,
	RelativeAddressing:    1,
	IndirectXAddressing:   1,
	IndirectYAddressing:   1,
	AbsoluteAddressing:    2,
	AbsoluteXAddressing:   2,
	AbsoluteYAddressing:   2,
	IndirectAddressing:    2,
}

// Listing disassembles the code part of p and shows the message as data.
func (p *Program) Listing() ([]Line, error) {
	lines := Disassemble(p.Origin, p.Code[:p.CodeSize])
	for _, l := range lines {
		if strings.HasPrefix(l.Text, ".byte") {
			return nil, fmt.Errorf("undecodable byte at $%04X", l.Addr)
		}
	}
	lines = append(lines, Line{
		Addr: p.Origin + p.CodeSize,
		Text: ".byte " + byteDirective(p.Message),
	})
	return lines, nil
}

// Disassemble decodes code loaded at origin. Unknown opcodes and truncated
// instructions become .byte lines.
func Disassemble(origin int, code []byte) []Line {
	var lines []Line
	for pc := 0; pc < len(code); {
		addr := origin + pc
		op := cpu.Opcodes[code[pc]]
		size, known := operandSize[op.Addressing]
		if op.Instruction == nil || !known || pc+1+size > len(code) {
			lines = append(lines, Line{Addr: addr, Bytes: code[pc : pc+1], Text: fmt.Sprintf(".byte $%02X", code[pc])})
			pc++
			continue
		}
		raw := code[pc : pc+1+size]
		lines = append(lines, Line{
			Addr:  addr,
			Bytes: raw,
			Text:  formatInstruction(strings.ToUpper(op.Instruction.Name), op.Addressing, raw[1:], addr),
		})
		pc += 1 + size
	}
	return lines
}

func formatInstruction(name string, mode Mode, operand []byte, addr int) string {
	word := 0
	if len(operand) == 2 {
		word = int(operand[0]) | int(operand[1])<<8
	}
	switch mode {
	case ImpliedAddressing:
		return name
	case AccumulatorAddressing:
		return name + " A"
	case ImmediateAddressing:
		return fmt.Sprintf("%s #$%02X", name, operand[0])
	case ZeroPageAddressing:
		return fmt.Sprintf("%s $%02X", name, operand[0])
	case ZeroPageXAddressing:
		return fmt.Sprintf("%s $%02X,X", name, operand[0])
	case ZeroPageYAddressing:
		return fmt.Sprintf("%s $%02X,Y", name, operand[0])
	case RelativeAddressing:
		return fmt.Sprintf("%s $%04X", name, addr+2+int(int8(operand[0])))
	case IndirectXAddressing:
		return fmt.Sprintf("%s ($%02X,X)", name, operand[0])
	case IndirectYAddressing:
		return fmt.Sprintf("%s ($%02X),Y", name, operand[0])
	case AbsoluteAddressing:
		return fmt.Sprintf("%s $%04X", name, word)
	case AbsoluteXAddressing:
		return fmt.Sprintf("%s $%04X,X", name, word)
	case AbsoluteYAddressing:
		return fmt.Sprintf("%s $%04X,Y", name, word)
	case IndirectAddressing:
		return fmt.Sprintf("%s ($%04X)", name, word)
	}
	return name
}
