package boot

import (
	"fmt"
	"strings"
)

// Source returns ca65 source that assembles to the same bytes as Assemble.
func Source(origin int, message string) (string, error) {
	if err := checkMessage(message); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("; Prints a message on the RIA console and returns to the monitor.\n\n")
	writeRegisters(&b)
	fmt.Fprintf(&b, "\n.org $%04X\n\n", origin)
	b.WriteString(`start:
	ldx #$FF
	txs
	cld
	ldx #0
loop:
	lda msg,x
	beq done
wait:
	bit RIA_READY
	bpl wait
	sta RIA_TX
	inx
	bne loop
done:
	lda #RIA_OP_EXIT
	sta RIA_OP
end:
	jmp end

msg:
`)
	fmt.Fprintf(&b, "\t.byte %s\n", byteDirective(message))
	return b.String(), nil
}

// MainSource returns a ca65 "_main" for projects linked against the rp6502
// runtime, which sets up the stack and calls exit on return.
func MainSource(message string) (string, error) {
	if err := checkMessage(message); err != nil {
		return "", err
	}
	var b strings.Builder
	writeRegisters(&b)
	b.WriteString(`
.export _main

.segment "CODE"

_main:
	ldx #0
@loop:
	lda msg,x
	beq @done
@wait:
	bit RIA_READY
	bpl @wait
	sta RIA_TX
	inx
	bne @loop
@done:
	lda #0
	tax
	rts

.segment "RODATA"

msg:
`)
	fmt.Fprintf(&b, "\t.byte %s\n", byteDirective(message))
	return b.String(), nil
}

// CSource returns a C hello world for the rp6502 cc65 target.
func CSource(message string) string {
	return "#include <stdio.h>\n\nint main(void)\n{\n\tputs(\"" + cString(message) + "\");\n\treturn 0;\n}\n"
}

func writeRegisters(b *strings.Builder) {
	fmt.Fprintf(b, "RIA_READY   = $%04X\n", RIAReady)
	fmt.Fprintf(b, "RIA_TX      = $%04X\n", RIATx)
	fmt.Fprintf(b, "RIA_OP      = $%04X\n", RIAOp)
	fmt.Fprintf(b, "RIA_OP_EXIT = $%02X\n", OpExit)
}

// byteDirective renders message as ca65 .byte operands ending in 0.
func byteDirective(message string) string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, `"`+run.String()+`"`)
			run.Reset()
		}
	}
	for i := 0; i < len(message); i++ {
		c := message[i]
		if c >= 0x20 && c != '"' && c < 0x7F {
			run.WriteByte(c)
			continue
		}
		flush()
		parts = append(parts, fmt.Sprintf("$%02X", c))
	}
	flush()
	parts = append(parts, "0")
	return strings.Join(parts, ", ")
}

func cString(message string) string {
	var b strings.Builder
	for i := 0; i < len(message); i++ {
		switch c := message[i]; {
		case c == '\\' || c == '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
