package channel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumberFormat selects how numeric arguments are written on the wire.
// One format must be used consistently for a given controller firmware.
type NumberFormat int

const (
	// FormatInteger rounds half away from zero to whole numbers.
	FormatInteger NumberFormat = iota
	// FormatFixed2 writes two decimals.
	FormatFixed2
)

// ParseNumberFormat maps a config value to a NumberFormat.
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch strings.ToLower(s) {
	case "", "integer", "int":
		return FormatInteger, nil
	case "fixed2":
		return FormatFixed2, nil
	default:
		return FormatInteger, fmt.Errorf("unknown number format %q (want integer or fixed2)", s)
	}
}

func (f NumberFormat) String() string {
	if f == FormatFixed2 {
		return "fixed2"
	}
	return "integer"
}

// Quantize rounds v the way Format writes it.
func (f NumberFormat) Quantize(v float64) float64 {
	var r float64
	switch f {
	case FormatFixed2:
		r = math.Round(v*100) / 100
	default:
		r = math.Round(v)
	}
	if r == 0 {
		r = 0 // drop the sign of negative zero
	}
	return r
}

// Format writes v with the selected format.
func (f NumberFormat) Format(v float64) string {
	q := f.Quantize(v)
	if f == FormatFixed2 {
		return strconv.FormatFloat(q, 'f', 2, 64)
	}
	return strconv.FormatFloat(q, 'f', 0, 64)
}

// Command verbs understood by the controller firmware.
const (
	VerbPower = "POW"
	VerbRate  = "RATE"
	VerbPos   = "POS"

	// OPCSuffix requests an inline operation complete acknowledgement.
	OPCSuffix = ";*OPC?"
)

// AxisName returns the addressing prefix of an axis.
func AxisName(id int) string {
	return "AX" + strconv.Itoa(id)
}

func PowerOn(id int) string    { return AxisName(id) + ":" + VerbPower + " ON" }
func PowerQuery(id int) string { return AxisName(id) + ":" + VerbPower + "?" }
func PosQuery(id int) string   { return AxisName(id) + ":" + VerbPos + "?" }

// Rate builds the rotation rate command in degrees per second.
func Rate(id int, rate float64, f NumberFormat) string {
	return AxisName(id) + ":" + VerbRate + " " + f.Format(rate)
}

// Pos builds the relative angle command in degrees.
func Pos(id int, angle float64, f NumberFormat) string {
	return AxisName(id) + ":" + VerbPos + " " + f.Format(angle)
}

// WithOPC appends the operation complete query to cmd.
func WithOPC(cmd string) string {
	return cmd + OPCSuffix
}

// Command is a decoded command line.
type Command struct {
	Axis  int
	Verb  string
	Arg   string // argument after the verb, empty for queries
	Query bool   // verb is followed by '?'
	OPC   bool   // ;*OPC? suffix present
}

// ParseCommand decodes a line produced by the builders of this package.
func ParseCommand(line string) (Command, error) {
	var c Command
	if strings.HasSuffix(line, OPCSuffix) {
		c.OPC = true
		line = strings.TrimSuffix(line, OPCSuffix)
	}
	name, rest, ok := strings.Cut(line, ":")
	if !ok || !strings.HasPrefix(name, "AX") {
		return c, fmt.Errorf("malformed command %q", line)
	}
	id, err := strconv.Atoi(name[2:])
	if err != nil {
		return c, fmt.Errorf("malformed axis in %q: %w", line, err)
	}
	c.Axis = id

	if verb, ok := strings.CutSuffix(rest, "?"); ok {
		c.Verb = verb
		c.Query = true
	} else {
		verb, arg, _ := strings.Cut(rest, " ")
		c.Verb = verb
		c.Arg = strings.TrimSpace(arg)
	}
	switch c.Verb {
	case VerbPower, VerbRate, VerbPos:
	default:
		return c, fmt.Errorf("unknown verb %q in %q", c.Verb, line)
	}
	return c, nil
}

// ParseNumber decodes a numeric response such as "123" or "-4.50".
func ParseNumber(resp string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non finite number %q", resp)
	}
	return v, nil
}
