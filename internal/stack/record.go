package stack

import (
	"runtime"
	"strconv"
	"strings"
)

type call struct {
	function uintptr
	file     string
	line     int
}

func Call(depth int) (c call) {
	c.function, c.file, c.line, _ = runtime.Caller(depth + 1)

	return c
}

func (c call) name() string {
	return strings.ReplaceAll(runtime.FuncForPC(c.function).Name(), "[...]", "")
}

// Record returns the function name with file:line suffix, e.g.
// "github.com/keyspandb/keyspan-go-sdk/internal/pool.(*Pool).Get(pool.go:42)".
func (c call) Record() string {
	file := c.file
	if i := strings.LastIndexByte(file, '/'); i > -1 {
		file = file[i+1:]
	}

	var b strings.Builder
	b.WriteString(c.name())
	b.WriteByte('(')
	b.WriteString(file)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(c.line))
	b.WriteByte(')')

	return b.String()
}

func Record(depth int) string {
	return Call(depth + 1).Record()
}
