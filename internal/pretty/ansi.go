// ANSI escape codes
package pretty

var colorEnabled = true

// SetColorEnabled controls whether ANSI color codes are output
func SetColorEnabled(enabled bool) {
	colorEnabled = enabled
}

const resetCode string = "\x1b[0m"
const greenCode string = "\x1b[32m"
const dimCode string = "\x1b[2m"

func code(c string) string {
	if colorEnabled {
		return c
	}
	return ""
}

func Reset() string {
	return code(resetCode)
}

func Green() string {
	return code(greenCode)
}

func Dim() string {
	return code(dimCode)
}
