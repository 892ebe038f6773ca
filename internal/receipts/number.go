package receipts

import (
	"fmt"
	"strconv"
	"strings"
)

const sequenceDigits = 6

// Prefix is the part of a receipt number shared by one seller within one year.
func Prefix(shortcut string, year int) string {
	return fmt.Sprintf("%d.%s.", year, shortcut)
}

// NextNumber returns the number after latest, or the first number of the year when latest
// is empty or belongs to another prefix. Numbers look like 2025.PC.000042.
func NextNumber(latest, shortcut string, year int) (string, error) {
	prefix := Prefix(shortcut, year)
	seq := 0
	if latest != "" && strings.HasPrefix(latest, prefix) {
		n, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed receipt number %q: %w", latest, err)
		}
		seq = n
	}
	return fmt.Sprintf("%s%0*d", prefix, sequenceDigits, seq+1), nil
}
