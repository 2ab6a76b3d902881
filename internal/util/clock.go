package util

import "time"

// Now é o relógio do processo, substituível em testes determinísticos.
var Now = func() time.Time {
	return time.Now().UTC()
}
