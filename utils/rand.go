package utils

import "math/rand"

const randChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandString returns n random lowercase alphanumeric characters. Used for
// default player names; not cryptographic.
func RandString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randChars[rand.Intn(len(randChars))]
	}
	return string(b)
}
