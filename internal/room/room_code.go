package room

import "math/rand/v2"

const (
	codeLength = 4
	maxRetries = 100
)

// I and O are left out so codes read unambiguously when spoken or typed.
var letters = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ")

// GenerateCode returns a random 4-letter room code for which taken reports false.
// After maxRetries collisions it gives up and returns the last candidate; with
// 24^4 = 331,776 codes that only happens when the server is nearly full.
func GenerateCode(taken func(code string) bool) string {
	code := randomCode()
	for i := 0; i < maxRetries && taken(code); i++ {
		code = randomCode()
	}
	return code
}

func randomCode() string {
	b := make([]rune, codeLength)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}
