package app

import "math/rand"

// roomCodeAlphabet avoids characters players confuse when typing a code off
// a projector: no 0/O, 1/I/L.
const roomCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const roomCodeLength = 6

func newRoomCode(rnd *rand.Rand) string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rnd.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}
