package poll

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// now is swapped in tests.
var now = time.Now

func randomSuffix() string {
	b := make([]byte, 7)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}

func millis() string {
	return strconv.FormatInt(now().UnixMilli(), 10)
}

// NewPollID returns poll_<unixMillis>_<7 base36 chars>.
func NewPollID() string {
	return "poll_" + millis() + "_" + randomSuffix()
}

// NewVoterID returns voter_<unixMillis>_<7 base36 chars>.
func NewVoterID() string {
	return "voter_" + millis() + "_" + randomSuffix()
}

// NewOptionID returns option_<unixMillis>_<index>_<7 base36 chars>, or without
// the index part when index is negative.
func NewOptionID(index int) string {
	id := "option_" + millis()
	if index >= 0 {
		id += "_" + strconv.Itoa(index)
	}
	return id + "_" + randomSuffix()
}
