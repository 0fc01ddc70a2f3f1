package poll

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCustomOptions(t *testing.T) {
	opts := ParseCustomOptions("  Anna \n\n Bernat\n   \nCarla")

	require.Len(t, opts, 3)
	assert.Equal(t, "Anna", opts[0].Name)
	assert.Equal(t, "Bernat", opts[1].Name)
	assert.Equal(t, "Carla", opts[2].Name)
	assert.Contains(t, opts[1].ID, "_1_")
	assert.NotEqual(t, opts[0].ID, opts[1].ID)

	assert.Empty(t, ParseCustomOptions("\n \n"))
}

func TestValidateCustomOptions(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{name: "valid", text: "Anna\nBernat", want: nil},
		{name: "single option", text: "Anna\n\n", want: ErrTooFewOptions},
		{name: "empty", text: "", want: ErrTooFewOptions},
		{name: "too many", text: manyNames(51), want: ErrTooManyOptions},
		{name: "exactly fifty", text: manyNames(50), want: nil},
		{name: "case insensitive duplicate", text: "Anna\nbernat\nANNA", want: ErrDuplicateOption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCustomOptions(tc.text)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestPredefinedLists(t *testing.T) {
	all, err := PredefinedLists()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	l, ok := FindPredefinedList("default")
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(l.Options), 2)

	_, ok = FindPredefinedList("nope")
	assert.False(t, ok)
}

func TestIDs(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^poll_\d+_[0-9a-z]{7}$`), NewPollID())
	assert.Regexp(t, regexp.MustCompile(`^voter_\d+_[0-9a-z]{7}$`), NewVoterID())
	assert.Regexp(t, regexp.MustCompile(`^option_\d+_4_[0-9a-z]{7}$`), NewOptionID(4))
	assert.Regexp(t, regexp.MustCompile(`^option_\d+_[0-9a-z]{7}$`), NewOptionID(-1))
}

func manyNames(n int) string {
	names := make([]string, n)
	for i := range names {
		names[i] = "artist " + strings.Repeat("x", i+1)
	}
	return strings.Join(names, "\n")
}
