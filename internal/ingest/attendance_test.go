package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/ingest"
)

func TestReadAttendance(t *testing.T) {
	attendance, err := ingest.ReadAttendance(strings.NewReader(`
Kathryn Grayson Nanz: 210
Matt Eland: 157
Matthew-Hope Eland: 157
`))
	require.NoError(t, err)
	assert.Len(t, attendance, 3)

	draw := attendance.DrawOf([]string{"Unknown", "matt  eland", "KATHRYN GRAYSON NANZ"})
	require.NotNil(t, draw)
	assert.Equal(t, 210.0, *draw)

	assert.Nil(t, attendance.DrawOf([]string{"Nobody"}))
	assert.Nil(t, attendance.DrawOf(nil))
}

func TestReadAttendanceEmpty(t *testing.T) {
	attendance, err := ingest.ReadAttendance(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, attendance)
}

func TestReadAttendanceErrors(t *testing.T) {
	for name, input := range map[string]string{
		"negative":   "A: -1\n",
		"not a map":  "- A\n- B\n",
		"conflict":   "Guy Royse: 1\nguy royse: 2\n",
		"not number": "A: many\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ingest.ReadAttendance(strings.NewReader(input))
			assert.ErrorIs(t, err, domain.ErrMalformedInput)
		})
	}
}
