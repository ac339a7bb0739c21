package diag

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_WarnCeiling(t *testing.T) {
	t.Parallel()

	log, hook := test.NewNullLogger()
	tr := NewTracker(log, 2, 0)

	for i := 0; i < 5; i++ {
		tr.Warn("pad", "a.fq", i+1, "padded quality")
	}
	tr.Warn("other", "", 0, "something else")

	assert.Equal(t, 5, tr.Count("pad"))
	assert.Len(t, hook.AllEntries(), 3)

	hook.Reset()
	tr.Summary()
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, 5, hook.LastEntry().Data["total"])
}

func TestTracker_CorruptionStart(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil, 0, 3)
	tr.Observe("a.fq", 7, "garbage")
	tr.Observe("a.fq", 9, "noise")
	tr.Observe("a.fq", 11, "garbage")
	_, ok := tr.CorruptionStart("a.fq")
	assert.False(t, ok)

	tr.Observe("a.fq", 13, "garbage")
	start, ok := tr.CorruptionStart("a.fq")
	require.True(t, ok)
	assert.Equal(t, 7, start)

	_, ok = tr.CorruptionStart("b.fq")
	assert.False(t, ok)

	fe := tr.Corrupt("a.fq", 20, ErrTooManyDiscards, "limit %d", 3)
	assert.Equal(t, "a.fq:20: too many discarded lines: limit 3 (corruption starting at line 7)", fe.Error())
	assert.True(t, errors.Is(fe, ErrTooManyDiscards))

	tr.Reset("a.fq")
	_, ok = tr.CorruptionStart("a.fq")
	assert.False(t, ok)
}

func TestTracker_CorruptionStartPerFile(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil, 0, 25)
	tr.Observe("a.fq", 7, "junk")
	for i := 0; i < 30; i++ {
		tr.Observe("b.fq", 40+i, "junk")
	}

	start, ok := tr.CorruptionStart("b.fq")
	require.True(t, ok)
	assert.Equal(t, 40, start)

	_, ok = tr.CorruptionStart("a.fq")
	assert.False(t, ok)

	tr.Reset("b.fq")
	_, ok = tr.CorruptionStart("b.fq")
	assert.False(t, ok)
	tr.Observe("a.fq", 8, "junk")
	_, ok = tr.CorruptionStart("a.fq")
	assert.False(t, ok)
}

func TestFatalError_Format(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x.fq: invalid configuration", Fatalf("x.fq", 0, ErrConfig, "").Error())
	assert.Equal(t, "invalid configuration: bad", Fatalf("", 0, ErrConfig, "bad").Error())

	var fe *FatalError
	err := error(Fatalf("y.fq", 3, ErrMateEOF, "mate %s", "y2.fq"))
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Line)
}
