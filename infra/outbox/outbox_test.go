package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestAppendGet(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(1, []byte(`{"seq":1}`)))

	rec, err := o.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.Zero(t, rec.Retries)
	assert.Equal(t, []byte(`{"seq":1}`), rec.Payload)
}

func TestStateTransitions(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(7, []byte("x")))
	require.NoError(t, o.UpdateState(7, StateSent, 1))

	rec, err := o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateSent, rec.State)
	assert.EqualValues(t, 1, rec.Retries)
	assert.NotZero(t, rec.LastAttempt)
	assert.Equal(t, []byte("x"), rec.Payload, "payload survives state updates")

	require.NoError(t, o.UpdateState(7, StateAcked, 1))
	rec, err = o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateAcked, rec.State)
}

func TestScanByStateOrderAndFilter(t *testing.T) {
	o := openTestOutbox(t)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, o.Append(seq, []byte{byte(seq)}))
	}
	require.NoError(t, o.UpdateState(2, StateAcked, 1))
	require.NoError(t, o.UpdateState(4, StateAcked, 1))

	var seen []uint64
	err := o.ScanByState(StateNew, func(seq uint64, rec Record) error {
		seen = append(seen, seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 5}, seen)
}

func TestDelete(t *testing.T) {
	o := openTestOutbox(t)

	require.NoError(t, o.Append(1, []byte("x")))
	require.NoError(t, o.Delete(1))

	_, err := o.Get(1)
	assert.Error(t, err)
}

func TestLastSeq(t *testing.T) {
	o := openTestOutbox(t)

	last, err := o.LastSeq()
	require.NoError(t, err)
	assert.Zero(t, last, "empty ledger")

	for _, seq := range []uint64{3, 1, 12, 7} {
		require.NoError(t, o.Append(seq, []byte("x")))
	}
	last, err = o.LastSeq()
	require.NoError(t, err)
	assert.EqualValues(t, 12, last)
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := decodeRecord([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
