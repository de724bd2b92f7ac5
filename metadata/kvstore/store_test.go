package kvstore

import (
	"context"
	stderrors "errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorstream/errors"
	"github.com/c360/sensorstream/metadata"
	"github.com/c360/sensorstream/natsclient"
	"github.com/c360/sensorstream/sensor"
)

var _ metadata.Cache = (*Store)(nil)

type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
	rev  uint64
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(_ context.Context, key string) (*natsclient.KVEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, natsclient.ErrKVKeyNotFound
	}
	return &natsclient.KVEntry{Key: key, Value: v, Revision: f.rev}, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rev++
	f.data[key] = value
	return f.rev, nil
}

var validKVKey = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)

func TestEncodeKey_ValidForKV(t *testing.T) {
	for _, key := range []string{"CO@2_0_205", "CO@4_3_148", "a b/c"} {
		enc := EncodeKey(key)
		assert.Regexp(t, validKVKey, enc)
	}
	assert.NotEqual(t, EncodeKey("CO@1"), EncodeKey("CO@2"))
}

func TestStore_RoundTrip(t *testing.T) {
	kv := newFakeKV()
	s := NewWithKV(kv)
	ctx := context.Background()

	rec, err := s.Get(ctx, "CO@1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := s.Exists(ctx, "CO@1")
	require.NoError(t, err)
	assert.False(t, ok)

	in := sensor.Record{SensorKey: "CO@1", BuildingName: "House 9", UnitOfMeasure: "W"}
	require.NoError(t, s.Put(ctx, "CO@1", in))

	_, stored := kv.data[EncodeKey("CO@1")]
	assert.True(t, stored)

	out, err := s.Get(ctx, "CO@1")
	require.NoError(t, err)
	assert.Equal(t, in, *out)

	ok, err = s.Exists(ctx, "CO@1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, s.Close())
}

func TestStore_Errors(t *testing.T) {
	kv := newFakeKV()
	s := NewWithKV(kv)
	ctx := context.Background()

	kv.data[EncodeKey("bad")] = []byte("{")
	_, err := s.Get(ctx, "bad")
	assert.True(t, errors.IsInvalid(err))

	kv.err = stderrors.New("nats: timeout")
	_, err = s.Get(ctx, "CO@1")
	assert.True(t, errors.IsTransient(err))
	_, err = s.Exists(ctx, "CO@1")
	assert.True(t, errors.IsTransient(err))
	assert.True(t, errors.IsTransient(s.Put(ctx, "CO@1", sensor.Record{})))
}
