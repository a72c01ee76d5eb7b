package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	e := Envelope{
		LinkAddress:  "tcp://127.0.0.1:9999",
		ReplyChannel: "twoSixDirectCpp",
		PackageId:    NewPackageId(),
		Message:      []byte("Hello, World!"),
	}

	raw, err := EncodeEnvelope(e)
	require.NoError(t, err)

	got, err := DecodeEnvelope(raw)
	require.NoError(t, err)

	assert.Equal(t, e.LinkAddress, got.LinkAddress)
	assert.Equal(t, e.ReplyChannel, got.ReplyChannel)
	assert.Equal(t, e.PackageId, got.PackageId)
	assert.Equal(t, e.Message, got.Message)
}

func TestEnvelopeCarriesTraceCorrelation(t *testing.T) {
	e := Envelope{
		PackageId: NewPackageId(),
		TraceId:   0xdeadbeef,
		SpanId:    0xfeedface,
	}

	raw, err := EncodeEnvelope(e)
	require.NoError(t, err)

	got, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, e.TraceId, got.TraceId)
	assert.Equal(t, e.SpanId, got.SpanId)
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"not json", []byte("srctybu")},
		{"empty", []byte("")},
		{"bad packageId base64", []byte(`{"packageId":"not-base64!!","message":""}`)},
		{"short packageId", []byte(`{"packageId":"AAAA","message":""}`)},
		{"bad message base64", []byte(`{"packageId":"AAAAAAAAAAAAAAAAAAAAAA==","message":"!!!"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestFrameAndParsePackage(t *testing.T) {
	id := NewPackageId()
	payload := []byte("payload bytes")

	framed := FramePackage(id, payload)
	gotID, gotPayload, err := ParsePackage(framed)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, payload, gotPayload)
}

func TestParsePackageTooShort(t *testing.T) {
	_, _, err := ParsePackage([]byte("short"))
	assert.Error(t, err)
}

func TestHandleGeneratorNeverRepeats(t *testing.T) {
	var g HandleGenerator
	seen := make(map[RaceHandle]bool)
	for i := 0; i < 1000; i++ {
		h := g.Next()
		assert.False(t, seen[h], "handle %d reused", h)
		seen[h] = true
		assert.NotEqual(t, NullHandle, h)
	}
}
