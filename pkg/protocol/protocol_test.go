package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"announce", Announce{Name: "node_1", IP: "192.168.1.20", Port: 12000, Platform: "Linux", Timestamp: "1704067200"}},
		{"offer", Offer{SenderIP: "192.168.1.20", SenderPort: 12000, FileName: "report.txt", FileSize: 10, FileMD5: "d41d8cd98f00b204e9800998ecf8427e", Timestamp: "1704067200"}},
		{"accept", Accept{Timestamp: "1704067200", TCPPort: 40123}},
		{"reject", Reject{Timestamp: "1704067200"}},
		{"meta", FileMeta{FileName: "report.txt", TotalBlocks: 3, BlockSize: BlockSize}},
		{"complete", Complete{FileMD5: "abc", Timestamp: "1704067200"}},
		{"ack", Ack{BlockNumber: 0}},
		{"error", Error{Error: "hash mismatch", Timestamp: "1704067200"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestEncodeWireFieldNames(t *testing.T) {
	data, err := Encode(NewOffer("10.0.0.2", 12001, "a.bin", 42, "ff"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range []string{"type", "sender_ip", "sender_port", "file_name", "file_size", "file_md5", "timestamp"} {
		assert.Contains(t, fields, name)
	}
	assert.Equal(t, string(TypeSendOffer), fields["type"])

	data, err = Encode(NewAccept(5555))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tcp_port":5555`)
	assert.Contains(t, string(data), `"type":"RECEIVE_CONFIRM"`)
}

func TestDecodeForeignAnnounce(t *testing.T) {
	raw := []byte(`{"type": "NODE_DISCOVERY", "name": "node_2", "ip": "192.168.1.7", "port": 12001, "platform": "Windows", "timestamp": "1704067200"}`)

	msg, err := Decode(raw)
	require.NoError(t, err)
	announce, ok := msg.(Announce)
	require.True(t, ok, "expected Announce, got %T", msg)
	assert.Equal(t, "192.168.1.7:12001", announce.Key())
	assert.Equal(t, "Windows", announce.Platform)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("hello")},
		{"empty", nil},
		{"missing tag", []byte(`{"name":"x"}`)},
		{"unknown tag", []byte(`{"type":"PING"}`)},
		{"chunk tag", []byte(`{"type":"FILE_BLOCK"}`)},
		{"wrong field type", []byte(`{"type":"NODE_DISCOVERY","port":"12000"}`)},
		{"array", []byte(`[1,2,3]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestDecodeAs(t *testing.T) {
	data, err := Encode(NewComplete("abc"))
	require.NoError(t, err)

	complete, err := DecodeAs[Complete](data)
	require.NoError(t, err)
	assert.Equal(t, "abc", complete.FileMD5)

	_, err = DecodeAs[FileMeta](data)
	assert.ErrorIs(t, err, ErrUnexpectedType)
}

func TestEncodeChunkIsRaw(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xff}
	data, err := Encode(Chunk{Data: payload})
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrEncode)
}

func TestTotalBlocks(t *testing.T) {
	tests := []struct {
		size  int64
		block int
		want  int
	}{
		{0, BlockSize, 0},
		{1, BlockSize, 1},
		{10, BlockSize, 1},
		{BlockSize, BlockSize, 1},
		{BlockSize + 1, BlockSize, 2},
		{3 * BlockSize, BlockSize, 3},
		{100, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalBlocks(tt.size, tt.block), "size=%d block=%d", tt.size, tt.block)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewFileMeta("a.txt", 70000, BlockSize)))
	require.NoError(t, WriteFrame(&buf, []byte("raw chunk")))
	require.NoError(t, WriteFrame(&buf, nil))

	assert.Equal(t, byte(0), buf.Bytes()[0], "length prefix is big-endian")

	msg, err := ReadMessage(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	meta, ok := msg.(FileMeta)
	require.True(t, ok)
	assert.Equal(t, 2, meta.TotalBlocks)
	assert.Equal(t, BlockSize, meta.BlockSize)

	chunk, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, "raw chunk", string(chunk))

	empty, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ReadFrame(&buf, DefaultMaxFrameSize)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameLimits(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, make([]byte, 128)))
		_, err := ReadFrame(&buf, 64)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("short payload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, []byte("0123456789")))
		truncated := bytes.NewReader(buf.Bytes()[:8])
		_, err := ReadFrame(truncated, DefaultMaxFrameSize)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("short header", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultMaxFrameSize)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}
