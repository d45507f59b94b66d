package vkrender

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func cacheProps(t *testing.T) *core1_0.PhysicalDeviceProperties {
	t.Helper()
	return &core1_0.PhysicalDeviceProperties{
		VendorID:          0x10de,
		DeviceID:          0x2684,
		DriverVersion:     0x1234abcd,
		PipelineCacheUUID: uuid.MustParse("0f0e0d0c-0b0a-0908-0706-050403020100"),
	}
}

func cacheHeader(t *testing.T, props *core1_0.PhysicalDeviceProperties) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, field := range []any{
		uint32(32),
		uint32(core1_0.PipelineCacheHeaderVersionOne),
		uint32(props.VendorID),
		uint32(props.DeviceID),
		props.PipelineCacheUUID,
	} {
		require.NoError(t, binary.Write(&buf, common.ByteOrder, field))
	}
	return buf.Bytes()
}

func TestValidateCacheHeaderAccepts(t *testing.T) {
	props := cacheProps(t)
	data := append(cacheHeader(t, props), 0xde, 0xad, 0xbe, 0xef)
	require.True(t, validateCacheHeader(data, props))
}

func TestValidateCacheHeaderRejectsOtherDevice(t *testing.T) {
	props := cacheProps(t)
	data := cacheHeader(t, props)

	other := *props
	other.DeviceID = 0x1111
	require.False(t, validateCacheHeader(data, &other))
}

func TestValidateCacheHeaderRejectsOtherUUID(t *testing.T) {
	props := cacheProps(t)
	data := cacheHeader(t, props)

	other := *props
	other.PipelineCacheUUID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	require.False(t, validateCacheHeader(data, &other))
}

func TestValidateCacheHeaderRejectsTruncated(t *testing.T) {
	props := cacheProps(t)
	data := cacheHeader(t, props)
	require.False(t, validateCacheHeader(data[:8], props))
	require.False(t, validateCacheHeader(nil, props))
}

func TestCacheFileNamePerDevice(t *testing.T) {
	props := cacheProps(t)
	name := cacheFileName(props)
	require.Equal(t, "vk_pipeline_cache_10de_2684_1234abcd_0f0e0d0c-0b0a-0908-0706-050403020100.bin", name)

	other := *props
	other.DriverVersion = 0x1234abce
	require.NotEqual(t, name, cacheFileName(&other))
}

func TestBytesToBytecode(t *testing.T) {
	code := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.Equal(t, []uint32{0x07230203, 0x00010000}, code)
}
