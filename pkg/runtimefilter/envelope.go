// Copyright 2021 - 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtimefilter

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/matrixorigin/runtimefilter/pkg/common/moerr"
	"github.com/matrixorigin/runtimefilter/pkg/container/types"
	"github.com/matrixorigin/runtimefilter/pkg/logutil"
)

// Envelope layout, little endian:
//
//	magic u32 | version u8 | flags u8 | uncompressedLen u32 |
//	checksum u64 | payload
//
// The checksum covers the uncompressed filter bytes, so corruption is
// caught whether it hits the wire bytes or the decompressor.
const (
	envelopeMagic   uint32 = 0x52464C54 // "RFLT"
	envelopeVersion uint8  = 1

	envelopeFlagLZ4 uint8 = 1 << 0

	envelopeHeaderSize = 4 + 1 + 1 + 4 + 8

	// Filters below this size are not worth a compressor round trip.
	compressThreshold = 256
)

// Pack serializes rf and wraps it for the wire, lz4-compressing the
// payload whenever that actually shrinks it.
func Pack(rf RuntimeFilter) ([]byte, error) {
	raw, err := MarshalRuntimeFilter(rf)
	if err != nil {
		return nil, err
	}

	payload := raw
	var flags uint8
	if len(raw) >= compressThreshold {
		var c lz4.Compressor
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := c.CompressBlock(raw, dst)
		if err != nil {
			return nil, moerr.NewInternalErrorNoCtx(
				"compress runtime filter: %s", err.Error())
		}
		// n == 0 means incompressible; ship raw.
		if n > 0 && n < len(raw) {
			payload = dst[:n]
			flags |= envelopeFlagLZ4
		}
	}

	buf := make([]byte, envelopeHeaderSize+len(payload))
	magic := envelopeMagic
	copy(buf, types.EncodeUint32(&magic))
	buf[4] = envelopeVersion
	buf[5] = flags
	rawLen := uint32(len(raw))
	copy(buf[6:], types.EncodeUint32(&rawLen))
	sum := xxhash.Sum64(raw)
	copy(buf[10:], types.EncodeUint64(&sum))
	copy(buf[envelopeHeaderSize:], payload)

	logutil.Debug("packed runtime filter",
		zap.String("type", rf.Type().String()),
		zap.Int("partitions", rf.NumPartitions()),
		zap.String("raw", humanize.IBytes(uint64(len(raw)))),
		zap.String("wire", humanize.IBytes(uint64(len(buf)))),
		zap.Bool("compressed", flags&envelopeFlagLZ4 != 0))
	return buf, nil
}

// Unpack validates an envelope, restores the filter bytes and decodes
// them into pool.
func Unpack(pool *ObjectPool, data []byte) (RuntimeFilter, error) {
	if len(data) < envelopeHeaderSize {
		return nil, moerr.NewShortBufferNoCtx("runtime filter envelope")
	}
	if types.DecodeUint32(data) != envelopeMagic {
		return nil, moerr.NewInvalidInputNoCtx("bad runtime filter envelope magic")
	}
	if data[4] != envelopeVersion {
		return nil, moerr.NewInvalidInputNoCtx(
			"unsupported runtime filter envelope version %d", data[4])
	}
	flags := data[5]
	rawLen := int(types.DecodeUint32(data[6:10]))
	wantSum := types.DecodeUint64(data[10:18])
	payload := data[envelopeHeaderSize:]

	raw := payload
	if flags&envelopeFlagLZ4 != 0 {
		// An lz4 block cannot expand beyond 255x, so a declared length
		// past that is corrupt; reject it before allocating.
		if rawLen > 255*len(payload)+64 {
			return nil, moerr.NewInvalidInputNoCtx(
				"runtime filter envelope declares %d bytes from a %d byte payload",
				rawLen, len(payload))
		}
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, moerr.NewInvalidInputNoCtx(
				"corrupt runtime filter payload: %s", err.Error())
		}
		raw = raw[:n]
	}
	if len(raw) != rawLen {
		return nil, moerr.NewInvalidInputNoCtx(
			"runtime filter payload length %d, envelope says %d", len(raw), rawLen)
	}
	if xxhash.Sum64(raw) != wantSum {
		return nil, moerr.NewInvalidInputNoCtx("runtime filter checksum mismatch")
	}
	return DeserializeRuntimeFilter(pool, raw)
}
