package repository

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// encodeWriteRequest manually encodes a WriteRequest with one TimeSeries per point
func encodeWriteRequest(points []*entity.MetricDataPoint, extraLabels map[string]string) []byte {
	var buf bytes.Buffer

	for _, p := range points {
		labels := make(map[string]string, len(p.Labels)+len(extraLabels)+1)
		for k, v := range extraLabels {
			labels[k] = v
		}
		for k, v := range p.Labels {
			labels[k] = v
		}
		labels["__name__"] = p.Name

		// Field 1: timeseries (repeated)
		timeseriesData := encodeTimeSeries(labels, p.Value, p.Timestamp.UnixMilli())
		writeFieldWithData(&buf, 1, 2, timeseriesData) // field 1, wire type 2 (length-delimited)
	}

	return buf.Bytes()
}

// encodeTimeSeries encodes a single TimeSeries. Labels are written sorted by name.
func encodeTimeSeries(labels map[string]string, value float64, timestamp int64) []byte {
	var buf bytes.Buffer

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	// Field 1: labels (repeated)
	for _, name := range names {
		writeFieldWithData(&buf, 1, 2, encodeLabel(name, labels[name]))
	}

	// Field 2: samples (repeated)
	writeFieldWithData(&buf, 2, 2, encodeSample(value, timestamp))

	return buf.Bytes()
}

// encodeLabel encodes a single Label
func encodeLabel(name, value string) []byte {
	var buf bytes.Buffer
	writeString(&buf, 1, name)
	writeString(&buf, 2, value)
	return buf.Bytes()
}

// encodeSample encodes a single Sample
func encodeSample(value float64, timestamp int64) []byte {
	var buf bytes.Buffer

	// Field 1: value (double/fixed64)
	writeFixed64(&buf, 1, math.Float64bits(value))

	// Field 2: timestamp (int64/varint)
	writeVarint(&buf, 2, timestamp)

	return buf.Bytes()
}

// writeFieldWithData writes a field number and wire type followed by length-delimited data
func writeFieldWithData(buf *bytes.Buffer, fieldNum int, wireType int, data []byte) {
	key := (fieldNum << 3) | wireType
	writeRawVarint(buf, uint64(key))
	writeRawVarint(buf, uint64(len(data)))
	buf.Write(data)
}

// writeString writes a string field
func writeString(buf *bytes.Buffer, fieldNum int, s string) {
	key := (fieldNum << 3) | 2
	writeRawVarint(buf, uint64(key))
	writeRawVarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

// writeFixed64 writes a fixed64 field
func writeFixed64(buf *bytes.Buffer, fieldNum int, v uint64) {
	key := (fieldNum << 3) | 1
	writeRawVarint(buf, uint64(key))
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// writeVarint writes a varint field
func writeVarint(buf *bytes.Buffer, fieldNum int, v int64) {
	key := fieldNum << 3
	writeRawVarint(buf, uint64(key))
	writeRawVarint(buf, uint64(v))
}

// writeRawVarint writes a raw varint value
func writeRawVarint(buf *bytes.Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}
