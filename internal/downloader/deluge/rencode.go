package deluge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// rencode is the compact, typed serialization Deluge's daemon RPC protocol
// uses on the wire: a bencode-like format whose containers (lists, dicts)
// carry their length in the leading typecode for small sizes, and whose
// integers pack small values directly into the typecode byte.
const (
	chrList   = 59
	chrDict   = 60
	chrInt    = 61
	chrInt1   = 62
	chrInt2   = 63
	chrInt4   = 64
	chrInt8   = 65
	chrFloat  = 66
	chrTrue   = 67
	chrFalse  = 68
	chrNone   = 69
	chrTerm   = 127

	intPosFixedStart = 0
	intPosFixedCount = 44

	intNegFixedStart = 70
	intNegFixedCount = 32

	dictFixedStart = 102
	dictFixedCount = 25

	strFixedStart = 128
	strFixedCount = 64

	listFixedStart = strFixedStart + strFixedCount // 192
	listFixedCount = 64
)

// rencodeEncode serializes v recursively. Supported types: nil, bool,
// int/int64, float64, string, []interface{}, map[string]interface{} (the
// dict is written in an arbitrary but stable key order for determinism).
func rencodeEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteByte(chrNone)
	case bool:
		if val {
			buf.WriteByte(chrTrue)
		} else {
			buf.WriteByte(chrFalse)
		}
	case int:
		return encodeInt(buf, int64(val))
	case int64:
		return encodeInt(buf, val)
	case float64:
		buf.WriteByte(chrFloat)
		bits := math.Float64bits(val)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		buf.Write(b[:])
	case string:
		encodeString(buf, val)
	case []interface{}:
		return encodeList(buf, val)
	case map[string]interface{}:
		return encodeDict(buf, val)
	default:
		return fmt.Errorf("rencode: unsupported type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, n int64) error {
	switch {
	case n >= intPosFixedStart && n < intPosFixedStart+intPosFixedCount:
		buf.WriteByte(byte(n))
	case n < 0 && -n <= intNegFixedCount:
		buf.WriteByte(byte(intNegFixedStart + (-n - 1)))
	case n >= math.MinInt8 && n <= math.MaxInt8:
		buf.WriteByte(chrInt1)
		buf.WriteByte(byte(int8(n)))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		buf.WriteByte(chrInt2)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(int16(n)))
		buf.Write(b[:])
	case n >= math.MinInt32 && n <= math.MaxInt32:
		buf.WriteByte(chrInt4)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(n)))
		buf.Write(b[:])
	default:
		buf.WriteByte(chrInt8)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(n))
		buf.Write(b[:])
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	if len(s) < strFixedCount {
		buf.WriteByte(byte(strFixedStart + len(s)))
		buf.WriteString(s)
		return
	}
	fmt.Fprintf(buf, "%d:", len(s))
	buf.WriteString(s)
}

func encodeList(buf *bytes.Buffer, items []interface{}) error {
	if len(items) < listFixedCount {
		buf.WriteByte(byte(listFixedStart + len(items)))
		for _, item := range items {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		return nil
	}
	buf.WriteByte(chrList)
	for _, item := range items {
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(chrTerm)
	return nil
}

func encodeDict(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(m) < dictFixedCount {
		buf.WriteByte(byte(dictFixedStart + len(m)))
		for _, k := range keys {
			encodeString(buf, k)
			if err := encodeValue(buf, m[k]); err != nil {
				return err
			}
		}
		return nil
	}
	buf.WriteByte(chrDict)
	for _, k := range keys {
		encodeString(buf, k)
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte(chrTerm)
	return nil
}

// rencodeDecode parses a single value from the front of data and returns it
// plus the number of bytes consumed.
func rencodeDecode(data []byte) (interface{}, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("rencode: empty input")
	}

	typ := int(data[0])

	switch {
	case typ == chrNone:
		return nil, 1, nil
	case typ == chrTrue:
		return true, 1, nil
	case typ == chrFalse:
		return false, 1, nil
	case typ == chrFloat:
		if len(data) < 9 {
			return nil, 0, fmt.Errorf("rencode: truncated float")
		}
		bits := binary.BigEndian.Uint64(data[1:9])
		return math.Float64frombits(bits), 9, nil
	case typ == chrInt1:
		if len(data) < 2 {
			return nil, 0, fmt.Errorf("rencode: truncated int1")
		}
		return int64(int8(data[1])), 2, nil
	case typ == chrInt2:
		if len(data) < 3 {
			return nil, 0, fmt.Errorf("rencode: truncated int2")
		}
		return int64(int16(binary.BigEndian.Uint16(data[1:3]))), 3, nil
	case typ == chrInt4:
		if len(data) < 5 {
			return nil, 0, fmt.Errorf("rencode: truncated int4")
		}
		return int64(int32(binary.BigEndian.Uint32(data[1:5]))), 5, nil
	case typ == chrInt8:
		if len(data) < 9 {
			return nil, 0, fmt.Errorf("rencode: truncated int8")
		}
		return int64(binary.BigEndian.Uint64(data[1:9])), 9, nil
	case typ == chrInt:
		end := bytes.IndexByte(data[1:], chrTerm)
		if end < 0 {
			return nil, 0, fmt.Errorf("rencode: unterminated bignum int")
		}
		var n int64
		if _, err := fmt.Sscanf(string(data[1:1+end]), "%d", &n); err != nil {
			return nil, 0, fmt.Errorf("rencode: malformed bignum int: %w", err)
		}
		return n, 2 + end, nil
	case typ >= intPosFixedStart && typ < intPosFixedStart+intPosFixedCount:
		return int64(typ), 1, nil
	case typ >= intNegFixedStart && typ < intNegFixedStart+intNegFixedCount:
		return int64(-(typ - intNegFixedStart) - 1), 1, nil
	case typ >= strFixedStart && typ < strFixedStart+strFixedCount:
		length := typ - strFixedStart
		if len(data) < 1+length {
			return nil, 0, fmt.Errorf("rencode: truncated fixed string")
		}
		return string(data[1 : 1+length]), 1 + length, nil
	case typ == chrList:
		return decodeContainerTerm(data, true)
	case typ >= listFixedStart && typ < listFixedStart+listFixedCount:
		count := typ - listFixedStart
		return decodeFixedList(data[1:], count)
	case typ == chrDict:
		return decodeContainerTerm(data, false)
	case typ >= dictFixedStart && typ < dictFixedStart+dictFixedCount:
		count := typ - dictFixedStart
		return decodeFixedDict(data[1:], count)
	case typ >= '0' && typ <= '9':
		return decodeLengthPrefixedString(data)
	default:
		return nil, 0, fmt.Errorf("rencode: unknown typecode %d", typ)
	}
}

func decodeLengthPrefixedString(data []byte) (interface{}, int, error) {
	colon := bytes.IndexByte(data, ':')
	if colon < 0 {
		return nil, 0, fmt.Errorf("rencode: malformed length-prefixed string")
	}
	var length int
	if _, err := fmt.Sscanf(string(data[:colon]), "%d", &length); err != nil {
		return nil, 0, fmt.Errorf("rencode: bad string length: %w", err)
	}
	start := colon + 1
	if len(data) < start+length {
		return nil, 0, fmt.Errorf("rencode: truncated string")
	}
	return string(data[start : start+length]), start + length, nil
}

func decodeFixedList(data []byte, count int) (interface{}, int, error) {
	items := make([]interface{}, 0, count)
	offset := 0
	for i := 0; i < count; i++ {
		v, n, err := rencodeDecode(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
		offset += n
	}
	return items, 1 + offset, nil
}

func decodeFixedDict(data []byte, count int) (interface{}, int, error) {
	m := make(map[string]interface{}, count)
	offset := 0
	for i := 0; i < count; i++ {
		k, n, err := rencodeDecode(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n
		key, ok := k.(string)
		if !ok {
			return nil, 0, fmt.Errorf("rencode: dict key is not a string")
		}
		v, n2, err := rencodeDecode(data[offset:])
		if err != nil {
			return nil, 0, err
		}
		offset += n2
		m[key] = v
	}
	return m, 1 + offset, nil
}

// decodeContainerTerm decodes the general (unbounded, terminator-delimited)
// list/dict forms used when a container's length exceeds the fixed-size
// typecode range.
func decodeContainerTerm(data []byte, isList bool) (interface{}, int, error) {
	offset := 1
	var items []interface{}
	m := make(map[string]interface{})

	for {
		if offset >= len(data) {
			return nil, 0, fmt.Errorf("rencode: unterminated container")
		}
		if data[offset] == chrTerm {
			offset++
			break
		}
		if isList {
			v, n, err := rencodeDecode(data[offset:])
			if err != nil {
				return nil, 0, err
			}
			items = append(items, v)
			offset += n
		} else {
			k, n, err := rencodeDecode(data[offset:])
			if err != nil {
				return nil, 0, err
			}
			offset += n
			key, ok := k.(string)
			if !ok {
				return nil, 0, fmt.Errorf("rencode: dict key is not a string")
			}
			v, n2, err := rencodeDecode(data[offset:])
			if err != nil {
				return nil, 0, err
			}
			offset += n2
			m[key] = v
		}
	}

	if isList {
		return items, offset, nil
	}
	return m, offset, nil
}
