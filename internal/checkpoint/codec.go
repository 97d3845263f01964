package checkpoint

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"

	"github.com/lumen-ml/lumen/internal/tensor"
)

// Stored dtype names. "float16" only ever appears on disk: it is the
// half-precision storage form of a float32 tensor and is widened back to
// float32 on load.
const (
	dtypeFloat32 = "float32"
	dtypeFloat64 = "float64"
	dtypeInt32   = "int32"
	dtypeBool    = "bool"
	dtypeFloat16 = "float16"
)

func dtypeToString(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return dtypeFloat32, nil
	case tensor.Float64:
		return dtypeFloat64, nil
	case tensor.Int32:
		return dtypeInt32, nil
	case tensor.Bool:
		return dtypeBool, nil
	default:
		return "", fmt.Errorf("%w: unsupported dtype %s", ErrFormat, dt)
	}
}

func stringToDType(s string) (tensor.DataType, error) {
	switch s {
	case dtypeFloat32, dtypeFloat16:
		return tensor.Float32, nil
	case dtypeFloat64:
		return tensor.Float64, nil
	case dtypeInt32:
		return tensor.Int32, nil
	case dtypeBool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("%w: unknown dtype %q", ErrFormat, s)
	}
}

// encodeTensor returns the stored byte representation and on-disk dtype name
// for a tensor. With halfPrecision set, float32 buffers are narrowed to IEEE
// 754 half floats; other dtypes are stored verbatim.
func encodeTensor(raw *tensor.RawTensor, halfPrecision bool) ([]byte, string, error) {
	name, err := dtypeToString(raw.DType())
	if err != nil {
		return nil, "", err
	}

	if !halfPrecision || raw.DType() != tensor.Float32 {
		return raw.Data(), name, nil
	}

	values := raw.AsFloat32()
	buf := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(v).Bits())
	}
	return buf, dtypeFloat16, nil
}

// decodeTensor reconstructs a RawTensor from its stored bytes.
func decodeTensor(meta TensorMeta, data []byte) (*tensor.RawTensor, error) {
	dt, err := stringToDType(meta.DType)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dt, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
	}

	if meta.DType == dtypeFloat16 {
		if len(data) != 2*raw.NumElements() {
			return nil, fmt.Errorf("%w: tensor %s has %d bytes, expected %d",
				ErrFormat, meta.Name, len(data), 2*raw.NumElements())
		}
		values := raw.AsFloat32()
		for i := range values {
			bits := binary.LittleEndian.Uint16(data[2*i:])
			values[i] = float16.Frombits(bits).Float32()
		}
		return raw, nil
	}

	if len(data) != raw.ByteSize() {
		return nil, fmt.Errorf("%w: tensor %s has %d bytes, expected %d",
			ErrFormat, meta.Name, len(data), raw.ByteSize())
	}
	copy(raw.Data(), data)
	return raw, nil
}
