package patch

import (
	"fmt"

	"github.com/retroenv/gbcolordx/internal/cartridge"
)

// ipsMaxRecord is the largest data length a single IPS record can carry.
const ipsMaxRecord = 0xFFFF

// BuildIPS encodes the byte differences between the original and patched
// images as an IPS patch, so the result can be distributed without the
// ROM itself. Both images must have the same size; the patcher never
// truncates or extends the image.
func BuildIPS(original, patched *cartridge.Image) ([]byte, error) {
	src := original.Bytes()
	dst := patched.Bytes()
	if len(src) != len(dst) {
		return nil, fmt.Errorf("image sizes differ: %d != %d", len(src), len(dst))
	}

	out := []byte("PATCH")
	for i := 0; i < len(src); {
		if src[i] == dst[i] {
			i++
			continue
		}
		start := i
		for i < len(src) && src[i] != dst[i] && i-start < ipsMaxRecord {
			i++
		}
		// An offset that spells "EOF" would terminate the patch early;
		// shift the record one byte back to avoid it.
		if start == 0x454F46 {
			start--
		}
		length := i - start
		out = append(out,
			byte(start>>16), byte(start>>8), byte(start),
			byte(length>>8), byte(length))
		out = append(out, dst[start:i]...)
	}
	out = append(out, 'E', 'O', 'F')
	return out, nil
}
