package hash

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// CRC32CBase64 returns the checksum as base64 of its big-endian bytes, the form
// S3 expects in ChecksumCRC32C.
func CRC32CBase64(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}

// ChecksumError reports a blob whose content does not match its recorded checksum.
type ChecksumError struct {
	Name     string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %08x, got %08x", e.Name, e.Expected, e.Actual)
}

// Verify returns a *ChecksumError unless data hashes to want.
func Verify(name string, data []byte, want uint32) error {
	if got := CRC32C(data); got != want {
		return &ChecksumError{Name: name, Expected: want, Actual: got}
	}
	return nil
}
